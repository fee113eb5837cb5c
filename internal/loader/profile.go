package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kiyonya/miocore/internal/descriptor"
)

// ProfileFile is the install profile entry of an installer archive.
const ProfileFile = "install_profile.json"

// DefaultFragment is the fragment entry used when a profile names none.
const DefaultFragment = "version.json"

// SidedValue is one data entry of a modern profile.
type SidedValue struct {
	Client string `json:"client"`
	Server string `json:"server"`
}

// For returns the value for side.
func (v SidedValue) For(side string) string {
	if side == "server" {
		return v.Server
	}
	return v.Client
}

// Processor is one step of a modern profile.
type Processor struct {
	Jar       string            `json:"jar"`
	Classpath []string          `json:"classpath"`
	Args      []string          `json:"args"`
	Sides     []string          `json:"sides,omitempty"`
	Outputs   map[string]string `json:"outputs,omitempty"`
}

// RunsOn reports whether the processor applies to side.
func (p Processor) RunsOn(side string) bool {
	if len(p.Sides) == 0 {
		return true
	}
	for _, s := range p.Sides {
		if s == side {
			return true
		}
	}
	return false
}

// HasArg reports whether any argument equals token.
func (p Processor) HasArg(token string) bool {
	for _, a := range p.Args {
		if a == token {
			return true
		}
	}
	return false
}

// LegacyInstall is the install block of a legacy profile.
type LegacyInstall struct {
	ProfileName string `json:"profileName"`
	Target      string `json:"target"`
	Path        string `json:"path"`
	Version     string `json:"version"`
	FilePath    string `json:"filePath"`
	Minecraft   string `json:"minecraft"`
}

// Profile is an install profile in either the modern or the legacy shape.
type Profile struct {
	// Modern shape.
	Spec       int                   `json:"spec,omitempty"`
	Version    string                `json:"version,omitempty"`
	Minecraft  string                `json:"minecraft,omitempty"`
	JSON       string                `json:"json,omitempty"`
	Path       string                `json:"path,omitempty"`
	Data       map[string]SidedValue `json:"data,omitempty"`
	Processors []Processor           `json:"processors,omitempty"`
	Libraries  []descriptor.Library  `json:"libraries,omitempty"`

	// Legacy shape.
	Install     *LegacyInstall        `json:"install,omitempty"`
	VersionInfo descriptor.Descriptor `json:"versionInfo,omitempty"`
}

// Legacy reports whether p has the legacy shape.
func (p *Profile) Legacy() bool {
	return p.Install != nil && p.VersionInfo != nil
}

// FragmentEntry returns the archive entry holding the pre-baked fragment.
func (p *Profile) FragmentEntry() string {
	name := strings.TrimPrefix(p.JSON, "/")
	if name == "" {
		return DefaultFragment
	}
	return name
}

// ParseProfile decodes an install profile.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse install profile: %w", err)
	}
	if p.Install != nil && p.VersionInfo == nil {
		return nil, errors.New("parse install profile: legacy profile without versionInfo")
	}
	return &p, nil
}

// LoadProfile reads the install profile from an unpacked installer.
func LoadProfile(dir string) (*Profile, error) {
	data, err := os.ReadFile(filepath.Join(dir, ProfileFile))
	if err != nil {
		return nil, fmt.Errorf("read install profile: %w", err)
	}
	return ParseProfile(data)
}

// LoadFragment reads the pre-baked fragment of a modern profile.
func (p *Profile) LoadFragment(dir string) (descriptor.Descriptor, error) {
	return descriptor.Load(filepath.Join(dir, filepath.FromSlash(p.FragmentEntry())))
}
