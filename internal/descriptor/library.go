package descriptor

import (
	"regexp"
	"runtime"
	"strings"
)

// Library is one entry of a descriptor's or install profile's library list.
// Fields cover the vanilla, modern-Forge, legacy-Forge and Fabric shapes.
type Library struct {
	Name      string            `json:"name"`
	URL       string            `json:"url,omitempty"`
	SHA1      string            `json:"sha1,omitempty"`
	Downloads *LibraryDownloads `json:"downloads,omitempty"`
	Rules     []Rule            `json:"rules,omitempty"`
	Natives   map[string]string `json:"natives,omitempty"`
	Checksums []string          `json:"checksums,omitempty"`
	ClientReq *bool             `json:"clientreq,omitempty"`
	ServerReq *bool             `json:"serverreq,omitempty"`
}

// LibraryDownloads holds the main artifact and native classifiers.
type LibraryDownloads struct {
	Artifact    *Artifact           `json:"artifact,omitempty"`
	Classifiers map[string]Artifact `json:"classifiers,omitempty"`
}

// Artifact is a resolved library file.
type Artifact struct {
	Path string `json:"path,omitempty"`
	SHA1 string `json:"sha1,omitempty"`
	Size int64  `json:"size,omitempty"`
	URL  string `json:"url"`
}

// Rule is an allow/disallow rule gated on OS or launcher features.
type Rule struct {
	Action   string          `json:"action"`
	OS       *OSRule         `json:"os,omitempty"`
	Features map[string]bool `json:"features,omitempty"`
}

// OSRule matches an operating system. Version is a regular expression.
type OSRule struct {
	Name    string `json:"name,omitempty"`
	Arch    string `json:"arch,omitempty"`
	Version string `json:"version,omitempty"`
}

// RuleEvaluator decides whether a rule list allows a library on the host.
type RuleEvaluator interface {
	Allowed(rules []Rule) bool
}

// Platform evaluates rules against a fixed OS description.
type Platform struct {
	OS       string // "windows", "osx", "linux"
	Arch     string // "x86", "x64", "arm64"
	Version  string
	Features map[string]bool
}

// CurrentPlatform describes the running host in descriptor vocabulary.
func CurrentPlatform() Platform {
	p := Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
	switch runtime.GOOS {
	case "darwin":
		p.OS = "osx"
	}
	switch runtime.GOARCH {
	case "amd64":
		p.Arch = "x64"
	case "386":
		p.Arch = "x86"
	}
	return p
}

// Allowed applies the rules in order; the last matching rule wins. An empty
// rule list allows everything, a non-empty one starts from disallow.
func (p Platform) Allowed(rules []Rule) bool {
	if len(rules) == 0 {
		return true
	}
	allowed := false
	for _, r := range rules {
		if p.matches(r) {
			allowed = r.Action == "allow"
		}
	}
	return allowed
}

func (p Platform) matches(r Rule) bool {
	if r.OS != nil {
		if r.OS.Name != "" && r.OS.Name != p.OS {
			return false
		}
		if r.OS.Arch != "" && r.OS.Arch != p.Arch {
			return false
		}
		if r.OS.Version != "" {
			re, err := regexp.Compile(r.OS.Version)
			if err != nil || !re.MatchString(p.Version) {
				return false
			}
		}
	}
	for feature, want := range r.Features {
		if p.Features[feature] != want {
			return false
		}
	}
	return true
}

// NativeClassifier returns the natives classifier for the platform, with
// ${arch} expanded to 32 or 64.
func (p Platform) NativeClassifier(lib Library) (string, bool) {
	c, ok := lib.Natives[p.OS]
	if !ok {
		return "", false
	}
	bits := "64"
	if p.Arch == "x86" {
		bits = "32"
	}
	return strings.ReplaceAll(c, "${arch}", bits), true
}

// RequiredOn reports whether a legacy library with clientreq/serverreq
// markers applies to side. Unmarked libraries apply to both sides.
func (l Library) RequiredOn(side string) bool {
	if l.ClientReq == nil && l.ServerReq == nil {
		return true
	}
	switch side {
	case "server":
		return l.ServerReq != nil && *l.ServerReq
	default:
		return l.ClientReq != nil && *l.ClientReq
	}
}
