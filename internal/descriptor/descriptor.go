// Package descriptor models version descriptors and merges loader fragments
// into them.
//
// A Descriptor is kept as a generic JSON tree so unknown fields written by
// any loader survive a merge untouched. Typed views (Libraries, Download,
// JavaMajor) decode only the parts the installer needs.
package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Well-known top-level keys.
const (
	KeyID                 = "id"
	KeyInheritsFrom       = "inheritsFrom"
	KeyLibraries          = "libraries"
	KeyDownloads          = "downloads"
	KeyAssetIndex         = "assetIndex"
	KeyJavaVersion        = "javaVersion"
	KeyArguments          = "arguments"
	KeyMinecraftArguments = "minecraftArguments"
	KeyMainClass          = "mainClass"
)

// ErrMissingField is returned when a typed accessor finds no value.
var ErrMissingField = errors.New("descriptor: missing field")

// Descriptor is a JSON-shaped version descriptor or fragment.
type Descriptor map[string]any

// Download is a single downloadable file entry, such as downloads.client.
type Download struct {
	SHA1 string `json:"sha1,omitempty"`
	Size int64  `json:"size,omitempty"`
	URL  string `json:"url"`
}

// AssetIndex is the assetIndex entry of a vanilla descriptor.
type AssetIndex struct {
	ID        string `json:"id"`
	SHA1      string `json:"sha1,omitempty"`
	Size      int64  `json:"size,omitempty"`
	TotalSize int64  `json:"totalSize,omitempty"`
	URL       string `json:"url"`
}

// Parse decodes a descriptor from JSON.
func Parse(data []byte) (Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}
	if d == nil {
		d = Descriptor{}
	}
	return d, nil
}

// Load reads and parses a descriptor file.
func Load(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	return Parse(data)
}

// Save writes d to path through a temporary file in the same directory.
func (d Descriptor) Save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// FromValue converts any JSON-marshalable value into a Descriptor, so that
// every nested list is []any and every nested object is map[string]any.
func FromValue(v any) (Descriptor, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// decode re-decodes an arbitrary subtree into out.
func decode(v any, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// StringField returns a top-level string field, or "".
func (d Descriptor) StringField(key string) string {
	s, _ := d[key].(string)
	return s
}

// ID returns the descriptor id.
func (d Descriptor) ID() string { return d.StringField(KeyID) }

// MainClass returns the entry-point class.
func (d Descriptor) MainClass() string { return d.StringField(KeyMainClass) }

// Libraries decodes the libraries list.
func (d Descriptor) Libraries() ([]Library, error) {
	raw, ok := d[KeyLibraries]
	if !ok {
		return nil, nil
	}
	var libs []Library
	if err := decode(raw, &libs); err != nil {
		return nil, fmt.Errorf("decode libraries: %w", err)
	}
	return libs, nil
}

// Download returns downloads.<key>, e.g. "client" or "client_mappings".
func (d Descriptor) Download(key string) (Download, error) {
	downloads, _ := d[KeyDownloads].(map[string]any)
	raw, ok := downloads[key]
	if !ok {
		return Download{}, fmt.Errorf("%w: downloads.%s", ErrMissingField, key)
	}
	var dl Download
	if err := decode(raw, &dl); err != nil {
		return Download{}, fmt.Errorf("decode downloads.%s: %w", key, err)
	}
	if dl.URL == "" {
		return Download{}, fmt.Errorf("%w: downloads.%s.url", ErrMissingField, key)
	}
	return dl, nil
}

// AssetIndex decodes the assetIndex entry.
func (d Descriptor) AssetIndex() (AssetIndex, error) {
	raw, ok := d[KeyAssetIndex]
	if !ok {
		return AssetIndex{}, fmt.Errorf("%w: %s", ErrMissingField, KeyAssetIndex)
	}
	var ai AssetIndex
	if err := decode(raw, &ai); err != nil {
		return AssetIndex{}, fmt.Errorf("decode assetIndex: %w", err)
	}
	return ai, nil
}

// JavaMajor returns javaVersion.majorVersion, defaulting to 8 for old
// descriptors that predate the field.
func (d Descriptor) JavaMajor() int {
	jv, _ := d[KeyJavaVersion].(map[string]any)
	if n, ok := jv["majorVersion"].(float64); ok && n > 0 {
		return int(n)
	}
	return 8
}
