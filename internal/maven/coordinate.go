// Package maven parses maven coordinates and maps them to repository paths.
//
// A coordinate has the form group:artifact:version[:classifier][@ext]. The
// extension defaults to "jar". Install profiles also use a bracketed form,
// [group:artifact:version], to mean "the local path of this artifact".
package maven

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidCoordinate is returned for strings that are not maven coordinates.
var ErrInvalidCoordinate = errors.New("maven: invalid coordinate")

// Coordinate is a parsed maven coordinate.
type Coordinate struct {
	Group      string
	Artifact   string
	Version    string
	Classifier string
	Ext        string
}

// Parse parses s. Surrounding brackets are accepted and stripped.
func Parse(s string) (Coordinate, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")

	ext := "jar"
	if i := strings.LastIndex(raw, "@"); i >= 0 {
		ext = raw[i+1:]
		raw = raw[:i]
	}

	parts := strings.Split(raw, ":")
	if len(parts) < 3 || len(parts) > 4 || ext == "" {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
	}
	for _, p := range parts {
		if !validSegment(p) {
			return Coordinate{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
		}
	}
	for _, g := range strings.Split(parts[0], ".") {
		if g == "" {
			return Coordinate{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
		}
	}
	if strings.ContainsAny(ext, `/\`) {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
	}

	c := Coordinate{
		Group:    parts[0],
		Artifact: parts[1],
		Version:  parts[2],
		Ext:      ext,
	}
	if len(parts) == 4 {
		c.Classifier = parts[3]
	}
	return c, nil
}

// validSegment rejects empty parts and parts that would leave their
// directory once joined into a path.
func validSegment(p string) bool {
	return p != "" && p != "." && p != ".." && !strings.ContainsAny(p, `/\`)
}

// IsBracketed reports whether s is a bracketed coordinate reference.
func IsBracketed(s string) bool {
	return len(s) > 2 && strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")
}

// FileName returns artifact-version[-classifier].ext.
func (c Coordinate) FileName() string {
	name := c.Artifact + "-" + c.Version
	if c.Classifier != "" {
		name += "-" + c.Classifier
	}
	return name + "." + c.Ext
}

// Path returns the slash-separated repository path of the artifact.
func (c Coordinate) Path() string {
	return path.Join(strings.ReplaceAll(c.Group, ".", "/"), c.Artifact, c.Version, c.FileName())
}

// LocalPath returns the artifact path under root using OS separators.
func (c Coordinate) LocalPath(root string) string {
	return filepath.Join(root, filepath.FromSlash(c.Path()))
}

// URL returns the artifact URL under a repository base URL.
func (c Coordinate) URL(repo string) string {
	if !strings.HasSuffix(repo, "/") {
		repo += "/"
	}
	return repo + c.Path()
}

// WithClassifier returns a copy of c with the classifier replaced.
func (c Coordinate) WithClassifier(classifier string) Coordinate {
	c.Classifier = classifier
	return c
}

// String returns the canonical coordinate form.
func (c Coordinate) String() string {
	s := c.Group + ":" + c.Artifact + ":" + c.Version
	if c.Classifier != "" {
		s += ":" + c.Classifier
	}
	if c.Ext != "" && c.Ext != "jar" {
		s += "@" + c.Ext
	}
	return s
}

// LocalPath parses coord and returns its path under root.
func LocalPath(root, coord string) (string, error) {
	c, err := Parse(coord)
	if err != nil {
		return "", err
	}
	return c.LocalPath(root), nil
}
