package vanilla

import (
	"path/filepath"

	"github.com/kiyonya/miocore/internal/maven"
)

// Layout resolves paths inside an installation root.
type Layout struct {
	Root      string
	Libraries string // defaults to {Root}/libraries
}

// NewLayout returns a layout for root with an optional library directory.
func NewLayout(root, libraries string) Layout {
	if libraries == "" {
		libraries = filepath.Join(root, "libraries")
	}
	return Layout{Root: root, Libraries: libraries}
}

// VersionDir returns the directory of a version.
func (l Layout) VersionDir(id string) string {
	return filepath.Join(l.Root, "versions", id)
}

// DescriptorPath returns the descriptor file of a version.
func (l Layout) DescriptorPath(id string) string {
	return filepath.Join(l.VersionDir(id), id+".json")
}

// GameJar returns the game jar of a version for side.
func (l Layout) GameJar(id, side string) string {
	if side == "server" {
		return filepath.Join(l.VersionDir(id), id+"-server.jar")
	}
	return filepath.Join(l.VersionDir(id), id+".jar")
}

// Library returns the local path of a maven coordinate.
func (l Layout) Library(c maven.Coordinate) string {
	return c.LocalPath(l.Libraries)
}

// LibraryPath returns the local path of a repository-relative path.
func (l Layout) LibraryPath(rel string) string {
	return filepath.Join(l.Libraries, filepath.FromSlash(rel))
}

// AssetIndex returns the path of an asset index.
func (l Layout) AssetIndex(id string) string {
	return filepath.Join(l.Root, "assets", "indexes", id+".json")
}

// AssetObject returns the path of an asset object.
func (l Layout) AssetObject(hash string) string {
	return filepath.Join(l.Root, "assets", "objects", hash[:2], hash)
}

// Mods returns the mods directory.
func (l Layout) Mods() string {
	return filepath.Join(l.Root, "mods")
}
