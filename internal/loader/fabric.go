package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"sync"

	"github.com/kiyonya/miocore/internal/descriptor"
	"github.com/kiyonya/miocore/internal/downloader"
	mhttp "github.com/kiyonya/miocore/internal/http"
	"github.com/kiyonya/miocore/internal/logging"
	"github.com/kiyonya/miocore/internal/maven"
	"github.com/kiyonya/miocore/internal/vanilla"
)

// FabricLike configures a loader installed from a metadata endpoint.
type FabricLike struct {
	Name string
	Meta string // base of versions/loader/{game}/{loader}
	Repo string
}

// Fabric is the Fabric loader.
var Fabric = FabricLike{
	Name: "fabric",
	Meta: "https://meta.fabricmc.net/v2/",
	Repo: "https://maven.fabricmc.net/",
}

// Quilt is the Quilt loader.
var Quilt = FabricLike{
	Name: "quilt",
	Meta: "https://meta.quiltmc.org/v3/",
	Repo: "https://maven.quiltmc.org/repository/release/",
}

// ModrinthAPI serves Fabric API version metadata.
var ModrinthAPI = "https://api.modrinth.com/v2/"

// fabricAPIProject is the Modrinth slug of the Fabric API mod.
const fabricAPIProject = "fabric-api"

// LoaderMeta is the response of the loader metadata endpoint.
type LoaderMeta struct {
	Loader       MetaArtifact  `json:"loader"`
	Intermediary MetaArtifact  `json:"intermediary"`
	Hashed       *MetaArtifact `json:"hashed,omitempty"`
	LauncherMeta struct {
		Libraries struct {
			Common []MetaLibrary `json:"common"`
			Client []MetaLibrary `json:"client"`
			Server []MetaLibrary `json:"server"`
		} `json:"libraries"`
		MainClass json.RawMessage `json:"mainClass"`
	} `json:"launcherMeta"`
}

// MetaArtifact is a maven artifact named by the metadata endpoint.
type MetaArtifact struct {
	Maven   string `json:"maven"`
	Version string `json:"version"`
}

// MetaLibrary is a library entry of launcherMeta.
type MetaLibrary struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
	SHA1 string `json:"sha1,omitempty"`
}

// MainClassFor returns the entry point for side. Old metadata uses a single
// string for both sides.
func (m *LoaderMeta) MainClassFor(side string) (string, error) {
	raw := m.LauncherMeta.MainClass
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single, nil
	}
	var sided SidedValue
	if err := json.Unmarshal(raw, &sided); err != nil {
		return "", err
	}
	return sided.For(side), nil
}

// Libraries returns every library the loader needs on side, with the
// loader and mappings artifacts first.
func (m *LoaderMeta) Libraries(f FabricLike, side string) []MetaLibrary {
	var libs []MetaLibrary
	if m.Hashed != nil && m.Hashed.Maven != "" {
		libs = append(libs, MetaLibrary{Name: m.Hashed.Maven, URL: f.Repo})
	}
	libs = append(libs,
		MetaLibrary{Name: m.Intermediary.Maven, URL: Fabric.Repo},
		MetaLibrary{Name: m.Loader.Maven, URL: f.Repo},
	)
	libs = append(libs, m.LauncherMeta.Libraries.Common...)
	if side == "server" {
		libs = append(libs, m.LauncherMeta.Libraries.Server...)
	} else {
		libs = append(libs, m.LauncherMeta.Libraries.Client...)
	}
	return libs
}

// modrinthVersion is the subset of a Modrinth version used here.
type modrinthVersion struct {
	VersionNumber string   `json:"version_number"`
	GameVersions  []string `json:"game_versions"`
	Files         []struct {
		URL      string            `json:"url"`
		Filename string            `json:"filename"`
		Primary  bool              `json:"primary"`
		Hashes   map[string]string `json:"hashes"`
		Size     int64             `json:"size"`
	} `json:"files"`
}

type fabricLike struct {
	spec   Spec
	config FabricLike
	req    Request
	env    Env

	mu   sync.Mutex
	meta *LoaderMeta
}

func newFabricLike(spec Spec, config FabricLike, req Request, env Env) *fabricLike {
	return &fabricLike{spec: spec, config: config, req: req, env: env}
}

func (f *fabricLike) Spec() Spec { return f.spec }

// MetaURL returns the metadata endpoint for a game and loader version.
func (c FabricLike) MetaURL(game, version string) string {
	return c.Meta + "versions/loader/" + url.PathEscape(game) + "/" + url.PathEscape(version)
}

func (f *fabricLike) loadMeta(ctx context.Context) (*LoaderMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meta != nil {
		return f.meta, nil
	}
	endpoint := f.config.MetaURL(f.req.gameVersion(), f.spec.Version)
	var meta LoaderMeta
	if err := f.env.Client.GetJSONFirst(ctx, f.env.Vanilla.Candidates(endpoint), &meta); err != nil {
		return nil, fmt.Errorf("%s: fetch loader metadata: %w", f.config.Name, err)
	}
	if meta.Loader.Maven == "" {
		return nil, &UnresolvedProfileError{Loader: f.config.Name, Field: "loader.maven"}
	}
	if meta.Intermediary.Maven == "" {
		return nil, &UnresolvedProfileError{Loader: f.config.Name, Field: "intermediary.maven"}
	}
	f.meta = &meta
	return f.meta, nil
}

// Gather implements Installer.
func (f *fabricLike) Gather(ctx context.Context) ([]downloader.Item, error) {
	meta, err := f.loadMeta(ctx)
	if err != nil {
		return nil, err
	}
	g := f.env.Vanilla
	var items []downloader.Item
	for _, lib := range meta.Libraries(f.config, f.req.side()) {
		c, err := maven.Parse(lib.Name)
		if err != nil {
			return nil, &UnresolvedProfileError{Loader: f.config.Name, Field: "library " + lib.Name, Err: err}
		}
		repo := vanilla.Repo(lib.URL, f.config.Repo)
		items = append(items, downloader.Item{
			URLs: g.Candidates(c.URL(repo)),
			Dest: g.Layout.Library(c),
			Hash: lib.SHA1,
		})
	}

	if f.spec.APIVersion != "" {
		item, ok, err := f.fabricAPIItem(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			items = append(items, item)
		}
	}
	return dedupe(items), nil
}

// fabricAPIItem resolves the requested Fabric API release. A release that
// does not declare the game version is skipped.
func (f *fabricLike) fabricAPIItem(ctx context.Context) (downloader.Item, bool, error) {
	endpoint := ModrinthAPI + "project/" + fabricAPIProject + "/version/" + url.PathEscape(f.spec.APIVersion)
	var v modrinthVersion
	if err := f.env.Client.GetJSONFirst(ctx, []string{endpoint}, &v); err != nil {
		return downloader.Item{}, false, fmt.Errorf("fabric: fetch fabric api %s: %w", f.spec.APIVersion, err)
	}

	game := f.req.gameVersion()
	compatible := false
	for _, gv := range v.GameVersions {
		if gv == game {
			compatible = true
			break
		}
	}
	if !compatible {
		log.Warn("fabric api does not support game version, skipping",
			logging.KeyLoader, f.config.Name, "api", f.spec.APIVersion, "game", game)
		return downloader.Item{}, false, nil
	}

	for i, file := range v.Files {
		if !file.Primary && i != len(v.Files)-1 {
			continue
		}
		if mhttp.IsFileURL(file.URL) {
			break
		}
		return downloader.Item{
			URLs: []string{file.URL},
			Dest: filepath.Join(f.env.layout().Mods(), filepath.Base(file.Filename)),
			Hash: file.Hashes["sha1"],
			Size: file.Size,
		}, true, nil
	}
	return downloader.Item{}, false, &UnresolvedProfileError{Loader: f.config.Name, Field: "fabric api files"}
}

// Install implements Installer. Nothing is transformed on disk; the
// fragment is built from the metadata.
func (f *fabricLike) Install(ctx context.Context) (descriptor.Descriptor, error) {
	meta, err := f.loadMeta(ctx)
	if err != nil {
		return nil, err
	}
	side := f.req.side()
	mainClass, err := meta.MainClassFor(side)
	if err != nil || mainClass == "" {
		return nil, &UnresolvedProfileError{Loader: f.config.Name, Field: "launcherMeta.mainClass", Err: err}
	}

	game := f.req.gameVersion()
	version := meta.Loader.Version
	if version == "" {
		version = f.spec.Version
	}
	libs := make([]any, 0)
	for _, lib := range meta.Libraries(f.config, side) {
		repo := vanilla.Repo(lib.URL, f.config.Repo)
		libs = append(libs, map[string]any{"name": lib.Name, "url": repo})
	}
	return descriptor.Descriptor{
		descriptor.KeyID:           f.config.Name + "-loader-" + version + "-" + game,
		descriptor.KeyInheritsFrom: game,
		descriptor.KeyMainClass:    mainClass,
		descriptor.KeyLibraries:    libs,
		descriptor.KeyArguments: map[string]any{
			"game": []any{},
			"jvm":  []any{},
		},
	}, nil
}

// Close implements Installer.
func (f *fabricLike) Close() error { return nil }
