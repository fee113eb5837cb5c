package vanilla

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kiyonya/miocore/internal/descriptor"
	"github.com/kiyonya/miocore/internal/downloader"
	mhttp "github.com/kiyonya/miocore/internal/http"
	"github.com/kiyonya/miocore/internal/logging"
	"github.com/kiyonya/miocore/internal/maven"
	"github.com/kiyonya/miocore/internal/mirror"
)

var log = logging.L("vanilla")

// Default upstream hosts.
const (
	LibrariesURL = "https://libraries.minecraft.net/"
	ResourcesURL = "https://resources.download.minecraft.net/"
)

// Gatherer maps descriptor entries to fetch items under a Layout.
type Gatherer struct {
	Layout       Layout
	Rules        descriptor.RuleEvaluator
	Mirrors      *mirror.Table
	PreferMirror bool
}

// Candidates returns the ordered candidate URLs for url.
func (g *Gatherer) Candidates(url string) []string {
	return g.Mirrors.Resolve(url, g.PreferMirror)
}

// Repo returns the repository named by remote metadata, or fallback when
// it is empty or a local file URL. Only installer code builds file URLs.
func Repo(url, fallback string) string {
	if url == "" {
		return fallback
	}
	if mhttp.IsFileURL(url) {
		log.Warn("ignoring file repository from metadata", logging.KeyURL, url)
		return fallback
	}
	return url
}

// Gather returns the game jar, the libraries allowed on this platform and
// the asset index of d. Asset objects need the index on disk; see AssetItems.
func (g *Gatherer) Gather(d descriptor.Descriptor, side string) ([]downloader.Item, error) {
	jar, err := g.GameJarItem(d, side)
	if err != nil {
		return nil, err
	}
	items := []downloader.Item{jar}

	libs, err := d.Libraries()
	if err != nil {
		return nil, err
	}
	items = append(items, g.LibraryItems(libs, LibrariesURL)...)

	if side != "server" {
		if _, ok := d[descriptor.KeyAssetIndex]; ok {
			idx, err := g.AssetIndexItem(d)
			if err != nil {
				return nil, err
			}
			items = append(items, idx)
		}
	}
	return items, nil
}

// GameJarItem returns the item for downloads.<side>.
func (g *Gatherer) GameJarItem(d descriptor.Descriptor, side string) (downloader.Item, error) {
	dl, err := d.Download(side)
	if err != nil {
		return downloader.Item{}, err
	}
	return downloader.Item{
		URLs: g.Candidates(dl.URL),
		Dest: g.Layout.GameJar(d.ID(), side),
		Hash: dl.SHA1,
		Size: dl.Size,
	}, nil
}

// LibraryItems maps libraries to items, skipping those the rule evaluator
// rejects and those with no resolvable URL. repo is used for libraries that
// carry only a maven name.
func (g *Gatherer) LibraryItems(libs []descriptor.Library, repo string) []downloader.Item {
	var items []downloader.Item
	for _, lib := range libs {
		if g.Rules != nil && !g.Rules.Allowed(lib.Rules) {
			continue
		}
		if item, ok := g.LibraryItem(lib, repo); ok {
			items = append(items, item)
		}
		if native, ok := g.nativeItem(lib); ok {
			items = append(items, native)
		}
	}
	return items
}

// LibraryItem maps the main artifact of lib. It reports false when lib has
// neither a download URL nor a name, or only natives.
func (g *Gatherer) LibraryItem(lib descriptor.Library, repo string) (downloader.Item, bool) {
	if lib.Downloads != nil && lib.Downloads.Artifact != nil {
		a := lib.Downloads.Artifact
		dest := ""
		if a.Path != "" {
			dest = g.Layout.LibraryPath(a.Path)
		} else if c, err := maven.Parse(lib.Name); err == nil {
			dest = g.Layout.Library(c)
		}
		if a.URL == "" || dest == "" {
			return downloader.Item{}, false
		}
		if mhttp.IsFileURL(a.URL) {
			log.Warn("skipping library with file URL", "name", lib.Name, logging.KeyURL, a.URL)
			return downloader.Item{}, false
		}
		return downloader.Item{URLs: g.Candidates(a.URL), Dest: dest, Hash: a.SHA1, Size: a.Size}, true
	}

	if lib.Downloads != nil || len(lib.Natives) > 0 {
		return downloader.Item{}, false
	}

	c, err := maven.Parse(lib.Name)
	if err != nil {
		log.Warn("skipping library with invalid name", "name", lib.Name)
		return downloader.Item{}, false
	}
	repo = Repo(lib.URL, repo)
	return downloader.Item{
		URLs: g.Candidates(c.URL(repo)),
		Dest: g.Layout.Library(c),
		Hash: lib.SHA1,
	}, true
}

func (g *Gatherer) nativeItem(lib descriptor.Library) (downloader.Item, bool) {
	p, ok := g.Rules.(descriptor.Platform)
	if !ok || len(lib.Natives) == 0 || lib.Downloads == nil {
		return downloader.Item{}, false
	}
	classifier, ok := p.NativeClassifier(lib)
	if !ok {
		return downloader.Item{}, false
	}
	a, ok := lib.Downloads.Classifiers[classifier]
	if !ok || a.URL == "" || a.Path == "" {
		return downloader.Item{}, false
	}
	return downloader.Item{URLs: g.Candidates(a.URL), Dest: g.Layout.LibraryPath(a.Path), Hash: a.SHA1, Size: a.Size}, true
}

// AssetIndexItem returns the item for the asset index.
func (g *Gatherer) AssetIndexItem(d descriptor.Descriptor) (downloader.Item, error) {
	ai, err := d.AssetIndex()
	if err != nil {
		return downloader.Item{}, err
	}
	if ai.ID == "" || ai.URL == "" {
		return downloader.Item{}, fmt.Errorf("%w: assetIndex.id/url", descriptor.ErrMissingField)
	}
	return downloader.Item{
		URLs: g.Candidates(ai.URL),
		Dest: g.Layout.AssetIndex(ai.ID),
		Hash: ai.SHA1,
		Size: ai.Size,
	}, nil
}

type assetIndexFile struct {
	Objects map[string]struct {
		Hash string `json:"hash"`
		Size int64  `json:"size"`
	} `json:"objects"`
}

// AssetItems reads a downloaded asset index and returns one item per
// distinct object.
func (g *Gatherer) AssetItems(indexPath string) ([]downloader.Item, error) {
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, fmt.Errorf("read asset index: %w", err)
	}
	var idx assetIndexFile
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse asset index: %w", err)
	}

	seen := make(map[string]struct{}, len(idx.Objects))
	items := make([]downloader.Item, 0, len(idx.Objects))
	for name, obj := range idx.Objects {
		if len(obj.Hash) != 40 {
			return nil, fmt.Errorf("asset %q: invalid hash %q", name, obj.Hash)
		}
		if _, ok := seen[obj.Hash]; ok {
			continue
		}
		seen[obj.Hash] = struct{}{}
		rel := obj.Hash[:2] + "/" + obj.Hash
		items = append(items, downloader.Item{
			URLs: g.Candidates(ResourcesURL + rel),
			Dest: g.Layout.AssetObject(obj.Hash),
			Hash: obj.Hash,
			Size: obj.Size,
		})
	}
	return items, nil
}
