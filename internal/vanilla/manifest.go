package vanilla

import (
	"context"
	"fmt"

	"github.com/kiyonya/miocore/internal/downloader"
)

// ManifestURL is the upstream version manifest.
const ManifestURL = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"

// Manifest lists every published game version.
type Manifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []ManifestEntry `json:"versions"`
}

// ManifestEntry points at one version descriptor.
type ManifestEntry struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
	SHA1 string `json:"sha1"`
}

// JSONGetter fetches and decodes JSON from the first working URL.
type JSONGetter interface {
	GetJSONFirst(ctx context.Context, urls []string, v any) error
}

// FetchManifest downloads the version manifest through the mirror table.
func (g *Gatherer) FetchManifest(ctx context.Context, client JSONGetter) (*Manifest, error) {
	var m Manifest
	if err := client.GetJSONFirst(ctx, g.Candidates(ManifestURL), &m); err != nil {
		return nil, fmt.Errorf("fetch version manifest: %w", err)
	}
	return &m, nil
}

// Find returns the entry for id. "latest" and "snapshot" resolve to the
// current release and snapshot.
func (m *Manifest) Find(id string) (ManifestEntry, bool) {
	switch id {
	case "latest", "release":
		id = m.Latest.Release
	case "snapshot":
		id = m.Latest.Snapshot
	}
	for _, v := range m.Versions {
		if v.ID == id {
			return v, true
		}
	}
	return ManifestEntry{}, false
}

// DescriptorItem returns the item that fetches a version descriptor into
// the layout.
func (g *Gatherer) DescriptorItem(e ManifestEntry) downloader.Item {
	return downloader.Item{
		URLs: g.Candidates(e.URL),
		Dest: g.Layout.DescriptorPath(e.ID),
		Hash: e.SHA1,
	}
}
