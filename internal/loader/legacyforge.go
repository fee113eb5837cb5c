package loader

import (
	"fmt"

	"github.com/kiyonya/miocore/internal/descriptor"
	"github.com/kiyonya/miocore/internal/downloader"
	"github.com/kiyonya/miocore/internal/maven"
	"github.com/kiyonya/miocore/internal/vanilla"
)

// legacyForge installs Forge releases whose profile embeds the fragment as
// versionInfo. No processors run.
type legacyForge struct {
	spec Spec
	req  Request
	env  Env
	sess *installerSession
}

// isCoreForge reports whether c is the loader library itself.
func isCoreForge(c maven.Coordinate) bool {
	return c.Group == "net.minecraftforge" && (c.Artifact == "forge" || c.Artifact == "minecraftforge")
}

// gather maps versionInfo libraries. Legacy profiles carry no hashes.
func (l *legacyForge) gather() ([]downloader.Item, error) {
	libs, err := l.sess.profile.VersionInfo.Libraries()
	if err != nil {
		return nil, &UnresolvedProfileError{Loader: "forge", Field: "versionInfo.libraries", Err: err}
	}
	g := l.env.Vanilla
	side := l.req.side()

	var items []downloader.Item
	for _, lib := range libs {
		if !lib.RequiredOn(side) {
			continue
		}
		if g.Rules != nil && !g.Rules.Allowed(lib.Rules) {
			continue
		}
		c, err := maven.Parse(lib.Name)
		if err != nil {
			return nil, &UnresolvedProfileError{Loader: "forge", Field: "library " + lib.Name, Err: err}
		}

		if isCoreForge(c) {
			items = append(items, l.universalItem(c))
			continue
		}
		repo := vanilla.Repo(lib.URL, vanilla.LibrariesURL)
		items = append(items, downloader.Item{
			URLs: g.Candidates(c.URL(repo)),
			Dest: g.Layout.Library(c),
		})
	}
	return dedupe(items), nil
}

// universalItem places the universal jar at the path the fragment names.
// The copy embedded in the installer is tried first.
func (l *legacyForge) universalItem(c maven.Coordinate) downloader.Item {
	var urls []string
	if fp := l.sess.profile.Install.FilePath; fp != "" {
		urls = append(urls, embeddedFile(l.sess.dir, fp))
	}
	urls = append(urls, l.env.Vanilla.Candidates(c.WithClassifier("universal").URL(Forge.Repo))...)
	return downloader.Item{URLs: urls, Dest: l.env.Vanilla.Layout.Library(c)}
}

func (l *legacyForge) install() (descriptor.Descriptor, error) {
	vi := l.sess.profile.VersionInfo
	if vi.ID() == "" {
		return nil, &UnresolvedProfileError{Loader: "forge", Field: "versionInfo.id"}
	}
	fragment, err := descriptor.FromValue(map[string]any(vi))
	if err != nil {
		return nil, fmt.Errorf("forge: copy versionInfo: %w", err)
	}
	return fragment, nil
}
