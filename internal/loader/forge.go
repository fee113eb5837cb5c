package loader

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/kiyonya/miocore/internal/descriptor"
	"github.com/kiyonya/miocore/internal/downloader"
	"github.com/kiyonya/miocore/internal/logging"
	"github.com/kiyonya/miocore/internal/maven"
)

// installerSession is an unpacked installer archive.
type installerSession struct {
	jar     string
	dir     string
	profile *Profile
}

// processorInstaller installs Forge and NeoForge. Forge installers for old
// game versions carry a legacy profile, which is delegated to legacyForge.
type processorInstaller struct {
	spec   Spec
	family Family
	req    Request
	env    Env

	mu     sync.Mutex
	sess   *installerSession
	legacy *legacyForge
}

func newProcessorInstaller(spec Spec, family Family, req Request, env Env) *processorInstaller {
	return &processorInstaller{spec: spec, family: family, req: req, env: env}
}

func (p *processorInstaller) Spec() Spec { return p.spec }

// prepare downloads and unpacks the installer once.
func (p *processorInstaller) prepare(ctx context.Context) (*installerSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess != nil {
		return p.sess, nil
	}

	game := p.req.gameVersion()
	coord := p.family.Installer(game, p.spec.Version)
	jar := p.env.layout().Library(coord)
	item := downloader.Item{
		URLs: p.env.Vanilla.Candidates(coord.URL(p.family.Repo)),
		Dest: jar,
	}
	if err := p.env.Fetcher.Fetch(ctx, "installer", []downloader.Item{item}); err != nil {
		return nil, fmt.Errorf("%s: fetch installer %s: %w", p.family.Name, coord, err)
	}

	dir, err := filepath.Abs(filepath.Join(p.env.WorkDir, uuid.NewString()))
	if err != nil {
		return nil, err
	}
	if err := Unpack(jar, dir); err != nil {
		discardInstaller(jar)
		return nil, fmt.Errorf("%s: unpack installer: %w", p.family.Name, err)
	}
	profile, err := LoadProfile(dir)
	if err != nil {
		os.RemoveAll(dir)
		discardInstaller(jar)
		return nil, fmt.Errorf("%s: %w", p.family.Name, err)
	}

	if profile.Legacy() != p.family.ExpectLegacy(game) {
		log.Warn("install profile shape differs from game version expectation",
			logging.KeyLoader, p.family.Name, "game", game, "legacy", profile.Legacy())
	}
	p.sess = &installerSession{jar: jar, dir: dir, profile: profile}
	if profile.Legacy() {
		p.legacy = &legacyForge{spec: p.spec, req: p.req, env: p.env, sess: p.sess}
	}
	return p.sess, nil
}

// discardInstaller removes an installer jar that could not be read. The
// jar carries no hash, so a kept copy would be accepted as-is next run.
func discardInstaller(jar string) {
	if err := os.Remove(jar); err != nil && !os.IsNotExist(err) {
		log.Warn("remove unreadable installer", logging.KeyDest, jar, logging.KeyError, err)
	}
}

// Gather implements Installer.
func (p *processorInstaller) Gather(ctx context.Context) ([]downloader.Item, error) {
	sess, err := p.prepare(ctx)
	if err != nil {
		return nil, err
	}
	if p.legacy != nil {
		return p.legacy.gather()
	}

	prof := sess.profile
	libs := append([]descriptor.Library(nil), prof.Libraries...)
	fragment, err := prof.LoadFragment(sess.dir)
	if err != nil {
		return nil, &UnresolvedProfileError{Loader: p.family.Name, Field: prof.FragmentEntry(), Err: err}
	}
	fragLibs, err := fragment.Libraries()
	if err != nil {
		return nil, err
	}
	libs = append(libs, fragLibs...)

	var items []downloader.Item
	for _, lib := range libs {
		if item, ok := p.libraryItem(sess, lib); ok {
			items = append(items, item)
		}
	}
	if item, ok, err := p.pathItem(sess); err != nil {
		return nil, err
	} else if ok {
		items = append(items, item)
	}

	mojmaps, ok, err := p.mojmapsItem(prof)
	if err != nil {
		return nil, err
	}
	if ok {
		items = append(items, mojmaps)
	}
	return dedupe(items), nil
}

// libraryItem maps a profile library. Libraries with an empty URL are
// shipped inside the installer under maven/.
func (p *processorInstaller) libraryItem(sess *installerSession, lib descriptor.Library) (downloader.Item, bool) {
	g := p.env.Vanilla
	if g.Rules != nil && !g.Rules.Allowed(lib.Rules) {
		return downloader.Item{}, false
	}
	if lib.Downloads != nil && lib.Downloads.Artifact != nil && lib.Downloads.Artifact.URL == "" {
		a := lib.Downloads.Artifact
		rel := a.Path
		if rel == "" {
			c, err := maven.Parse(lib.Name)
			if err != nil {
				return downloader.Item{}, false
			}
			rel = c.Path()
		}
		return downloader.Item{
			URLs: []string{embeddedURL(sess.dir, rel)},
			Dest: g.Layout.LibraryPath(rel),
			Hash: a.SHA1,
			Size: a.Size,
		}, true
	}
	return g.LibraryItem(lib, p.family.Repo)
}

// pathItem returns the item for the profile's path artifact, extracted
// from the installer when present there.
func (p *processorInstaller) pathItem(sess *installerSession) (downloader.Item, bool, error) {
	if sess.profile.Path == "" {
		return downloader.Item{}, false, nil
	}
	c, err := maven.Parse(sess.profile.Path)
	if err != nil {
		return downloader.Item{}, false, &UnresolvedProfileError{Loader: p.family.Name, Field: "path", Err: err}
	}
	urls := []string{embeddedURL(sess.dir, c.Path())}
	urls = append(urls, p.env.Vanilla.Candidates(c.URL(p.family.Repo))...)
	return downloader.Item{URLs: urls, Dest: p.env.layout().Library(c)}, true, nil
}

// mojmapsItem replaces the mappings download processor with a fetch item
// taken from the vanilla descriptor.
func (p *processorInstaller) mojmapsItem(prof *Profile) (downloader.Item, bool, error) {
	side := p.req.side()
	found := false
	for _, proc := range prof.Processors {
		if proc.RunsOn(side) && proc.HasArg(p.family.Sentinel) {
			found = true
			break
		}
	}
	if !found {
		return downloader.Item{}, false, nil
	}
	target := prof.Data["MOJMAPS"].For(side)
	if !maven.IsBracketed(target) {
		return downloader.Item{}, false, nil
	}
	dest, err := maven.LocalPath(p.env.layout().Libraries, target)
	if err != nil {
		return downloader.Item{}, false, &UnresolvedProfileError{Loader: p.family.Name, Field: "data.MOJMAPS", Err: err}
	}
	dl, err := p.req.Vanilla.Download(side + "_mappings")
	if err != nil {
		return downloader.Item{}, false, &UnresolvedProfileError{Loader: p.family.Name, Field: "downloads." + side + "_mappings", Err: err}
	}
	return downloader.Item{
		URLs: p.env.Vanilla.Candidates(dl.URL),
		Dest: dest,
		Hash: dl.SHA1,
		Size: dl.Size,
	}, true, nil
}

// Install implements Installer.
func (p *processorInstaller) Install(ctx context.Context) (descriptor.Descriptor, error) {
	sess, err := p.prepare(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	if p.legacy != nil {
		return p.legacy.install()
	}

	side := p.req.side()
	game := p.req.gameVersion()
	if sess.profile.Minecraft != "" {
		game = sess.profile.Minecraft
	}
	layout := p.env.layout()
	tmpl, err := NewTemplate(p.family.Name, sess.profile, TemplateEnv{
		Side:             side,
		Libraries:        layout.Libraries,
		WorkDir:          sess.dir,
		InstallerJar:     sess.jar,
		Root:             layout.Root,
		MinecraftJar:     layout.GameJar(p.req.Vanilla.ID(), side),
		MinecraftVersion: game,
	})
	if err != nil {
		return nil, err
	}

	pipeline := &Pipeline{
		Loader:    p.family.Name,
		Profile:   sess.profile,
		Side:      side,
		Libraries: layout.Libraries,
		Template:  tmpl,
		Sentinel:  p.family.Sentinel,
		Java:      p.env.Java,
		JavaMajor: p.req.Vanilla.JavaMajor(),
		Runner:    p.env.Runner,
		Dir:       sess.dir,
		Tracker:   p.env.Tracker,
		Phase:     p.family.Name + " processors",
	}
	if err := pipeline.Run(ctx); err != nil {
		return nil, err
	}

	fragment, err := sess.profile.LoadFragment(sess.dir)
	if err != nil {
		return nil, &UnresolvedProfileError{Loader: p.family.Name, Field: sess.profile.FragmentEntry(), Err: err}
	}
	return fragment, nil
}

// Close removes the unpacked installer.
func (p *processorInstaller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess == nil || p.sess.dir == "" {
		return nil
	}
	dir := p.sess.dir
	p.sess.dir = ""
	return os.RemoveAll(dir)
}

// embeddedURL returns a file URL for a maven path inside the unpacked
// installer.
func embeddedURL(dir, rel string) string {
	return embeddedFile(dir, path.Join("maven", rel))
}

// embeddedFile returns a file URL for an entry of the unpacked installer.
func embeddedFile(dir, entry string) string {
	return "file://" + path.Join(filepath.ToSlash(dir), entry)
}
