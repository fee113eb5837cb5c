package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kiyonya/miocore/internal/descriptor"
	"github.com/kiyonya/miocore/internal/downloader"
	mhttp "github.com/kiyonya/miocore/internal/http"
	"github.com/kiyonya/miocore/internal/java"
	"github.com/kiyonya/miocore/internal/loader"
	"github.com/kiyonya/miocore/internal/logging"
	"github.com/kiyonya/miocore/internal/vanilla"
)

var log = logging.L("install")

// Progress phases reported by the pipeline.
const (
	PhaseDescriptor = "descriptor"
	PhaseInstaller  = "installer"
	PhaseLibraries  = "libraries"
	PhaseAssets     = "assets"
)

// ErrVersionNotFound is returned when the manifest has no such version.
var ErrVersionNotFound = errors.New("install: version not found")

// Options configures a Pipeline.
type Options struct {
	Side           string
	AssetWorkers   int
	LibraryWorkers int

	// Fetch is the template for every batch. Workers and Phase are set
	// per batch.
	Fetch downloader.Options

	Java   java.Resolver
	Runner loader.ProcessRunner

	// WorkDir holds unpacked installers. Defaults to <root>/.mio-work.
	WorkDir string
}

func (o Options) withDefaults(layout vanilla.Layout) Options {
	if o.Side == "" {
		o.Side = "client"
	}
	if o.AssetWorkers <= 0 {
		o.AssetWorkers = 32
	}
	if o.LibraryWorkers <= 0 {
		o.LibraryWorkers = 8
	}
	if o.WorkDir == "" {
		o.WorkDir = DefaultWorkDir(layout.Root)
	}
	if o.Fetch.Client == nil {
		httpOpts := mhttp.DefaultOptions()
		httpOpts.FileRoot = o.WorkDir
		o.Fetch.Client = mhttp.NewClient(httpOpts)
	}
	return o
}

// DefaultWorkDir returns the directory installers are unpacked into for a
// game root. Clients passed in Options.Fetch should use it as their
// FileRoot so embedded libraries can be read.
func DefaultWorkDir(root string) string {
	return filepath.Join(root, ".mio-work")
}

// Request names the version and loaders to install.
type Request struct {
	// Version is a version id, or "latest"/"snapshot". Ignored when
	// Vanilla is set.
	Version string
	Vanilla descriptor.Descriptor
	Loaders []loader.Spec
}

// Result describes a finished installation.
type Result struct {
	ID         string
	Path       string
	Descriptor descriptor.Descriptor
	Files      int
}

// Pipeline runs installations. One installation runs at a time.
type Pipeline struct {
	gatherer *vanilla.Gatherer
	opts     Options

	run   sync.Mutex
	mu    sync.Mutex
	batch *downloader.Batch

	cancel  context.CancelFunc
	aborted bool
}

// New creates a pipeline that installs into the gatherer's layout.
func New(g *vanilla.Gatherer, opts Options) *Pipeline {
	return &Pipeline{gatherer: g, opts: opts.withDefaults(g.Layout)}
}

// Abort stops the running installation: queued downloads are dropped,
// in-flight ones cancelled, and no further phase starts. It is a no-op
// when nothing is running.
func (p *Pipeline) Abort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return
	}
	p.aborted = true
	if p.batch != nil {
		p.batch.Abort()
	}
	p.cancel()
}

// Install provisions req and writes the merged descriptor.
func (p *Pipeline) Install(ctx context.Context, req Request) (*Result, error) {
	p.run.Lock()
	defer p.run.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel, p.aborted = cancel, false
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.cancel = nil
		p.mu.Unlock()
		cancel()
	}()

	res, err := p.install(ctx, req)
	if err != nil && p.wasAborted() && !errors.Is(err, downloader.ErrAborted) {
		err = fmt.Errorf("%w: %w", downloader.ErrAborted, err)
	}
	return res, err
}

func (p *Pipeline) wasAborted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aborted
}

func (p *Pipeline) install(ctx context.Context, req Request) (*Result, error) {
	side := p.opts.Side
	base, err := p.resolveVanilla(ctx, req)
	if err != nil {
		return nil, err
	}
	logger := log.With("version", base.ID(), "side", side)

	items, err := p.gatherer.Gather(base, side)
	if err != nil {
		return nil, fmt.Errorf("gather %s: %w", base.ID(), err)
	}

	env := loader.Env{
		Vanilla: p.gatherer,
		Client:  p.opts.Fetch.Client,
		Fetcher: loader.FetchFunc(p.fetchInstaller),
		Java:    p.opts.Java,
		Runner:  p.opts.Runner,
		Tracker: p.opts.Fetch.Tracker,
		WorkDir: p.opts.WorkDir,
	}
	var installers []loader.Installer
	defer func() {
		for _, inst := range installers {
			if err := inst.Close(); err != nil {
				logger.Warn("cleanup failed", logging.KeyLoader, inst.Spec().String(), logging.KeyError, err)
			}
		}
	}()
	for _, spec := range req.Loaders {
		inst, err := loader.New(spec, loader.Request{Side: side, Vanilla: base}, env)
		if err != nil {
			return nil, err
		}
		installers = append(installers, inst)

		more, err := inst.Gather(ctx)
		if err != nil {
			return nil, fmt.Errorf("gather %s: %w", spec, err)
		}
		logger.Info("gathered loader files", logging.KeyLoader, spec.String(), "files", len(more))
		items = append(items, more...)
	}

	files, err := p.fetch(ctx, PhaseLibraries, items, p.opts.LibraryWorkers)
	if err != nil {
		return nil, err
	}

	if side != "server" {
		n, err := p.fetchAssets(ctx, base)
		if err != nil {
			return nil, err
		}
		files += n
	}

	fragments := make([]descriptor.Descriptor, 0, len(installers))
	for _, inst := range installers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Info("installing loader", logging.KeyLoader, inst.Spec().String())
		fragment, err := inst.Install(ctx)
		if err != nil {
			return nil, fmt.Errorf("install %s: %w", inst.Spec(), err)
		}
		fragments = append(fragments, fragment)
	}

	merged := descriptor.MergeAll(base, fragments...)
	if len(fragments) > 0 {
		delete(merged, descriptor.KeyInheritsFrom)
		if merged.ID() != base.ID() {
			merged["jar"] = base.ID()
		}
	}
	id := merged.ID()
	if id == "" {
		return nil, fmt.Errorf("install: merged descriptor has no id")
	}
	path := p.gatherer.Layout.DescriptorPath(id)
	if err := merged.Save(path); err != nil {
		return nil, err
	}
	logger.Info("installation complete", "id", id, "files", files)
	return &Result{ID: id, Path: path, Descriptor: merged, Files: files}, nil
}

// resolveVanilla returns the request's descriptor, a local copy, or one
// fetched through the version manifest.
func (p *Pipeline) resolveVanilla(ctx context.Context, req Request) (descriptor.Descriptor, error) {
	if req.Vanilla != nil {
		return req.Vanilla, nil
	}
	if req.Version == "" {
		return nil, fmt.Errorf("install: no version requested")
	}

	switch req.Version {
	case "latest", "release", "snapshot":
	default:
		local := p.gatherer.Layout.DescriptorPath(req.Version)
		if _, err := os.Stat(local); err == nil {
			if d, err := descriptor.Load(local); err == nil && d.ID() == req.Version {
				return d, nil
			}
		}
	}

	manifest, err := p.gatherer.FetchManifest(ctx, p.opts.Fetch.Client)
	if err != nil {
		return nil, err
	}
	entry, ok := manifest.Find(req.Version)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVersionNotFound, req.Version)
	}
	item := p.gatherer.DescriptorItem(entry)
	if _, err := p.fetch(ctx, PhaseDescriptor, []downloader.Item{item}, 1); err != nil {
		return nil, err
	}
	return descriptor.Load(item.Dest)
}

func (p *Pipeline) fetchAssets(ctx context.Context, base descriptor.Descriptor) (int, error) {
	ai, err := base.AssetIndex()
	if err != nil {
		if errors.Is(err, descriptor.ErrMissingField) {
			return 0, nil
		}
		return 0, err
	}
	objects, err := p.gatherer.AssetItems(p.gatherer.Layout.AssetIndex(ai.ID))
	if err != nil {
		return 0, err
	}
	return p.fetch(ctx, PhaseAssets, objects, p.opts.AssetWorkers)
}

func (p *Pipeline) fetchInstaller(ctx context.Context, phase string, items []downloader.Item) error {
	if phase == "" {
		phase = PhaseInstaller
	}
	_, err := p.fetch(ctx, phase, items, p.opts.LibraryWorkers)
	return err
}

// fetch runs one batch and makes it the target of Abort.
func (p *Pipeline) fetch(ctx context.Context, phase string, items []downloader.Item, workers int) (int, error) {
	opts := p.opts.Fetch
	opts.Workers = workers
	opts.Phase = phase
	b := downloader.NewBatch(opts)
	b.Add(items...)

	p.mu.Lock()
	if p.aborted {
		p.mu.Unlock()
		return 0, downloader.ErrAborted
	}
	p.batch = b
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.batch = nil
		p.mu.Unlock()
	}()

	log.Info("fetching files", "phase", phase, "files", b.Len(), "workers", workers)
	if err := b.Run(ctx); err != nil {
		return 0, fmt.Errorf("fetch %s: %w", phase, err)
	}
	return b.Len(), nil
}
