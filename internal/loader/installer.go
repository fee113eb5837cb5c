package loader

import (
	"context"
	"fmt"

	"github.com/kiyonya/miocore/internal/descriptor"
	"github.com/kiyonya/miocore/internal/downloader"
	"github.com/kiyonya/miocore/internal/java"
	"github.com/kiyonya/miocore/internal/logging"
	"github.com/kiyonya/miocore/internal/progress"
	"github.com/kiyonya/miocore/internal/vanilla"
)

var log = logging.L("loader")

// Installer gathers and installs one loader.
type Installer interface {
	Spec() Spec

	// Gather returns the files that must be present before Install.
	Gather(ctx context.Context) ([]downloader.Item, error)

	// Install transforms the installation and returns the descriptor
	// fragment for the merger.
	Install(ctx context.Context) (descriptor.Descriptor, error)

	// Close releases working files. It is safe to call more than once.
	Close() error
}

// Fetcher downloads items needed while installing, such as installer jars.
type Fetcher interface {
	Fetch(ctx context.Context, phase string, items []downloader.Item) error
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc func(ctx context.Context, phase string, items []downloader.Item) error

// Fetch implements Fetcher.
func (f FetchFunc) Fetch(ctx context.Context, phase string, items []downloader.Item) error {
	return f(ctx, phase, items)
}

// Request describes the installation a loader is added to.
type Request struct {
	Side    string
	Vanilla descriptor.Descriptor

	// GameVersion defaults to the vanilla descriptor id.
	GameVersion string
}

func (r Request) gameVersion() string {
	if r.GameVersion != "" {
		return r.GameVersion
	}
	return r.Vanilla.ID()
}

func (r Request) side() string {
	if r.Side == "" {
		return "client"
	}
	return r.Side
}

// Env carries the collaborators shared by all installers.
type Env struct {
	Vanilla *vanilla.Gatherer
	Client  vanilla.JSONGetter
	Fetcher Fetcher
	Java    java.Resolver
	Runner  ProcessRunner
	Tracker *progress.Tracker

	// WorkDir holds per-run installer directories.
	WorkDir string
}

func (e Env) layout() vanilla.Layout {
	return e.Vanilla.Layout
}

// New returns the installer for spec.
func New(spec Spec, req Request, env Env) (Installer, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if env.Vanilla == nil {
		return nil, fmt.Errorf("loader: %s: no vanilla gatherer", spec.Kind)
	}
	if env.Runner == nil {
		env.Runner = ExecRunner{}
	}
	if env.Java == nil {
		env.Java = &java.Locator{}
	}

	switch spec.Kind {
	case KindForge, KindNeoForge:
		if env.Fetcher == nil {
			return nil, fmt.Errorf("loader: %s: no fetcher", spec.Kind)
		}
		if spec.Kind == KindForge {
			return newProcessorInstaller(spec, Forge, req, env), nil
		}
		return newProcessorInstaller(spec, NeoForge, req, env), nil
	case KindFabric, KindQuilt:
		if env.Client == nil {
			return nil, fmt.Errorf("loader: %s: no metadata client", spec.Kind)
		}
		if spec.Kind == KindFabric {
			return newFabricLike(spec, Fabric, req, env), nil
		}
		return newFabricLike(spec, Quilt, req, env), nil
	}
	return nil, fmt.Errorf("loader: unknown kind %q", spec.Kind)
}

// dedupe keeps the first item per destination.
func dedupe(items []downloader.Item) []downloader.Item {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		if _, ok := seen[it.Dest]; ok {
			continue
		}
		seen[it.Dest] = struct{}{}
		out = append(out, it)
	}
	return out
}
