package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kiyonya/miocore/internal/config"
	"github.com/kiyonya/miocore/internal/descriptor"
	"github.com/kiyonya/miocore/internal/downloader"
	mhttp "github.com/kiyonya/miocore/internal/http"
	"github.com/kiyonya/miocore/internal/install"
	"github.com/kiyonya/miocore/internal/java"
	"github.com/kiyonya/miocore/internal/logging"
	"github.com/kiyonya/miocore/internal/progress"
	"github.com/kiyonya/miocore/internal/vanilla"
	"github.com/kiyonya/miocore/pkg/casstore"
)

type globalFlags struct {
	config   string
	root     string
	logLevel string
	progress bool
}

// loadConfig layers defaults, the config file, MIO_ variables and flags.
func loadConfig(flags *globalFlags) (config.Config, error) {
	cfg := config.Default()
	if flags.config != "" {
		fileCfg, err := config.LoadFromFile(flags.config)
		if err != nil {
			return cfg, usageError{err}
		}
		cfg = fileCfg
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return cfg, usageError{err}
	}
	cfg = cfg.Merge(config.Config{
		Root:     flags.root,
		Progress: flags.progress,
		Log:      config.LogConfig{Level: flags.logLevel},
	})
	if err := cfg.Validate(); err != nil {
		return cfg, usageError{err}
	}
	logging.Init(cfg.Log.Format, cfg.Log.Level, os.Stderr)
	return cfg, nil
}

// session holds the collaborators built from a config.
type session struct {
	cfg      config.Config
	gatherer *vanilla.Gatherer
	fetch    downloader.Options
	java     java.Resolver
	tracker  *progress.Tracker
	reporter *progress.Reporter
	cache    *casstore.Store
}

func newSession(ctx context.Context, cfg config.Config) (*session, error) {
	httpOpts := mhttp.DefaultOptions()
	httpOpts.HeaderTimeout = cfg.HTTP.Timeout
	httpOpts.UserAgent = cfg.HTTP.UserAgent
	httpOpts.FileRoot = install.DefaultWorkDir(cfg.Root)

	s := &session{
		cfg: cfg,
		gatherer: &vanilla.Gatherer{
			Layout:       vanilla.NewLayout(cfg.Root, cfg.LibraryDir),
			Rules:        descriptor.CurrentPlatform(),
			Mirrors:      cfg.MirrorTable(),
			PreferMirror: cfg.PreferMirror,
		},
		java:    &java.Locator{Homes: cfg.JavaHomes},
		tracker: progress.NewTracker(progress.Options{}),
	}
	s.fetch = downloader.Options{
		Client:     mhttp.NewClient(httpOpts),
		MaxRetries: cfg.Retry.Attempts,
		RetryDelay: cfg.Retry.Delay,
		Tracker:    s.tracker,
	}

	if cfg.CacheBucket != "" {
		cache, err := casstore.Open(ctx, cfg.CacheBucket)
		if err != nil {
			s.tracker.Close()
			return nil, storageError{fmt.Errorf("open artifact cache: %w", err)}
		}
		s.cache = cache
		s.fetch.Cache = cache
	}

	if cfg.Progress {
		s.reporter = progress.NewReporter(progress.ReporterOptions{Output: os.Stderr})
		s.reporter.Attach(s.tracker)
	}
	return s, nil
}

// Close flushes progress output and releases the cache.
func (s *session) Close() {
	s.tracker.Close()
	if s.reporter != nil {
		s.reporter.Wait()
	}
	if s.cache != nil {
		s.cache.Close()
	}
}

// onInterrupt calls abort on the first SIGINT or SIGTERM until stop is
// called.
func onInterrupt(abort func()) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\n[mio] Received interrupt, aborting...")
			abort()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
