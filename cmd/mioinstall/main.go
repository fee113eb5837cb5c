package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kiyonya/miocore/internal/downloader"
	"github.com/kiyonya/miocore/internal/install"
	"github.com/kiyonya/miocore/internal/java"
	"github.com/kiyonya/miocore/internal/loader"
)

// Exit codes
const (
	ExitSuccess        = 0
	ExitGeneralError   = 1
	ExitInvalidArgs    = 2
	ExitNetworkError   = 3
	ExitIntegrityError = 4
	ExitLoaderError    = 5
	ExitStorageError   = 6
	ExitAborted        = 7
)

var version = "0.1.0"

// usageError marks errors caused by bad arguments.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// storageError marks failures of the artifact cache or local files.
type storageError struct{ err error }

func (e storageError) Error() string { return e.err.Error() }
func (e storageError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

func newRootCmd() *cobra.Command {
	var flags globalFlags
	root := &cobra.Command{
		Use:           "mioinstall",
		Short:         "Install game versions and mod loaders",
		Long:          `mioinstall resolves a game version, fetches its files with mirror failover and integrity checks, runs the requested mod loader installers and writes one merged version descriptor.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.config, "config", "", "config file (YAML)")
	root.PersistentFlags().StringVar(&flags.root, "root", "", "installation root directory")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&flags.progress, "progress", false, "print progress while fetching")

	root.AddCommand(newInstallCmd(&flags))
	root.AddCommand(newFetchCmd(&flags))
	root.AddCommand(newMergeCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mioinstall v%s\n", version)
		},
	})
	return root
}

// exitCode maps an error to a process exit code.
func exitCode(err error) int {
	var (
		usage     usageError
		storage   storageError
		integrity *downloader.IntegrityError
		network   *downloader.NetworkError
		batch     *downloader.BatchError
		missing   *loader.MissingClasspathError
		profile   *loader.UnresolvedProfileError
		process   *loader.ProcessError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, downloader.ErrAborted), errors.Is(err, context.Canceled):
		return ExitAborted
	case errors.As(err, &usage):
		return ExitInvalidArgs
	case errors.As(err, &storage):
		return ExitStorageError
	case errors.As(err, &missing), errors.As(err, &profile), errors.As(err, &process), errors.Is(err, java.ErrNoRuntime):
		return ExitLoaderError
	case errors.As(err, &integrity):
		return ExitIntegrityError
	case errors.As(err, &network), errors.As(err, &batch), errors.Is(err, install.ErrVersionNotFound):
		return ExitNetworkError
	default:
		return ExitGeneralError
	}
}
