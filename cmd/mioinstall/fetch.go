package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiyonya/miocore/internal/downloader"
)

func newFetchCmd(flags *globalFlags) *cobra.Command {
	var (
		hash      string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "fetch <url> <dest>",
		Short: "Fetch one file with mirror failover and verification",
		Long: `Fetch a single file. The URL is expanded through the mirror table,
and the file is verified against --hash (40 hex digits for SHA-1, 64 for
SHA-256) before it is moved into place. A valid existing file is kept
without any network access.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			s, err := newSession(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			item := downloader.Item{
				URLs:      s.gatherer.Candidates(args[0]),
				Dest:      absPath(args[1]),
				Hash:      hash,
				Overwrite: overwrite,
			}
			opts := s.fetch
			opts.Workers = 1
			stop := onInterrupt(cancel)
			defer stop()

			if err := downloader.Fetch(ctx, []downloader.Item{item}, opts); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), item.Dest)
			return nil
		},
	}
	cmd.Flags().StringVar(&hash, "hash", "", "expected SHA-1 or SHA-256 hex digest")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing file even if it is valid")
	return cmd
}
