package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiyonya/miocore/internal/install"
	"github.com/kiyonya/miocore/internal/loader"
)

func newInstallCmd(flags *globalFlags) *cobra.Command {
	var (
		loaders      []string
		side         string
		preferMirror bool
	)
	cmd := &cobra.Command{
		Use:   "install <version>",
		Short: "Install a game version with optional mod loaders",
		Long: `Install a game version into the root directory.

Loaders are given as kind:version and installed in order:
  --loader forge:47.1.0
  --loader neoforge:20.4.80
  --loader fabric:0.14.21+api:0.83.0+1.20.1
  --loader quilt:0.19.1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs := make([]loader.Spec, 0, len(loaders))
			for _, l := range loaders {
				spec, err := loader.ParseSpec(l)
				if err != nil {
					return usageError{err}
				}
				specs = append(specs, spec)
			}

			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if side != "" {
				cfg.Side = side
			}
			if preferMirror {
				cfg.PreferMirror = true
			}
			if err := cfg.Validate(); err != nil {
				return usageError{err}
			}

			ctx := cmd.Context()
			s, err := newSession(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			p := install.New(s.gatherer, install.Options{
				Side:           cfg.Side,
				AssetWorkers:   cfg.AssetWorkers,
				LibraryWorkers: cfg.LibraryWorkers,
				Fetch:          s.fetch,
				Java:           s.java,
			})
			stop := onInterrupt(p.Abort)
			defer stop()

			res, err := p.Install(ctx, install.Request{Version: args[0], Loaders: specs})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed %s (%d files)\n%s\n", res.ID, res.Files, absPath(res.Path))
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&loaders, "loader", "l", nil, "mod loader as kind:version (repeatable)")
	cmd.Flags().StringVar(&side, "side", "", "client or server")
	cmd.Flags().BoolVar(&preferMirror, "prefer-mirror", false, "try mirrors before upstream hosts")
	return cmd
}
