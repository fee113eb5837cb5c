package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiyonya/miocore/internal/descriptor"
)

func newMergeCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "merge <base.json> <fragment.json>...",
		Short: "Merge descriptor fragments onto a base descriptor",
		Long: `Merge fragments onto a base descriptor, left to right. Lists are
concatenated base first, objects merge recursively, scalars are replaced and
minecraftArguments are merged flag by flag.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return usageError{fmt.Errorf("--output is required")}
			}
			base, err := descriptor.Load(args[0])
			if err != nil {
				return usageError{err}
			}
			fragments := make([]descriptor.Descriptor, 0, len(args)-1)
			for _, path := range args[1:] {
				f, err := descriptor.Load(path)
				if err != nil {
					return usageError{err}
				}
				fragments = append(fragments, f)
			}

			merged := descriptor.MergeAll(base, fragments...)
			if err := merged.Save(output); err != nil {
				return storageError{err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d fragment(s) into %s\n", len(fragments), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (required)")
	return cmd
}
