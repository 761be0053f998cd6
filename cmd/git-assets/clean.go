package main

import (
	"bufio"

	"github.com/spf13/cobra"

	"github.com/wzshiming/gitassets/pkg/filter"
)

func newCleanCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "clean [<path>]",
		Aliases: []string{"store", "store-file"},
		Short:   "Store stdin in the asset store and print a pointer to it",
		Long: `Store the content received on stdin in the asset store, and print a pointer to it on stdout.

To be used as a git clean filter. <path> is the working tree path (%f) and is only used for logging and the store catalog.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}

			out := bufio.NewWriter(cmd.OutOrStdout())
			f := filter.New(st, filter.WithLogger(opts.logger))
			if _, err := f.Clean(cmd.Context(), cmd.InOrStdin(), out, workTreePath(args)); err != nil {
				return err
			}
			if err := out.Flush(); err != nil {
				return &filter.Error{Kind: filter.KindIO, Path: workTreePath(args), Err: err}
			}
			return nil
		},
	}
}
