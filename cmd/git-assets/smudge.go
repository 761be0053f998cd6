package main

import (
	"bufio"

	"github.com/spf13/cobra"

	"github.com/wzshiming/gitassets/pkg/filter"
)

func newSmudgeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "smudge [<path>]",
		Aliases: []string{"retrieve", "retrieve-file"},
		Short:   "Read a pointer from stdin and write the referenced content",
		Long: `Read a pointer from stdin, and write the content it references from the asset store to stdout.

To be used as a git smudge filter. <path> is the working tree path (%f) and is used in error messages.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}

			out := bufio.NewWriterSize(cmd.OutOrStdout(), 64*1024)
			f := filter.New(st, filter.WithLogger(opts.logger))
			if _, err := f.Smudge(cmd.Context(), cmd.InOrStdin(), out, workTreePath(args)); err != nil {
				return err
			}
			if err := out.Flush(); err != nil {
				return &filter.Error{Kind: filter.KindIO, Path: workTreePath(args), Err: err}
			}
			return nil
		},
	}
}
