package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wzshiming/gitassets/pkg/filter"
)

func newLsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List the objects recorded in the store catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}

			records, err := st.Objects()
			if err != nil {
				return &filter.Error{Kind: filter.KindIO, Err: err}
			}

			out := cmd.OutOrStdout()
			for _, rec := range records {
				path := rec.Path
				if path == "" {
					path = "-"
				}
				fmt.Fprintf(out, "%s %d %s\n", rec.Hash, rec.Size, path)
			}
			return nil
		},
	}
}
