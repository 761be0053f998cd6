package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wzshiming/gitassets/pkg/filter"
)

func newValidateCommand(opts *globalOptions) *cobra.Command {
	var reindex bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that the asset store is consistent",
		Long: `Validate the store contents, i.e. that all data files are consistent (their name matches the hash),
and that there are no unexpected files that don't belong there.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.openStore()
			if err != nil {
				return err
			}

			report, err := st.Validate()
			if err != nil {
				return &filter.Error{Kind: filter.KindIO, Err: err}
			}

			out := cmd.OutOrStdout()
			for _, m := range report.HashMismatches {
				fmt.Fprintf(out, "hash-mismatch: %s: %s != %s\n", m.Name, m.Expected, m.Actual)
			}
			for _, name := range report.Unexpected {
				fmt.Fprintf(out, "unexpected: %s\n", name)
			}
			for _, name := range report.Stale {
				opts.logger.Warn("leftover staging file from an interrupted store", "file", name)
			}

			if reindex {
				n, err := st.Reindex()
				if err != nil {
					return &filter.Error{Kind: filter.KindIO, Err: err}
				}
				opts.logger.Info("rebuilt catalog", "objects", n)
			}

			if !report.Valid() {
				return &filter.Error{
					Kind: filter.KindCorrupt,
					Err: fmt.Errorf("store %s is inconsistent: %d hash mismatches, %d unexpected files",
						st.Root(), len(report.HashMismatches), len(report.Unexpected)),
				}
			}
			opts.logger.Info("store is consistent", "root", st.Root(), "entries", report.Entries)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&reindex, "reindex", "", false, "Rebuild the store catalog from the data directory")
	return cmd
}
