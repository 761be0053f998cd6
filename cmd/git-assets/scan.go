package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wzshiming/gitassets/pkg/filter"
)

func newScanCommand(opts *globalOptions) *cobra.Command {
	var filterName string

	cmd := &cobra.Command{
		Use:   "scan [<rev>]",
		Short: "Check that every pointer committed at a revision can be smudged",
		Long: `Walk the tree at <rev> (default HEAD), decode every file routed through the filter by .gitattributes,
and report pointers whose content is missing from the store and tracked files that are not pointers.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, repo, err := opts.open(true)
			if err != nil {
				return err
			}

			rev := "HEAD"
			if len(args) > 0 {
				rev = args[0]
			}

			files, err := repo.ScanPointers(rev, filterName)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var missing, notPointers int
			for _, f := range files {
				if f.Err != nil {
					notPointers++
					fmt.Fprintf(out, "not-a-pointer %s\n", f.Path)
					opts.logger.Debug("tracked file is not a pointer", "path", f.Path, "err", f.Err)
					continue
				}
				ok, err := st.Contains(f.Pointer.Hash)
				if err != nil {
					return &filter.Error{Kind: filter.KindIO, Path: f.Path, Hash: f.Pointer.Hash, Root: st.Root(), Err: err}
				}
				if !ok {
					missing++
					fmt.Fprintf(out, "missing %s %s\n", f.Pointer.Hash, f.Path)
				}
			}
			opts.logger.Info("scanned", "rev", rev, "tracked", len(files), "missing", missing, "not_pointers", notPointers)

			switch {
			case missing > 0:
				return &filter.Error{
					Kind: filter.KindNotFound,
					Err:  fmt.Errorf("%d of %d pointers at %s reference content missing from the store at %s", missing, len(files), rev, st.Root()),
				}
			case notPointers > 0:
				return &filter.Error{
					Kind: filter.KindMalformedPointer,
					Err:  fmt.Errorf("%d tracked files at %s were committed without the filter", notPointers, rev),
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&filterName, "filter", "", "assets", "Name of the filter driver in .gitattributes")
	return cmd
}
