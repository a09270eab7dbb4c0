package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bolet777/mediahub/internal/duplicates"
	"github.com/bolet777/mediahub/internal/index"
)

func newDuplicatesCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "Report files with identical content",
		Long: `Groups index entries by content hash. Only hashed entries are considered;
run "mediahub index hash" first for complete results.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			idx, err := index.Load(index.FilePath(s.root))
			if err != nil {
				return err
			}

			groups := duplicates.Group(idx)
			summary := duplicates.Summarize(groups)
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, struct {
					Groups  []duplicates.DuplicateGroup `json:"groups"`
					Summary duplicates.Summary          `json:"summary"`
				}{groups, summary})
			}

			for _, g := range groups {
				fmt.Fprint(out, g)
			}
			fmt.Fprintln(out, summary)
			if idx.HashCoverage() < 1 {
				fmt.Fprintf(out, "Note: %d of %d entries are not hashed yet\n",
					idx.EntryCount()-idx.HashEntryCount(), idx.EntryCount())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
