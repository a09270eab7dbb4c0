package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bolet777/mediahub/internal/duplicates"
	"github.com/bolet777/mediahub/internal/index"
	"github.com/bolet777/mediahub/internal/library"
)

func newStatusCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show library size and index state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			sources, err := library.NewSourceStore(s.root).List()
			if err != nil {
				return err
			}

			status := struct {
				Root           string                   `json:"root"`
				ID             string                   `json:"id"`
				Sources        int                      `json:"sources"`
				Index          *index.Metadata          `json:"index,omitempty"`
				Metrics        *duplicates.ScaleMetrics `json:"metrics,omitempty"`
				DistinctHashes int                      `json:"distinctHashes"`
			}{Root: s.root, ID: s.desc.ID, Sources: len(sources)}

			idx, err := index.Load(index.FilePath(s.root))
			switch {
			case err == nil:
				meta, metrics := idx.Metadata(), duplicates.Metrics(idx)
				status.Index, status.Metrics = &meta, &metrics
				status.DistinctHashes = len(idx.HashSet())
			case !index.IsKind(err, index.KindFileNotFound):
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, status)
			}
			fmt.Fprintf(out, "Library %s\n  id: %s\n  sources: %d\n", status.Root, status.ID, status.Sources)
			if status.Index == nil {
				fmt.Fprintln(out, "  index: none")
				return nil
			}
			fmt.Fprintf(out, "  index: version %s, updated %s\n", status.Index.Version, status.Index.LastUpdated)
			fmt.Fprintf(out, "  %s\n  distinct contents: %d\n", status.Metrics, status.DistinctHashes)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
