package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bolet777/mediahub/internal/library"
)

func newSourceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage the folders media is imported from",
	}
	cmd.AddCommand(newSourceAddCmd(a), newSourceListCmd(a))
	return cmd
}

func newSourceAddCmd(a *app) *cobra.Command {
	var media string
	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Attach a folder as a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseMediaFilter(media)
			if err != nil {
				return err
			}
			s, err := a.open()
			if err != nil {
				return err
			}
			src, err := library.NewSourceStore(s.root).Add(args[0], filter)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Attached source %s (%s, %s)\n", src.ID, src.Path, src.MediaTypes)
			return nil
		},
	}
	cmd.Flags().StringVar(&media, "media", "both", "Media types to import: images, videos or both")
	return cmd
}

func newSourceListCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List attached sources",
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
			if asJSON {
				return printJSON(cmd.OutOrStdout(), sources)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPATH\tMEDIA\tLAST DETECTED")
			for _, src := range sources {
				last := src.LastDetectedAt
				if last == "" {
					last = "never"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", src.ID, src.Path, src.MediaTypes, last)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
