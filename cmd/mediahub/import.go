package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bolet777/mediahub/internal/collision"
	"github.com/bolet777/mediahub/internal/detector"
	"github.com/bolet777/mediahub/internal/fileops"
	"github.com/bolet777/mediahub/internal/importer"
	"github.com/bolet777/mediahub/internal/library"
	"github.com/bolet777/mediahub/internal/types"
)

// importOptions holds CLI flags for the import command.
type importOptions struct {
	all       bool
	selection []string
	collision string
	dryRun    bool
	yes       bool
	asJSON    bool
}

func newImportCmd(a *app) *cobra.Command {
	opts := &importOptions{}
	cmd := &cobra.Command{
		Use:   "import <source>",
		Short: "Copy new media from a source into the library",
		Long: `Imports items from the latest detection of a source. Files are copied (never
moved) into YYYY/MM folders by capture date and the baseline index is updated.

Choose items with --all or --select (positions from "mediahub detect" or
source paths). Use --dry-run to preview destinations without changing
anything.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(a, cmd.InOrStdin(), cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.all, "all", "a", false, "Import every new item")
	cmd.Flags().StringSliceVarP(&opts.selection, "select", "s", nil, "Items to import (positions or paths)")
	cmd.Flags().StringVar(&opts.collision, "collision", "", "Collision policy: rename, skip or error (default from config)")
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "Preview without copying or updating the index")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the import result as JSON")
	cmd.MarkFlagsMutuallyExclusive("all", "select")
	cmd.MarkFlagsOneRequired("all", "select")
	return cmd
}

func runImport(a *app, in io.Reader, out io.Writer, sourceRef string, opts *importOptions) error {
	s, err := a.open()
	if err != nil {
		return err
	}
	src, err := library.NewSourceStore(s.root).Get(sourceRef)
	if err != nil {
		return err
	}

	policy := s.cfg.Policy()
	if opts.collision != "" {
		if policy, err = collision.ParsePolicy(opts.collision); err != nil {
			return err
		}
	}

	detection, err := detector.LoadLatest(s.root, src.ID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no detection for source %s; run \"mediahub detect\" first", src.ID)
		}
		return err
	}

	selected := detection.NewItems()
	if !opts.all {
		if selected, err = selectItems(selected, opts.selection); err != nil {
			return err
		}
	}
	if len(selected) == 0 {
		fmt.Fprintln(out, "Nothing to import")
		return nil
	}

	if !opts.dryRun && !opts.yes {
		if !confirm(in, out, fmt.Sprintf("Import %d items into %s?", len(selected), s.root)) {
			return errors.New("aborted")
		}
	}

	im := importer.New(s.root, importer.Options{
		LibraryID:       s.desc.ID,
		CollisionPolicy: policy,
		DryRun:          opts.dryRun,
		ShowProgress:    a.showProgress(),
		Cancel:          a.cancel,
	}, fileops.New())
	result, elapsed, err := types.MeasureValue(func() (importer.Result, error) {
		return im.Run(detection, selected)
	})
	if err != nil && !importer.IsCanceled(err) {
		return err
	}

	if opts.asJSON {
		if perr := printJSON(out, result); perr != nil {
			return perr
		}
	} else {
		printImport(out, result, elapsed.Seconds())
	}

	switch {
	case err != nil:
		return err
	case result.Summary.Failed > 0:
		return fmt.Errorf("%d items failed", result.Summary.Failed)
	}
	return nil
}

func printImport(w io.Writer, r importer.Result, seconds float64) {
	for _, item := range r.Items {
		fmt.Fprintln(w, item)
	}
	prefix := ""
	if r.Options.DryRun {
		prefix = "[dry run] "
	}
	fmt.Fprintf(w, "%s%d imported, %d skipped, %d failed in %.1fs\n",
		prefix, r.Summary.Imported, r.Summary.Skipped, r.Summary.Failed, seconds)
	switch {
	case r.IndexUpdated:
		fmt.Fprintf(w, "Index updated (%d entries)\n", r.IndexMetadata.EntryCount)
	case r.IndexUpdateSkippedReason == importer.SkipReasonIndexMissing:
		fmt.Fprintln(w, "Index not updated: library has no baseline index")
	}
}
