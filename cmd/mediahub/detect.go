package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bolet777/mediahub/internal/detector"
	"github.com/bolet777/mediahub/internal/library"
	"github.com/bolet777/mediahub/internal/scanner"
	"github.com/bolet777/mediahub/internal/watch"
)

// detectOptions holds CLI flags for the detect command.
type detectOptions struct {
	watch  bool
	asJSON bool
}

func newDetectCmd(a *app) *cobra.Command {
	opts := &detectOptions{}
	cmd := &cobra.Command{
		Use:   "detect <source>",
		Short: "Find media in a source that the library does not have yet",
		Long: `Scans a source (by id or path) and classifies every media file as new or
known. The result is saved under .mediahub/detections and is what "mediahub
import" works from.

With --watch, detection runs again whenever the source changes, until
interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(a, cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Re-run detection when the source changes")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the detection result as JSON")
	return cmd
}

func runDetect(a *app, out io.Writer, sourceRef string, opts *detectOptions) error {
	s, err := a.open()
	if err != nil {
		return err
	}
	store := library.NewSourceStore(s.root)
	src, err := store.Get(sourceRef)
	if err != nil {
		return err
	}

	errs := make(chan error, 100)
	go drainErrors(errs)
	defer close(errs)

	detectOnce := func() error {
		d := detector.New(s.root, detector.Options{
			LibraryID:       s.desc.ID,
			Excludes:        s.cfg.Exclude,
			ExtraExtensions: s.cfg.ExtraExtensions,
			ShowProgress:    a.showProgress(),
			Cancel:          a.cancel,
			Sources:         store,
			ErrCh:           errs,
		})
		result, updated, err := d.Run(src)
		if err != nil {
			return err
		}
		src = updated
		if opts.asJSON {
			return printJSON(out, result)
		}
		printDetection(out, result)
		return nil
	}

	if err := detectOnce(); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}
	return watch.Tree(a.ctx, src.Path, watch.Options{
		Ignore: func(rel string) bool { return scanner.Excluded(s.cfg.Exclude, rel) },
	}, detectOnce)
}

func printDetection(w io.Writer, r detector.Result) {
	fmt.Fprintf(w, "Scanned %d media files: %d new, %d known\n",
		r.Summary.TotalScanned, r.Summary.NewItems, r.Summary.KnownItems)
	for i, item := range r.NewItems() {
		fmt.Fprintf(w, "%4d  %s  (%s)\n", i+1, item.Path, humanize.IBytes(uint64(item.Size)))
	}
}
