package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bolet777/mediahub/internal/cache"
	"github.com/bolet777/mediahub/internal/library"
	"github.com/bolet777/mediahub/internal/maintenance"
	"github.com/bolet777/mediahub/internal/types"
)

func newIndexCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Maintain the baseline index",
	}
	cmd.AddCommand(newIndexHashCmd(a))
	return cmd
}

// hashOptions holds CLI flags for the index hash command.
type hashOptions struct {
	limit  int
	dryRun bool
	asJSON bool
}

func newIndexHashCmd(a *app) *cobra.Command {
	opts := &hashOptions{}
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Compute content hashes for index entries that lack one",
		Long: `Hashes library files whose index entry has no hash yet and writes the
results back. Entries that already have a hash are never changed. Use
--limit to spread the work over several runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndexHash(a, cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Hash at most this many files (0 = all)")
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "Only report what would be hashed")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print JSON")
	return cmd
}

func runIndexHash(a *app, out io.Writer, opts *hashOptions) error {
	if opts.limit < 0 {
		return fmt.Errorf("invalid --limit %d", opts.limit)
	}
	s, err := a.open()
	if err != nil {
		return err
	}

	if opts.dryRun {
		sel, err := maintenance.SelectCandidates(s.root, opts.limit)
		if err != nil {
			return err
		}
		if opts.asJSON {
			return printJSON(out, map[string]any{
				"candidates":        len(sel.Candidates),
				"missingFilesCount": sel.MissingFilesCount,
				"statistics":        sel.Statistics,
			})
		}
		fmt.Fprintf(out, "[dry run] %d files would be hashed, %d indexed files are missing\n",
			len(sel.Candidates), sel.MissingFilesCount)
		printCoverage(out, "Coverage", sel.Statistics)
		return nil
	}

	hc := openHashCache(s)
	defer func() { _ = hc.Close() }()

	computed, elapsed, err := types.MeasureValue(func() (maintenance.ComputeResult, error) {
		return maintenance.ComputeMissingHashes(s.root, opts.limit, maintenance.Options{
			Cache:        hc,
			ShowProgress: a.showProgress(),
			Cancel:       a.cancel,
		})
	})
	// Hashes computed before a cancellation are still worth keeping.
	if err != nil && !errors.Is(err, types.ErrCanceled) {
		return err
	}
	hits, misses := hc.Stats()
	slog.Debug("hashing finished", "computed", computed.HashesComputed, "duration", elapsed,
		"cacheHits", hits, "cacheMisses", misses)

	applied, applyErr := maintenance.ApplyComputedHashesAndWriteIndex(s.root, computed.ComputedHashes)
	if applyErr != nil {
		return applyErr
	}

	if opts.asJSON {
		if perr := printJSON(out, struct {
			maintenance.ComputeResult
			maintenance.ApplyResult
		}{computed, applied}); perr != nil {
			return perr
		}
	} else {
		fmt.Fprintf(out, "%d hashes computed (%d from cache), %d failed, %d entries updated\n",
			computed.HashesComputed, computed.CacheHits, len(computed.HashFailures), applied.EntriesUpdated)
		for _, f := range computed.HashFailures {
			fmt.Fprintf(out, "  failed %s: %s\n", f.Path, f.Reason)
		}
		printCoverage(out, "Coverage", applied.StatisticsAfter)
	}
	return err
}

// openHashCache opens the library hash cache when enabled. The cache is
// advisory: failures leave it disabled.
func openHashCache(s *session) *cache.Cache {
	if !s.cfg.HashCache {
		return nil
	}
	hc, err := cache.Open(library.HashCachePath(s.root))
	if err != nil {
		slog.Warn("hash cache disabled", "error", err)
		return nil
	}
	return hc
}

func printCoverage(w io.Writer, label string, st maintenance.Statistics) {
	fmt.Fprintf(w, "%s: %d/%d entries hashed (%.1f%%)\n",
		label, st.EntriesWithHash, st.TotalEntries, st.HashCoverage*100)
}
