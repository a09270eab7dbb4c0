package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bolet777/mediahub/internal/config"
	"github.com/bolet777/mediahub/internal/index"
	"github.com/bolet777/mediahub/internal/library"
	"github.com/bolet777/mediahub/internal/types"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Turn a folder into a library",
		Long: `Creates the .mediahub metadata directory and a baseline index of every file
already in the folder. Existing files are indexed without hashes; run
"mediahub index hash" to fill them in.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return runInit(a, cmd, root)
		},
	}
}

func runInit(a *app, cmd *cobra.Command, root string) error {
	desc, err := library.Init(root)
	if err != nil {
		return err
	}

	idx, elapsed, err := types.MeasureValue(func() (*index.Index, error) {
		return index.Build(root, a.cancel)
	})
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	slog.Debug("library enumerated", "entries", idx.EntryCount(), "duration", elapsed)

	elapsed, err = types.Measure(func() error {
		return index.Write(idx, index.FilePath(root), root)
	})
	if err != nil {
		return err
	}
	slog.Debug("index written", "duration", elapsed)
	if _, err := os.Stat(library.ConfigPath(root)); os.IsNotExist(err) {
		if err := config.DefaultConfig().Save(library.ConfigPath(root)); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized library %s (%d files indexed)\n", desc.ID, idx.EntryCount())
	return nil
}
