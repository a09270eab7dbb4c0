package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bolet777/mediahub/internal/logging"
	"github.com/bolet777/mediahub/internal/types"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

// globalOptions holds flags shared by every subcommand.
type globalOptions struct {
	library    string
	verbose    bool
	noColor    bool
	noProgress bool
}

// app carries process-wide state into the subcommands.
type app struct {
	opts   globalOptions
	ctx    context.Context
	cancel *types.CancelFlag
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{ctx: ctx, cancel: types.NewCancelFlag()}
	go func() {
		<-ctx.Done()
		a.cancel.Cancel()
	}()

	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "mediahub",
		Short:        "Manage a personal media library",
		Version:      version + " (" + commit + ")",
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			slog.SetDefault(logging.New(os.Stderr, logging.Level(a.opts.verbose), !a.opts.noColor))
		},
	}

	root.PersistentFlags().StringVarP(&a.opts.library, "library", "L", "", "Library root (default: search upward from the current directory)")
	root.PersistentFlags().BoolVarP(&a.opts.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&a.opts.noColor, "no-color", false, "Disable colored log output")
	root.PersistentFlags().BoolVar(&a.opts.noProgress, "no-progress", false, "Disable progress output")

	root.AddCommand(
		newInitCmd(a),
		newSourceCmd(a),
		newDetectCmd(a),
		newImportCmd(a),
		newIndexCmd(a),
		newDuplicatesCmd(a),
		newStatusCmd(a),
	)
	return root
}
