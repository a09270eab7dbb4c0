// Package watch re-runs an action whenever a directory tree changes.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last event before the
// action runs.
const DefaultDebounce = 2 * time.Second

// Options configures Tree.
type Options struct {
	Debounce time.Duration
	// Ignore reports whether a slash-separated path relative to the root
	// should neither be watched nor trigger the action. Optional.
	Ignore func(rel string) bool
}

// Tree watches root recursively and calls action once per burst of changes
// until ctx is done. Action errors are logged and do not stop the watch.
// Directories created while watching are added automatically.
func Tree(ctx context.Context, root string, opts Options, action func() error) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	t := &tree{root: root, opts: opts, w: w}
	if err := t.addRecursive(root); err != nil {
		return err
	}
	slog.Info("watching for changes", "path", root)

	// Debounce: each relevant event pushes the deadline back
	timer := time.NewTimer(opts.Debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !t.relevant(event) {
				continue
			}
			slog.Debug("change detected", "path", event.Name, "op", event.Op.String())
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := t.addRecursive(event.Name); err != nil {
						slog.Warn("cannot watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			timer.Reset(opts.Debounce)

		case <-timer.C:
			if err := action(); err != nil {
				slog.Warn("watch action failed", "error", err)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)
		}
	}
}

type tree struct {
	root string
	opts Options
	w    *fsnotify.Watcher
}

func (t *tree) ignored(path string) bool {
	if t.opts.Ignore == nil {
		return false
	}
	rel, err := filepath.Rel(t.root, path)
	if err != nil || rel == "." {
		return false
	}
	return t.opts.Ignore(filepath.ToSlash(rel))
}

func (t *tree) relevant(e fsnotify.Event) bool {
	if e.Op == fsnotify.Chmod {
		return false
	}
	return !t.ignored(e.Name)
}

// addRecursive registers dir and every directory below it. A failure on
// the top directory is returned; failures below are logged.
func (t *tree) addRecursive(dir string) error {
	if err := t.w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("cannot read directory", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() || path == dir {
			return nil
		}
		if t.ignored(path) {
			return filepath.SkipDir
		}
		if err := t.w.Add(path); err != nil {
			slog.Warn("cannot watch directory", "path", path, "error", err)
		}
		return nil
	})
}
