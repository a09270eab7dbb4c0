package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/bolet777/mediahub/internal/config"
	"github.com/bolet777/mediahub/internal/library"
	"github.com/bolet777/mediahub/internal/progress"
	"github.com/bolet777/mediahub/internal/types"
)

// session is an opened library.
type session struct {
	root string
	desc library.Descriptor
	cfg  *config.Config
}

// libraryRoot resolves --library, or searches upward from the working
// directory when it is not set.
func (a *app) libraryRoot() (string, error) {
	if a.opts.library != "" {
		return filepath.Abs(a.opts.library)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return library.FindRoot(wd)
}

func (a *app) open() (*session, error) {
	root, err := a.libraryRoot()
	if err != nil {
		return nil, err
	}
	desc, err := library.Open(root)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(library.ConfigPath(root))
	if err != nil {
		return nil, err
	}
	return &session{root: root, desc: desc, cfg: cfg}, nil
}

func (a *app) showProgress() bool {
	return progress.Enabled(!a.opts.noProgress)
}

// drainErrors consumes errors from a channel and writes them to stderr.
// Clears progress bar line before printing to avoid visual collision.
func drainErrors(errs <-chan error) {
	for err := range errs {
		fmt.Fprintf(os.Stderr, "\r\033[Kerror: %v\n", err)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseMediaFilter validates the --media flag.
func parseMediaFilter(s string) (types.MediaFilter, error) {
	switch f := types.MediaFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return types.FilterBoth, nil
	case types.FilterBoth, types.FilterImages, types.FilterVideos:
		return f, nil
	default:
		return "", fmt.Errorf("unknown media type %q (want images, videos or both)", s)
	}
}

// selectItems resolves --select values against the new items of a
// detection. A value is either a 1-based position in the listing or a
// source path.
func selectItems(items []types.CandidateMediaItem, values []string) ([]types.CandidateMediaItem, error) {
	byPath := lo.SliceToMap(items, func(c types.CandidateMediaItem) (string, types.CandidateMediaItem) {
		return c.Path, c
	})

	var out []types.CandidateMediaItem
	for _, v := range values {
		if n, err := strconv.Atoi(v); err == nil {
			if n < 1 || n > len(items) {
				return nil, fmt.Errorf("selection %d out of range 1-%d", n, len(items))
			}
			out = append(out, items[n-1])
			continue
		}
		abs, err := filepath.Abs(v)
		if err != nil {
			return nil, err
		}
		c, ok := byPath[abs]
		if !ok {
			return nil, fmt.Errorf("%s is not a new item of the latest detection", v)
		}
		out = append(out, c)
	}
	return lo.UniqBy(out, func(c types.CandidateMediaItem) string { return c.Path }), nil
}

// confirm asks a yes/no question; anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
