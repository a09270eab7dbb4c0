// Package pathutil maps absolute paths to library-relative, forward-slash paths.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot matches any *OutsideRootError via errors.Is.
var ErrOutsideRoot = errors.New("path outside root")

// OutsideRootError reports a path that is not equal to or nested under root.
type OutsideRootError struct {
	Path string
	Root string
}

func (e *OutsideRootError) Error() string {
	return fmt.Sprintf("path %s is outside root %s", e.Path, e.Root)
}

func (e *OutsideRootError) Is(target error) bool { return target == ErrOutsideRoot }

// Normalize returns path relative to root using "/" separators.
// Both arguments are resolved to canonical absolute form first, so symlinked
// roots and relative inputs compare correctly. Normalize(root, root) is "".
func Normalize(path, root string) (string, error) {
	canonPath, err := Canonical(path)
	if err != nil {
		return "", err
	}
	canonRoot, err := Canonical(root)
	if err != nil {
		return "", err
	}

	rel, ok := relativeTo(canonPath, canonRoot)
	if !ok {
		return "", &OutsideRootError{Path: path, Root: root}
	}
	return filepath.ToSlash(rel), nil
}

// Contains reports whether path is equal to or nested under root after
// canonicalization.
func Contains(path, root string) bool {
	_, err := Normalize(path, root)
	return err == nil
}

// Canonical returns the absolute, cleaned, symlink-free form of p.
// Components that do not exist yet are kept verbatim on top of the deepest
// existing (resolved) ancestor, so destinations can be checked before they
// are created.
func Canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}

	dir, rest := abs, ""
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
		if r, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(r, rest), nil
		}
	}
}

// relativeTo returns path relative to root when path is root or nested in it.
func relativeTo(path, root string) (string, bool) {
	if path == root {
		return "", true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	return path[len(prefix):], true
}
