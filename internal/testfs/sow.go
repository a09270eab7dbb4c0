package testfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// -----------------------------------------------------------------------------
// Sow Operations - Create filesystem from a FileTree
// -----------------------------------------------------------------------------

// SowFileTree creates a filesystem structure from a FileTree specification.
// Each Dir becomes a subdirectory of root.
func SowFileTree(root string, tree FileTree) error {
	for _, dir := range tree.Dirs {
		if err := sowDir(root, dir); err != nil {
			return fmt.Errorf("sow %s: %w", dir.Path, err)
		}
	}
	return nil
}

func sowDir(root string, dir Dir) error {
	dirPath := filepath.Join(root, filepath.FromSlash(dir.Path))
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	for _, f := range dir.Files {
		if err := sowFile(dirPath, f); err != nil {
			return err
		}
	}
	for _, sym := range dir.Symlinks {
		linkPath := filepath.Join(dirPath, filepath.FromSlash(sym.Path))
		if err := createSymlink(sym.Target, linkPath); err != nil {
			return fmt.Errorf("symlink %s -> %s: %w", linkPath, sym.Target, err)
		}
	}
	return nil
}

// sowFile writes one copy of the content per path.
func sowFile(dirPath string, f File) error {
	mtime, err := f.modTime()
	if err != nil {
		return fmt.Errorf("parse modTime %q: %w", f.ModTime, err)
	}

	for _, p := range f.Path {
		path := filepath.Join(dirPath, filepath.FromSlash(p))
		if err := writeContent(path, f); err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if !mtime.IsZero() {
			if err := os.Chtimes(path, mtime, mtime); err != nil {
				return fmt.Errorf("chtimes %s: %w", path, err)
			}
		}
	}
	return nil
}

// writeContent streams content directly to disk.
func writeContent(path string, f File) (err error) {
	content, err := f.Content()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, content)
	return err
}

// createSymlink creates a symlink, creating parent dirs.
func createSymlink(target, link string) error {
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return err
	}
	return os.Symlink(target, link)
}
