package testfs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bolet777/mediahub/internal/hasher"
)

// -----------------------------------------------------------------------------
// Reap Operations - Capture filesystem state
// -----------------------------------------------------------------------------

// ReapPath captures the state of root/dir: regular files grouped by content
// hash and symlinks with their targets.
func ReapPath(root, dir string) (ReapDir, error) {
	result := ReapDir{Path: dir}
	dirPath := filepath.Join(root, filepath.FromSlash(dir))

	byHash := make(map[string]*ReapFile)
	var order []string

	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dirPath || d.IsDir() {
			return nil
		}

		rel, _ := filepath.Rel(dirPath, path)
		rel = filepath.ToSlash(rel)

		// Handle symlinks - WalkDir reports them without following
		if d.Type()&fs.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("readlink %s: %w", path, err)
			}
			result.Symlinks = append(result.Symlinks, ReapSymlink{Path: rel, Target: target})
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		h, err := hashFile(path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if existing, ok := byHash[h]; ok {
			existing.Path = append(existing.Path, rel)
			return nil
		}
		byHash[h] = &ReapFile{Path: []string{rel}, Hash: h, Size: info.Size()}
		order = append(order, h)
		return nil
	})
	if err != nil {
		return result, err
	}

	for _, h := range order {
		rf := byHash[h]
		slices.Sort(rf.Path)
		result.Files = append(result.Files, *rf)
	}
	return result, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	return hasher.HashReader(f)
}
