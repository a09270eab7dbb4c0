package atomicfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// maxNameAttempts bounds the suffix search in WriteNew.
const maxNameAttempts = 1000

// WriteFile atomically replaces path with data. Readers observe either the
// previous content or the new content, never a partial file.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := writeTemp(path, data, perm)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp) // cleanup on failure
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// WriteNew writes data to dir/<stem><ext> without ever replacing an existing
// file. If the name is taken, "-2", "-3", ... is appended to stem. It returns
// the path that was written.
func WriteNew(dir, stem, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}

	tmp, err := writeTemp(filepath.Join(dir, stem+ext), data, 0o644)
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(tmp) }() // the final name is a hard link

	for i := 1; i <= maxNameAttempts; i++ {
		name := stem + ext
		if i > 1 {
			name = stem + "-" + strconv.Itoa(i) + ext
		}
		final := filepath.Join(dir, name)

		err := os.Link(tmp, final)
		if err == nil {
			return final, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("link %s: %w", final, err)
		}
	}
	return "", fmt.Errorf("no free name for %s%s in %s", stem, ext, dir)
}

// Newest returns the most recent file written by WriteNew in dir with the
// given extension, assuming stems sort chronologically. Suffixed names
// ("stem-2") are newer than their unsuffixed stem. It returns an
// os.ErrNotExist error when dir holds no such file.
func Newest(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var bestStem string
	bestN := 0
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasSuffix(name, ext) || IsTemp(name) {
			continue
		}
		stem, n := splitSuffix(strings.TrimSuffix(name, ext))
		if stem > bestStem || stem == bestStem && n > bestN {
			bestStem, bestN = stem, n
		}
	}
	if bestN == 0 {
		return "", fmt.Errorf("no %s files in %s: %w", ext, dir, os.ErrNotExist)
	}
	if bestN == 1 {
		return filepath.Join(dir, bestStem+ext), nil
	}
	return filepath.Join(dir, bestStem+"-"+strconv.Itoa(bestN)+ext), nil
}

// splitSuffix parses "stem-N" into (stem, N); unsuffixed names have N=1.
func splitSuffix(name string) (string, int) {
	if i := strings.LastIndexByte(name, '-'); i > 0 {
		if n, err := strconv.Atoi(name[i+1:]); err == nil && n > 1 {
			return name[:i], n
		}
	}
	return name, 1
}

// writeTemp writes data into a fresh temporary file beside path and returns
// its name. The file is synced and closed; it is removed on any error.
func writeTemp(path string, data []byte, perm os.FileMode) (name string, err error) {
	name = TempPath(path)
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(name)
		}
	}()

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err = f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return name, nil
}
