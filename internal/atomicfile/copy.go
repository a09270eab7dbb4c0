// Package atomicfile places files so that a partially written file is never
// visible under its final name.
//
// Every writer follows the same pattern: write a uniquely named temporary
// file next to the destination, verify it, then rename (or link) it into
// place. The temporary file is removed on every failure path; once the final
// rename succeeds there is nothing left to clean up.
package atomicfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/bolet777/mediahub/internal/fileops"
)

// tmpMarker identifies temporary files created by this package.
const tmpMarker = ".mediahub-"

// CopyErrorKind discriminates atomic copy failures.
type CopyErrorKind int

const (
	CopySourceMissing CopyErrorKind = iota + 1
	CopySizeMismatch
	CopyIO
)

func (k CopyErrorKind) String() string {
	switch k {
	case CopySourceMissing:
		return "source missing"
	case CopySizeMismatch:
		return "size mismatch"
	case CopyIO:
		return "i/o error"
	default:
		return "unknown"
	}
}

// CopyError describes why an atomic copy did not complete.
type CopyError struct {
	Kind        CopyErrorKind
	Source      string
	Destination string
	Expected    int64 // size mismatch only
	Actual      int64 // size mismatch only
	Err         error
}

func (e *CopyError) Error() string {
	switch e.Kind {
	case CopySourceMissing:
		return fmt.Sprintf("copy %s: source missing", e.Source)
	case CopySizeMismatch:
		return fmt.Sprintf("copy %s -> %s: size mismatch (expected %d, got %d)", e.Source, e.Destination, e.Expected, e.Actual)
	default:
		return fmt.Sprintf("copy %s -> %s: %v", e.Source, e.Destination, e.Err)
	}
}

func (e *CopyError) Unwrap() error { return e.Err }

// CopyResult reports a completed copy.
type CopyResult struct {
	Destination string
	Bytes       int64
}

// Copy copies source to destination through a temporary sibling file.
// Intermediate directories are created as needed.
func Copy(ops fileops.FileOps, source, destination string) (CopyResult, error) {
	srcInfo, err := ops.Stat(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return CopyResult{}, &CopyError{Kind: CopySourceMissing, Source: source, Destination: destination, Err: err}
		}
		return CopyResult{}, &CopyError{Kind: CopyIO, Source: source, Destination: destination, Err: err}
	}

	tmp := TempPath(destination)
	created := missingDirs(ops, filepath.Dir(destination))
	renamed := false
	defer func() {
		if renamed {
			return
		}
		_ = ops.Remove(tmp)
		// Deepest first; a directory something else wrote into stays.
		for _, dir := range created {
			_ = ops.Remove(dir)
		}
	}()

	if err := ops.Mkdir(filepath.Dir(destination)); err != nil {
		return CopyResult{}, &CopyError{Kind: CopyIO, Source: source, Destination: destination, Err: fmt.Errorf("create directory: %w", err)}
	}

	if _, err := ops.Copy(source, tmp); err != nil {
		if errors.Is(err, os.ErrNotExist) && !ops.Exists(source) {
			return CopyResult{}, &CopyError{Kind: CopySourceMissing, Source: source, Destination: destination, Err: err}
		}
		return CopyResult{}, &CopyError{Kind: CopyIO, Source: source, Destination: destination, Err: err}
	}

	tmpInfo, err := ops.Stat(tmp)
	if err != nil {
		return CopyResult{}, &CopyError{Kind: CopyIO, Source: source, Destination: destination, Err: err}
	}
	if tmpInfo.Size() != srcInfo.Size() {
		return CopyResult{}, &CopyError{
			Kind: CopySizeMismatch, Source: source, Destination: destination,
			Expected: srcInfo.Size(), Actual: tmpInfo.Size(),
		}
	}

	if err := ops.Move(tmp, destination); err != nil {
		return CopyResult{}, &CopyError{Kind: CopyIO, Source: source, Destination: destination, Err: err}
	}
	renamed = true

	return CopyResult{Destination: destination, Bytes: tmpInfo.Size()}, nil
}

// missingDirs lists dir and its ancestors that do not exist yet, deepest first.
func missingDirs(ops fileops.FileOps, dir string) []string {
	var missing []string
	for !ops.Exists(dir) {
		missing = append(missing, dir)
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return missing
}

// TempPath returns a unique hidden temporary path beside dst.
func TempPath(dst string) string {
	dir, base := filepath.Split(dst)
	return filepath.Join(dir, "."+base+tmpMarker+uuid.NewString()+".tmp")
}

// IsTemp reports whether name looks like a temporary file from this package.
func IsTemp(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, ".") && strings.Contains(base, tmpMarker) && strings.HasSuffix(base, ".tmp")
}
