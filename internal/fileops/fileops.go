// Package fileops abstracts the filesystem primitives the importer relies on,
// so tests can inject failures at any step.
package fileops

import (
	"errors"
	"io"
	"os"
)

//go:generate mockgen -destination=../importer/mock_fileops_test.go -package=importer github.com/bolet777/mediahub/internal/fileops FileOps

// FileOps is the set of filesystem operations used to place files in a library.
type FileOps interface {
	// Exists reports whether anything (file, directory, symlink) is at path.
	Exists(path string) bool
	// Stat returns file info, following symlinks.
	Stat(path string) (os.FileInfo, error)
	// Copy writes the bytes of src into a new file dst, failing if dst exists.
	// It returns the number of bytes written.
	Copy(src, dst string) (int64, error)
	// Move renames src to dst, failing if dst exists.
	Move(src, dst string) error
	// Remove deletes a single file.
	Remove(path string) error
	// Mkdir creates path and any missing parents.
	Mkdir(path string) error
}

// OS implements FileOps on the local filesystem.
type OS struct{}

// New returns the production FileOps.
func New() OS { return OS{} }

// Exists uses Lstat so dangling symlinks count as occupied.
func (OS) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// Stat returns file info
func (OS) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// Copy streams src into a newly created dst and carries over the source
// modification time. dst is synced before Copy returns.
func (OS) Copy(src, dst string) (written int64, err error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	buf := make([]byte, 256*1024)
	written, err = io.CopyBuffer(out, in, buf)
	if err != nil {
		return written, err
	}
	if err := out.Sync(); err != nil {
		return written, err
	}
	return written, os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// Move links src to dst and then removes src, so an existing dst is never
// replaced. Filesystems without hard links fall back to a rename guarded by
// an existence check.
func (OS) Move(src, dst string) error {
	err := os.Link(src, dst)
	switch {
	case err == nil:
		if err := os.Remove(src); err != nil {
			_ = os.Remove(dst)
			return err
		}
		return nil
	case errors.Is(err, os.ErrExist):
		return err
	}
	if _, lerr := os.Lstat(dst); lerr == nil {
		return &os.LinkError{Op: "move", Old: src, New: dst, Err: os.ErrExist}
	}
	return os.Rename(src, dst)
}

// Remove removes a file
func (OS) Remove(path string) error {
	return os.Remove(path)
}

// Mkdir creates a directory path
func (OS) Mkdir(path string) error {
	return os.MkdirAll(path, 0o755)
}
