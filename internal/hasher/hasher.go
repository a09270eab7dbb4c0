// Package hasher computes content digests used as the library's dedup key.
//
// Files are streamed through SHA-256 in fixed-size blocks, so memory use does
// not depend on file size. Before reading, the path is resolved to its real
// location and must stay inside the allowed root: a symlink in the library
// that points elsewhere is refused instead of hashed.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bolet777/mediahub/internal/pathutil"
)

const (
	// Prefix tags every digest with its algorithm.
	Prefix = "sha256:"
	// blockSize is the read buffer size (64KB)
	blockSize = 64 * 1024
)

// Kind discriminates hashing failures.
type Kind int

const (
	KindFileNotFound Kind = iota + 1
	KindSymlinkOutsideRoot
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindFileNotFound:
		return "file not found"
	case KindSymlinkOutsideRoot:
		return "symlink outside root"
	case KindIO:
		return "read error"
	default:
		return "unknown"
	}
}

// Error describes a failed hash computation.
type Error struct {
	Kind Kind
	Path string
	Root string // set for KindSymlinkOutsideRoot
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindSymlinkOutsideRoot:
		return fmt.Sprintf("hash %s: resolves outside allowed root %s", e.Path, e.Root)
	case KindFileNotFound:
		return fmt.Sprintf("hash %s: file not found", e.Path)
	default:
		return fmt.Sprintf("hash %s: %v", e.Path, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a hashing *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var he *Error
	return errors.As(err, &he) && he.Kind == kind
}

// Hash returns "sha256:<hex>" for the content at path.
// The real (symlink-free) path must be contained in allowedRoot.
func Hash(path, allowedRoot string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &Error{Kind: KindFileNotFound, Path: path, Err: err}
		}
		return "", &Error{Kind: KindIO, Path: path, Err: err}
	}

	if !pathutil.Contains(resolved, allowedRoot) {
		return "", &Error{Kind: KindSymlinkOutsideRoot, Path: path, Root: allowedRoot}
	}

	f, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &Error{Kind: KindFileNotFound, Path: path, Err: err}
		}
		return "", &Error{Kind: KindIO, Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	digest, err := HashReader(f)
	if err != nil {
		return "", &Error{Kind: KindIO, Path: path, Err: err}
	}
	return digest, nil
}

// HashReader streams r through SHA-256 and returns the prefixed hex digest.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, blockSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return Prefix + hex.EncodeToString(h.Sum(nil)), nil
}

// Valid reports whether s is a well-formed digest produced by this package.
func Valid(s string) bool {
	if len(s) != len(Prefix)+sha256.Size*2 || s[:len(Prefix)] != Prefix {
		return false
	}
	for _, c := range s[len(Prefix):] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
