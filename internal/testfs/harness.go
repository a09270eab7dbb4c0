package testfs

import (
	"path/filepath"
	"testing"
)

// -----------------------------------------------------------------------------
// Harness - Integration Test API
// -----------------------------------------------------------------------------

// Harness builds a FileTree under t.TempDir() and verifies it afterwards.
// All Dirs share one filesystem.
type Harness struct {
	t    testing.TB
	root string
}

// New creates the given tree in a fresh temporary directory. The directory is
// removed by t.TempDir() mechanics.
func New(t testing.TB, given FileTree) *Harness {
	t.Helper()

	h := &Harness{t: t, root: t.TempDir()}
	if err := SowFileTree(h.root, given); err != nil {
		t.Fatalf("failed to setup files: %v", err)
	}
	return h
}

// Root returns the temporary directory root path.
func (h *Harness) Root() string {
	return h.root
}

// Path returns the absolute path of a slash-separated path below the root.
func (h *Harness) Path(rel string) string {
	return filepath.Join(h.root, filepath.FromSlash(rel))
}

// Sow adds more files to the tree after creation.
func (h *Harness) Sow(more FileTree) {
	h.t.Helper()
	if err := SowFileTree(h.root, more); err != nil {
		h.t.Fatalf("failed to add files: %v", err)
	}
}

// Assert verifies the filesystem state matches the expected FileTree.
func (h *Harness) Assert(expected FileTree) {
	h.t.Helper()
	assertTree(h.t, h.root, expected)
}

func assertTree(t testing.TB, root string, expected FileTree) {
	t.Helper()
	for _, dir := range expected.Dirs {
		actual, err := ReapPath(root, dir.Path)
		if err != nil {
			t.Fatalf("reap %s: %v", dir.Path, err)
		}
		AssertDir(t, root, dir, actual)
	}
}
