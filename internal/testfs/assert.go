package testfs

import (
	"os"
	"path/filepath"

	"github.com/bolet777/mediahub/internal/hasher"
	"github.com/bolet777/mediahub/internal/library"
)

// TB is the subset of testing.TB the assertions report through.
type TB interface {
	Helper()
	Errorf(format string, args ...any)
}

// -----------------------------------------------------------------------------
// Assertion Functions
// -----------------------------------------------------------------------------

// AssertDir verifies the captured state of a directory matches expected.
//
// Checks:
//   - Files exist at all specified paths with identical content
//   - Content matches Chunks when given
//   - Symlinks point to the expected targets
//   - Absent paths do not exist
//   - Nothing else exists when Exhaustive is set
func AssertDir(t TB, root string, expected Dir, actual ReapDir) {
	t.Helper()
	AssertFiles(t, expected.Files, actual.Files)
	AssertSymlinks(t, expected.Symlinks, actual.Symlinks)
	assertAbsent(t, filepath.Join(root, filepath.FromSlash(expected.Path)), expected.Absent)
	if expected.Exhaustive {
		assertExhaustive(t, expected.Files, actual.Files)
	}
}

// AssertFiles verifies expected files exist and paths of one entry share
// content.
func AssertFiles(t TB, expected []File, actual []ReapFile) {
	t.Helper()

	pathToHash := buildPathToHashMap(actual)
	for _, ef := range expected {
		verifyFileEntry(t, ef, pathToHash)
	}
}

// AssertSymlinks verifies expected symlinks exist with correct targets.
func AssertSymlinks(t TB, expected []Symlink, actual []ReapSymlink) {
	t.Helper()

	pathToTarget := make(map[string]string)
	for _, rs := range actual {
		pathToTarget[rs.Path] = rs.Target
	}

	for _, expectedSym := range expected {
		target, ok := pathToTarget[expectedSym.Path]
		if !ok {
			t.Errorf("expected symlink not found: %s", expectedSym.Path)
			continue
		}
		if target != expectedSym.Target {
			t.Errorf("symlink %s: got target %q, want %q",
				expectedSym.Path, target, expectedSym.Target)
		}
	}
}

// -----------------------------------------------------------------------------
// Helper Functions (unexported)
// -----------------------------------------------------------------------------

func buildPathToHashMap(files []ReapFile) map[string]string {
	m := make(map[string]string)
	for _, rf := range files {
		for _, p := range rf.Path {
			m[p] = rf.Hash
		}
	}
	return m
}

func verifyFileEntry(t TB, ef File, pathToHash map[string]string) {
	t.Helper()
	if len(ef.Path) == 0 {
		return
	}

	want := ""
	if len(ef.Chunks) > 0 {
		content, err := ef.Content()
		if err == nil {
			want, err = hasher.HashReader(content)
		}
		if err != nil {
			t.Errorf("expected content for %v: %v", ef.Path, err)
			return
		}
	}

	first := ""
	for _, p := range ef.Path {
		h, ok := pathToHash[p]
		switch {
		case !ok:
			t.Errorf("expected file not found: %s", p)
		case want != "" && h != want:
			t.Errorf("content mismatch: %s", p)
		case first != "" && h != first:
			t.Errorf("content differs: %s != %s", ef.Path[0], p)
		}
		if ok && first == "" {
			first = h
		}
	}
}

func assertAbsent(t TB, dirPath string, absent []string) {
	t.Helper()
	for _, p := range absent {
		if _, err := os.Lstat(filepath.Join(dirPath, filepath.FromSlash(p))); err == nil {
			t.Errorf("unexpected path exists: %s", p)
		}
	}
}

func assertExhaustive(t TB, expected []File, actual []ReapFile) {
	t.Helper()
	want := make(map[string]bool)
	for _, ef := range expected {
		for _, p := range ef.Path {
			want[p] = true
		}
	}
	for _, rf := range actual {
		for _, p := range rf.Path {
			if !want[p] && !library.IsMetadataPath(p) {
				t.Errorf("unexpected file: %s", p)
			}
		}
	}
}
