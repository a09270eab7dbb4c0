package atomicfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bolet777/mediahub/internal/fileops"
)

// faultOps wraps the real filesystem and lets a test override single steps.
type faultOps struct {
	fileops.OS
	CopyFunc func(src, dst string) (int64, error)
	MoveFunc func(src, dst string) error
}

func (f *faultOps) Copy(src, dst string) (int64, error) {
	if f.CopyFunc != nil {
		return f.CopyFunc(src, dst)
	}
	return f.OS.Copy(src, dst)
}

func (f *faultOps) Move(src, dst string) error {
	if f.MoveFunc != nil {
		return f.MoveFunc(src, dst)
	}
	return f.OS.Move(src, dst)
}

func createFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// assertNoTemp fails if any temporary file remains in dir.
func assertNoTemp(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		t.Fatal(err)
	}
	for _, e := range entries {
		if IsTemp(e.Name()) {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}

// =============================================================================
// Section 1: Copy
// =============================================================================

func TestCopyCreatesDirectoriesAndFile(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src", "a.jpg")
	dst := filepath.Join(root, "lib", "2024", "05", "a.jpg")
	createFile(t, src, "image-bytes")

	res, err := Copy(fileops.New(), src, dst)
	if err != nil {
		t.Fatalf("Copy error: %v", err)
	}
	if res.Destination != dst || res.Bytes != int64(len("image-bytes")) {
		t.Errorf("result = %+v", res)
	}
	data, _ := os.ReadFile(dst)
	if string(data) != "image-bytes" {
		t.Errorf("content = %q", data)
	}
	assertNoTemp(t, filepath.Dir(dst))
}

func TestCopySourceMissing(t *testing.T) {
	root := t.TempDir()
	dst := filepath.Join(root, "lib", "a.jpg")

	_, err := Copy(fileops.New(), filepath.Join(root, "missing.jpg"), dst)
	var ce *CopyError
	if !errors.As(err, &ce) || ce.Kind != CopySourceMissing {
		t.Fatalf("error = %v, want CopySourceMissing", err)
	}
	if _, err := os.Stat(dst); !errors.Is(err, os.ErrNotExist) {
		t.Error("destination should not exist")
	}
}

func TestCopySizeMismatchRemovesTemp(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a.jpg")
	dst := filepath.Join(root, "lib", "a.jpg")
	createFile(t, src, "0123456789")

	ops := &faultOps{CopyFunc: func(_, dst string) (int64, error) {
		return 3, os.WriteFile(dst, []byte("012"), 0o644) // truncated copy
	}}

	_, err := Copy(ops, src, dst)
	var ce *CopyError
	if !errors.As(err, &ce) || ce.Kind != CopySizeMismatch {
		t.Fatalf("error = %v, want CopySizeMismatch", err)
	}
	if ce.Expected != 10 || ce.Actual != 3 {
		t.Errorf("sizes = %d/%d, want 10/3", ce.Expected, ce.Actual)
	}
	if _, err := os.Stat(dst); !errors.Is(err, os.ErrNotExist) {
		t.Error("destination should not exist after size mismatch")
	}
	assertNoTemp(t, filepath.Dir(dst))
}

func TestCopyPartialWriteFailureRemovesTemp(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a.jpg")
	dst := filepath.Join(root, "lib", "a.jpg")
	createFile(t, src, "0123456789")

	ops := &faultOps{CopyFunc: func(_, dst string) (int64, error) {
		_ = os.WriteFile(dst, []byte("01234"), 0o644)
		return 5, errors.New("disk full")
	}}

	_, err := Copy(ops, src, dst)
	var ce *CopyError
	if !errors.As(err, &ce) || ce.Kind != CopyIO {
		t.Fatalf("error = %v, want CopyIO", err)
	}
	assertNoTemp(t, filepath.Dir(dst))
}

func TestCopyRenameFailureRemovesTemp(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a.jpg")
	dst := filepath.Join(root, "lib", "a.jpg")
	createFile(t, src, "data")

	ops := &faultOps{MoveFunc: func(_, _ string) error { return errors.New("rename refused") }}

	_, err := Copy(ops, src, dst)
	var ce *CopyError
	if !errors.As(err, &ce) || ce.Kind != CopyIO {
		t.Fatalf("error = %v, want CopyIO", err)
	}
	if _, err := os.Stat(dst); !errors.Is(err, os.ErrNotExist) {
		t.Error("destination should not exist after failed rename")
	}
	assertNoTemp(t, filepath.Dir(dst))
}

// TestCopyNeverReplacesLateArrival tests that a destination written by someone
// else while the copy was in flight survives and the copy fails.
func TestCopyNeverReplacesLateArrival(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a.jpg")
	dst := filepath.Join(root, "lib", "a.jpg")
	createFile(t, src, "mine")

	ops := &faultOps{}
	ops.CopyFunc = func(s, tmp string) (int64, error) {
		if err := os.WriteFile(dst, []byte("theirs"), 0o644); err != nil {
			return 0, err
		}
		return ops.OS.Copy(s, tmp)
	}

	_, err := Copy(ops, src, dst)
	var ce *CopyError
	if !errors.As(err, &ce) || ce.Kind != CopyIO || !errors.Is(err, os.ErrExist) {
		t.Fatalf("error = %v, want CopyIO wrapping ErrExist", err)
	}
	if data, _ := os.ReadFile(dst); string(data) != "theirs" {
		t.Errorf("late arrival overwritten: %q", data)
	}
	assertNoTemp(t, filepath.Dir(dst))
}

// TestCopyFailureRemovesCreatedDirectories tests that a failed copy leaves no
// empty year/month folders behind but keeps directories that existed before.
func TestCopyFailureRemovesCreatedDirectories(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a.jpg")
	lib := filepath.Join(root, "lib")
	dst := filepath.Join(lib, "2024", "03", "a.jpg")
	createFile(t, src, "data")
	if err := os.Mkdir(lib, 0o755); err != nil {
		t.Fatal(err)
	}

	ops := &faultOps{CopyFunc: func(_, _ string) (int64, error) { return 0, errors.New("disk full") }}
	if _, err := Copy(ops, src, dst); err == nil {
		t.Fatal("expected copy failure")
	}

	if _, err := os.Stat(filepath.Join(lib, "2024")); !errors.Is(err, os.ErrNotExist) {
		t.Error("failed copy left 2024/ behind")
	}
	if _, err := os.Stat(lib); err != nil {
		t.Errorf("pre-existing directory removed: %v", err)
	}
}

// TestCopyFailureKeepsPopulatedDirectories tests that cleanup never removes a
// created directory that already holds other files.
func TestCopyFailureKeepsPopulatedDirectories(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a.jpg")
	dst := filepath.Join(root, "lib", "2024", "03", "a.jpg")
	sibling := filepath.Join(root, "lib", "2024", "03", "b.jpg")
	createFile(t, src, "data")

	ops := &faultOps{CopyFunc: func(_, _ string) (int64, error) {
		if err := os.WriteFile(sibling, []byte("b"), 0o644); err != nil {
			return 0, err
		}
		return 0, errors.New("disk full")
	}}
	if _, err := Copy(ops, src, dst); err == nil {
		t.Fatal("expected copy failure")
	}
	if _, err := os.Stat(sibling); err != nil {
		t.Errorf("sibling file lost: %v", err)
	}
}

// =============================================================================
// Section 2: WriteFile / WriteNew
// =============================================================================

func TestWriteFileReplacesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry", "index.json")

	for _, content := range []string{"first", "second"} {
		if err := WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile error: %v", err)
		}
	}

	data, _ := os.ReadFile(path)
	if string(data) != "second" {
		t.Errorf("content = %q, want second", data)
	}
	assertNoTemp(t, filepath.Dir(path))
}

func TestWriteNewNeverOverwrites(t *testing.T) {
	dir := t.TempDir()

	first, err := WriteNew(dir, "20240101T000000Z", ".json", []byte("one"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := WriteNew(dir, "20240101T000000Z", ".json", []byte("two"))
	if err != nil {
		t.Fatal(err)
	}

	if first == second {
		t.Fatalf("WriteNew reused %s", first)
	}
	if filepath.Base(second) != "20240101T000000Z-2.json" {
		t.Errorf("second name = %s", filepath.Base(second))
	}
	data, _ := os.ReadFile(first)
	if string(data) != "one" {
		t.Errorf("first file changed: %q", data)
	}
	assertNoTemp(t, dir)
}

func TestIsTemp(t *testing.T) {
	if !IsTemp(TempPath("/lib/a.jpg")) {
		t.Error("TempPath output not recognized")
	}
	if IsTemp("/lib/a.jpg") || IsTemp("/lib/.hidden.jpg") {
		t.Error("regular files recognized as temp")
	}
}

func TestNewestOrdersSuffixes(t *testing.T) {
	dir := t.TempDir()
	for _, stem := range []string{"20240101T000000Z", "20240101T000000Z", "20240101T000000Z", "20231231T235959Z"} {
		if _, err := WriteNew(dir, stem, ".json", []byte("{}")); err != nil {
			t.Fatal(err)
		}
	}

	got, err := Newest(dir, ".json")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "20240101T000000Z-3.json"); got != want {
		t.Errorf("Newest = %s, want %s", got, want)
	}
}

func TestNewestEmpty(t *testing.T) {
	if _, err := Newest(t.TempDir(), ".json"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	if _, err := Newest(filepath.Join(t.TempDir(), "missing"), ".json"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing dir: expected ErrNotExist, got %v", err)
	}
}
