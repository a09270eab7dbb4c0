package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bolet777/mediahub/internal/types"
)

// =============================================================================
// Section 1: Flag Parsing
// =============================================================================

func TestParseMediaFilter(t *testing.T) {
	tests := []struct {
		input   string
		want    types.MediaFilter
		wantErr bool
	}{
		{"", types.FilterBoth, false},
		{"both", types.FilterBoth, false},
		{"Images", types.FilterImages, false},
		{" videos ", types.FilterVideos, false},
		{"audio", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseMediaFilter(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseMediaFilter(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseMediaFilter(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSelectItems(t *testing.T) {
	items := []types.CandidateMediaItem{
		{Path: "/card/a.jpg"},
		{Path: "/card/b.jpg"},
		{Path: "/card/c.mov"},
	}

	got, err := selectItems(items, []string{"3", "/card/a.jpg", "1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Path != "/card/c.mov" || got[1].Path != "/card/a.jpg" {
		t.Errorf("selectItems = %v", got)
	}

	for _, bad := range []string{"0", "4", "/card/missing.jpg"} {
		if _, err := selectItems(items, []string{bad}); err == nil {
			t.Errorf("selectItems(%q) should fail", bad)
		}
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"yes", true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		if got := confirm(strings.NewReader(tt.input), &out, "Go?"); got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "Go? [y/N]") {
			t.Errorf("prompt missing: %q", out.String())
		}
	}
}

// =============================================================================
// Section 2: Command Flow
// =============================================================================

// execute runs the CLI in-process with the given arguments.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	a := &app{ctx: context.Background(), cancel: types.NewCancelFlag()}
	cmd := newRootCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--no-progress", "--no-color"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeMedia(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestCommandFlow(t *testing.T) {
	lib := t.TempDir()
	card := t.TempDir()
	june := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	writeMedia(t, filepath.Join(lib, "old.jpg"), "same", june)
	writeMedia(t, filepath.Join(card, "a.jpg"), "same", june)
	writeMedia(t, filepath.Join(card, "b.mp4"), "video", june)

	out, err := execute(t, "", "init", lib)
	if err != nil {
		t.Fatalf("init: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 files indexed") {
		t.Errorf("init output: %q", out)
	}
	if _, err := execute(t, "", "init", lib); err == nil {
		t.Error("second init should fail")
	}

	if out, err = execute(t, "", "-L", lib, "source", "add", card); err != nil {
		t.Fatalf("source add: %v\n%s", err, out)
	}

	out, err = execute(t, "", "-L", lib, "detect", card)
	if err != nil {
		t.Fatalf("detect: %v\n%s", err, out)
	}
	if !strings.Contains(out, "2 new, 0 known") {
		t.Errorf("detect output: %q", out)
	}

	// Declining the prompt imports nothing.
	if _, err = execute(t, "n\n", "-L", lib, "import", card, "--all"); err == nil {
		t.Error("declined import should report abort")
	}
	if _, err := os.Stat(filepath.Join(lib, "2024")); !os.IsNotExist(err) {
		t.Error("declined import copied files")
	}

	out, err = execute(t, "", "-L", lib, "import", card, "--select", "1", "--dry-run")
	if err != nil {
		t.Fatalf("dry run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "[dry run] 1 imported") {
		t.Errorf("dry run output: %q", out)
	}

	out, err = execute(t, "", "-L", lib, "import", card, "--all", "--yes")
	if err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}
	for _, p := range []string{"2024/06/a.jpg", "2024/06/b.mp4"} {
		if _, err := os.Stat(filepath.Join(lib, filepath.FromSlash(p))); err != nil {
			t.Errorf("%s not imported: %v", p, err)
		}
	}

	if out, err = execute(t, "", "-L", lib, "index", "hash"); err != nil {
		t.Fatalf("index hash: %v\n%s", err, out)
	}
	out, err = execute(t, "", "-L", lib, "duplicates")
	if err != nil {
		t.Fatalf("duplicates: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 groups, 2 files") {
		t.Errorf("duplicates output: %q", out)
	}

	out, err = execute(t, "", "-L", lib, "status")
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	if !strings.Contains(out, "3 files") || !strings.Contains(out, "100.0% hashed") {
		t.Errorf("status output: %q", out)
	}
}

func TestImportRequiresSelection(t *testing.T) {
	lib := t.TempDir()
	if _, err := execute(t, "", "init", lib); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "", "-L", lib, "import", "somewhere"); err == nil {
		t.Error("import without --all or --select should fail")
	}
}
