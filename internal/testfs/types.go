// Package testfs builds file trees for tests and checks them afterwards.
//
// # FileTree Specification
//
// Tests use a single FileTree type for both setup and verification:
//
//	given := testfs.FileTree{
//	    Dirs: []testfs.Dir{
//	        {
//	            Path: "card",
//	            Files: []testfs.File{
//	                {Path: []string{"DCIM/a.jpg", "DCIM/b.jpg"}, Chunks: []testfs.Chunk{{Pattern: 'A', Size: "1KiB"}}},
//	                {Path: []string{"DCIM/c.mov"}, Chunks: []testfs.Chunk{{Pattern: 'C', Size: "2KiB"}}, ModTime: "2023-07-14T09:30:00Z"},
//	            },
//	        },
//	        {Path: "library"},
//	    },
//	}
//	then := testfs.FileTree{
//	    Dirs: []testfs.Dir{
//	        {
//	            Path:   "library",
//	            Files:  []testfs.File{{Path: []string{"2023/07/c.mov"}, Chunks: []testfs.Chunk{{Pattern: 'C', Size: "2KiB"}}}},
//	            Absent: []string{"2023/07/c (1).mov"},
//	        },
//	    },
//	}
//
//	h := testfs.New(t, given)
//	// ... run the pipeline against h.Path("card") and h.Path("library")
//	h.Assert(then)
//
// Parent directories are created automatically (mkdir -p semantics).
//
// # Context-Dependent Field Usage
//
//	| Field          | Setup                   | Verification                          |
//	|----------------|-------------------------|---------------------------------------|
//	| Dir.Path       | Creates directory       | Scope for assertions                  |
//	| File.Path      | Writes every path       | All paths exist with equal content    |
//	| File.Chunks    | Generates content       | Content must match when set           |
//	| File.ModTime   | Sets mtime              | Ignored                               |
//	| Symlink        | Creates symlink         | Asserts symlink target                |
//	| Dir.Absent     | Ignored                 | Paths must not exist                  |
//	| Dir.Exhaustive | Ignored                 | No other files outside .mediahub      |
package testfs

import (
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

// -----------------------------------------------------------------------------
// FileTree Specification Types
// -----------------------------------------------------------------------------

// FileTree describes a filesystem state (used for both setup and verification).
type FileTree struct {
	Dirs []Dir `json:"dirs"`
}

// Dir is a top-level directory of the tree, such as a library or a source.
type Dir struct {
	// Path relative to the harness root, slash-separated.
	Path string `json:"path"`

	Files    []File    `json:"files,omitempty"`
	Symlinks []Symlink `json:"symlinks,omitempty"`

	// Absent lists paths that must not exist (verification only).
	Absent []string `json:"absent,omitempty"`

	// Exhaustive fails verification when any regular file other than those
	// in Files exists. The library metadata directory is not considered.
	Exhaustive bool `json:"exhaustive,omitempty"`
}

// File defines one content written at one or more paths.
//
// In setup context every path receives a separate copy of the content.
// In verification context all paths must exist with identical content.
// Same chunks = same content = same hash.
type File struct {
	// Path contains one or more paths relative to the Dir.
	Path []string `json:"path"`

	// Chunks specifies file content as a sequence of filled regions.
	Chunks []Chunk `json:"chunks,omitempty"`

	// ModTime is an RFC 3339 timestamp applied after writing. Optional.
	ModTime string `json:"modTime,omitempty"`
}

// Chunk defines a region of file content filled with a pattern byte.
type Chunk struct {
	// Pattern is the fill byte for this chunk region.
	Pattern rune `json:"pattern"`

	// Size in bytes or humanized units: "100", "1KiB", "1MiB".
	Size string `json:"size"`
}

// TotalSize calculates the sum of all chunk sizes in bytes.
func (f *File) TotalSize() int64 {
	var total int64
	for _, c := range f.Chunks {
		size, _ := humanize.ParseBytes(c.Size)
		total += int64(size)
	}
	return total
}

// Content streams the bytes described by Chunks.
func (f *File) Content() (io.Reader, error) {
	readers := make([]io.Reader, 0, len(f.Chunks))
	for _, c := range f.Chunks {
		size, err := humanize.ParseBytes(c.Size)
		if err != nil {
			return nil, err
		}
		readers = append(readers, io.LimitReader(pattern(byte(c.Pattern)), int64(size)))
	}
	return io.MultiReader(readers...), nil
}

// modTime parses ModTime; the zero time means unset.
func (f *File) modTime() (time.Time, error) {
	if f.ModTime == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, f.ModTime)
}

// Symlink defines a symbolic link.
type Symlink struct {
	// Path is relative to the Dir.
	Path string `json:"path"`

	// Target is written verbatim.
	Target string `json:"target"`
}

// pattern is an endless reader of one byte.
type pattern byte

func (p pattern) Read(b []byte) (int, error) {
	if len(b) > 0 {
		b[0] = byte(p)
		for filled := 1; filled < len(b); filled *= 2 {
			copy(b[filled:], b[:filled])
		}
	}
	return len(b), nil
}

// -----------------------------------------------------------------------------
// Reap Types (filesystem state captured for verification)
// -----------------------------------------------------------------------------

// ReapDir is the captured state of one Dir.
type ReapDir struct {
	Path     string        `json:"path"`
	Files    []ReapFile    `json:"files,omitempty"`    // Grouped by content hash
	Symlinks []ReapSymlink `json:"symlinks,omitempty"` // Symbolic links
}

// ReapFile groups every path holding the same content.
type ReapFile struct {
	Path []string `json:"path"` // Sorted, slash-separated
	Hash string   `json:"hash"`
	Size int64    `json:"size"`
}

// ReapSymlink contains symlink metadata.
type ReapSymlink struct {
	Path   string `json:"path"`
	Target string `json:"target"`
}
