package mediatime

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestExtractFallsBackToMtime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	if err := os.WriteFile(path, []byte("not really a jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2021, 7, 4, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	ts, err := Extract(path)
	if err != nil {
		t.Fatal(err)
	}
	if ts.Source != SourceMtime || !ts.Date.Equal(mtime) {
		t.Errorf("Extract = %+v, want mtime %v", ts, mtime)
	}

	again, _ := Extract(path)
	if !again.Date.Equal(ts.Date) || again.Source != ts.Source {
		t.Error("Extract not deterministic")
	}
}

// tiffWithDateTime builds a little-endian TIFF whose only IFD0 entry is an
// ASCII DateTime (0x0132) tag.
func tiffWithDateTime(value string) []byte {
	ascii := append([]byte(value), 0)
	const ifdOffset = 8
	dataOffset := ifdOffset + 2 + 12 + 4

	var b bytes.Buffer
	le := binary.LittleEndian
	b.WriteString("II")
	_ = binary.Write(&b, le, uint16(42))
	_ = binary.Write(&b, le, uint32(ifdOffset))
	_ = binary.Write(&b, le, uint16(1)) // entry count
	_ = binary.Write(&b, le, uint16(0x0132))
	_ = binary.Write(&b, le, uint16(2)) // ASCII
	_ = binary.Write(&b, le, uint32(len(ascii)))
	_ = binary.Write(&b, le, uint32(dataOffset))
	_ = binary.Write(&b, le, uint32(0)) // no next IFD
	b.Write(ascii)
	return b.Bytes()
}

func TestExtractPrefersEXIF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.tif")
	if err := os.WriteFile(path, tiffWithDateTime("2019:05:06 07:08:09"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2021, 7, 4, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	ts, err := Extract(path)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2019, 5, 6, 7, 8, 9, 0, time.UTC)
	if ts.Source != SourceEXIF || !ts.Date.Equal(want) {
		t.Errorf("Extract = %+v, want exif %v", ts, want)
	}
	if got := YearMonthPath(ts.Date); got != "2019/05" {
		t.Errorf("YearMonthPath = %s, want 2019/05", got)
	}
}

func TestExtractMissingFile(t *testing.T) {
	if _, err := Extract(filepath.Join(t.TempDir(), "nope.jpg")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestYearMonthPath(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), "2024/01"},
		{time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC), "2023/12"},
		// 2024-01-01 01:00 at +02:00 is still December in UTC.
		{time.Date(2024, 1, 1, 1, 0, 0, 0, time.FixedZone("EET", 2*3600)), "2023/12"},
	}
	for _, tt := range tests {
		if got := YearMonthPath(tt.in); got != tt.want {
			t.Errorf("YearMonthPath(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
