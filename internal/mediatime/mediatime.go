// Package mediatime extracts the capture time of a media file and maps it to
// a year/month library folder.
package mediatime

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Source tells where a timestamp came from.
type Source string

const (
	SourceEXIF  Source = "exif"
	SourceMtime Source = "mtime"
)

// exifLayout is the EXIF 2.x DateTime format.
const exifLayout = "2006:01:02 15:04:05"

// Timestamp is an extracted capture time.
type Timestamp struct {
	Date   time.Time
	Source Source
}

// Extract returns the EXIF capture time of path if present, otherwise the
// file modification time. EXIF times carry no zone and are read as UTC so the
// result does not depend on the local time zone.
func Extract(path string) (Timestamp, error) {
	if t, ok := exifTime(path); ok {
		return Timestamp{Date: t, Source: SourceEXIF}, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return Timestamp{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return Timestamp{Date: info.ModTime().UTC(), Source: SourceMtime}, nil
}

func exifTime(path string) (time.Time, bool) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer func() { _ = f.Close() }()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, false
	}
	for _, name := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized, exif.DateTime} {
		tag, err := x.Get(name)
		if err != nil {
			continue
		}
		s, err := tag.StringVal()
		if err != nil {
			continue
		}
		t, err := time.ParseInLocation(exifLayout, strings.TrimRight(strings.TrimSpace(s), "\x00"), time.UTC)
		if err == nil && !t.IsZero() {
			return t, true
		}
	}
	return time.Time{}, false
}

// YearMonthPath returns "YYYY/MM" for t in UTC.
func YearMonthPath(t time.Time) string {
	return t.UTC().Format("2006/01")
}
