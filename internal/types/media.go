package types

import (
	"path/filepath"
	"strings"
	"time"
)

// TimeLayout is the ISO-8601 layout used for every persisted timestamp.
const TimeLayout = time.RFC3339

// FormatTime renders t in UTC using TimeLayout with second precision.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimeLayout)
}

// ParseTime parses a timestamp written by FormatTime (or any RFC 3339 value).
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// MediaKind classifies a recognized media file.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// MediaFilter restricts which media kinds a source contributes.
type MediaFilter string

const (
	FilterBoth   MediaFilter = "both"
	FilterImages MediaFilter = "images"
	FilterVideos MediaFilter = "videos"
)

// Allows reports whether the filter admits the given kind.
// The zero value behaves like FilterBoth.
func (f MediaFilter) Allows(kind MediaKind) bool {
	switch f {
	case FilterImages:
		return kind == MediaImage
	case FilterVideos:
		return kind == MediaVideo
	default:
		return true
	}
}

var imageExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "heic": true, "heif": true,
	"tif": true, "tiff": true, "bmp": true, "webp": true, "dng": true, "cr2": true,
	"cr3": true, "nef": true, "arw": true, "orf": true, "rw2": true, "raf": true,
}

var videoExtensions = map[string]bool{
	"mov": true, "mp4": true, "m4v": true, "avi": true, "mkv": true, "3gp": true,
	"mts": true, "m2ts": true,
}

// ClassifyExtension returns the media kind for a file name based on its
// extension (case-insensitive). extra lists additional extensions, without the
// dot, that are treated as images.
func ClassifyExtension(name string, extra ...string) (MediaKind, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return "", false
	}
	switch {
	case imageExtensions[ext]:
		return MediaImage, true
	case videoExtensions[ext]:
		return MediaVideo, true
	}
	for _, e := range extra {
		if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
			return MediaImage, true
		}
	}
	return "", false
}

// Source is a folder attached to a library from which media is imported.
type Source struct {
	ID             string      `json:"id" yaml:"id"`
	Type           string      `json:"type" yaml:"type"`
	Path           string      `json:"path" yaml:"path"`
	MediaTypes     MediaFilter `json:"mediaTypes,omitempty" yaml:"mediaTypes,omitempty"`
	AttachedAt     string      `json:"attachedAt,omitempty" yaml:"attachedAt,omitempty"`
	LastDetectedAt string      `json:"lastDetectedAt,omitempty" yaml:"lastDetectedAt,omitempty"`
}

// SourceTypeFolder is the only source type currently supported.
const SourceTypeFolder = "folder"

// CandidateMediaItem is a media file discovered on the source side.
type CandidateMediaItem struct {
	Path             string `json:"path"`
	Size             int64  `json:"size"`
	ModificationDate string `json:"modificationDate"`
	FileName         string `json:"fileName"`
}

// CandidateList is a collection of candidates ordered by absolute path.
type CandidateList = Sorted[CandidateMediaItem, string]

// NewCandidateList creates a CandidateList sorted by path.
func NewCandidateList(items []CandidateMediaItem) CandidateList {
	return NewSorted(items, func(c CandidateMediaItem) string { return c.Path })
}
