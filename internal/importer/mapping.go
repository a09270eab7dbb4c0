package importer

import (
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/bolet777/mediahub/internal/mediatime"
	"github.com/bolet777/mediahub/internal/types"
)

// placeholderName replaces names that sanitize to nothing.
const placeholderName = "unnamed"

// Mapping is the library placement of a candidate before collision handling.
type Mapping struct {
	YearMonthPath   string // "YYYY/MM"
	FileName        string // Sanitized
	RelativePath    string // Root-relative, slash-separated
	DestinationPath string // Absolute
}

// MapDestination places candidate under <root>/YYYY/MM/<sanitized name>.
func MapDestination(candidate types.CandidateMediaItem, ts mediatime.Timestamp, root string) Mapping {
	ym := mediatime.YearMonthPath(ts.Date)
	name := SanitizeFileName(candidate.FileName)
	rel := path.Join(ym, name)
	return Mapping{
		YearMonthPath:   ym,
		FileName:        name,
		RelativePath:    rel,
		DestinationPath: filepath.Join(root, filepath.FromSlash(rel)),
	}
}

// SanitizeFileName replaces path separators, control characters and
// characters that are invalid on common filesystems with "_". Names that
// end up empty, or consist only of dots, become "unnamed".
func SanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|':
			b.WriteRune('_')
		case unicode.IsControl(r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	s := strings.TrimSpace(b.String())
	if strings.Trim(s, "._") == "" {
		return placeholderName
	}
	return s
}
