package importer

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bolet777/mediahub/internal/atomicfile"
	"github.com/bolet777/mediahub/internal/library"
	"github.com/bolet777/mediahub/internal/types"
)

const resultStem = "20060102T150405Z"

// SaveResult writes result as a new file under the source's imports
// directory. Existing results are never replaced.
func SaveResult(root string, result Result) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal import result: %w", err)
	}
	stem := result.ImportedAt
	if t, err := types.ParseTime(result.ImportedAt); err == nil {
		stem = t.UTC().Format(resultStem)
	}
	return atomicfile.WriteNew(library.ImportsDir(root, result.SourceID), stem, ".json", append(data, '\n'))
}

// LoadLatestResult reads the most recent import result for sourceID.
func LoadLatestResult(root, sourceID string) (Result, error) {
	path, err := atomicfile.Newest(library.ImportsDir(root, sourceID), ".json")
	if err != nil {
		return Result{}, fmt.Errorf("no import result for source %s: %w", sourceID, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("invalid import result %s: %w", path, err)
	}
	return r, nil
}
