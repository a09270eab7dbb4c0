package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/bolet777/mediahub/internal/atomicfile"
	"github.com/bolet777/mediahub/internal/types"
)

var (
	// ErrSourceNotFound is returned when no attached source matches.
	ErrSourceNotFound = errors.New("source not found")
	// ErrSourceExists is returned when attaching a path twice.
	ErrSourceExists = errors.New("source already attached")
)

type sourcesFileV1 struct {
	Sources []types.Source `yaml:"sources"`
}

// SourceStore persists the sources attached to one library.
type SourceStore struct {
	root string
}

// NewSourceStore creates a store for the library at root.
func NewSourceStore(root string) *SourceStore {
	return &SourceStore{root: root}
}

// Path returns the sources file location.
func (s *SourceStore) Path() string {
	return sourcesPath(s.root)
}

// List returns all attached sources. A missing file means none.
func (s *SourceStore) List() ([]types.Source, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", sourcesFile, err)
	}

	var f sourcesFileV1
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", sourcesFile, err)
	}
	return f.Sources, nil
}

func (s *SourceStore) save(sources []types.Source) error {
	data, err := yaml.Marshal(sourcesFileV1{Sources: sources})
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}
	if err := atomicfile.WriteFile(s.Path(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", sourcesFile, err)
	}
	return nil
}

// Add attaches a folder source. The path must be an existing directory.
func (s *SourceStore) Add(path string, filter types.MediaFilter) (types.Source, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return types.Source{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return types.Source{}, fmt.Errorf("source %s: %w", abs, err)
	}
	if !info.IsDir() {
		return types.Source{}, fmt.Errorf("source %s is not a directory", abs)
	}

	sources, err := s.List()
	if err != nil {
		return types.Source{}, err
	}
	if lo.ContainsBy(sources, func(src types.Source) bool { return src.Path == abs }) {
		return types.Source{}, fmt.Errorf("%w: %s", ErrSourceExists, abs)
	}

	if filter == "" {
		filter = types.FilterBoth
	}
	src := types.Source{
		ID:         uuid.NewString(),
		Type:       types.SourceTypeFolder,
		Path:       abs,
		MediaTypes: filter,
		AttachedAt: types.FormatTime(time.Now()),
	}
	if err := s.save(append(sources, src)); err != nil {
		return types.Source{}, err
	}
	return src, nil
}

// Get finds a source by id or by path.
func (s *SourceStore) Get(idOrPath string) (types.Source, error) {
	sources, err := s.List()
	if err != nil {
		return types.Source{}, err
	}
	abs, _ := filepath.Abs(idOrPath)
	src, ok := lo.Find(sources, func(src types.Source) bool {
		return src.ID == idOrPath || src.Path == abs
	})
	if !ok {
		return types.Source{}, fmt.Errorf("%w: %s", ErrSourceNotFound, idOrPath)
	}
	return src, nil
}

// Update replaces the stored source with the same id.
func (s *SourceStore) Update(src types.Source) error {
	sources, err := s.List()
	if err != nil {
		return err
	}
	_, i, ok := lo.FindIndexOf(sources, func(existing types.Source) bool { return existing.ID == src.ID })
	if !ok {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, src.ID)
	}
	sources[i] = src
	return s.save(sources)
}
