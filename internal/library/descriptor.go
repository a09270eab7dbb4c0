package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/bolet777/mediahub/internal/atomicfile"
	"github.com/bolet777/mediahub/internal/types"
)

// DescriptorVersion is the library.yaml schema version written by Init.
const DescriptorVersion = "1"

var (
	// ErrNotLibrary is returned when a directory has no library descriptor.
	ErrNotLibrary = errors.New("not a media library")
	// ErrAlreadyLibrary is returned by Init on an initialized directory.
	ErrAlreadyLibrary = errors.New("library already initialized")
	// ErrRootNotFound is returned when the library root does not exist.
	ErrRootNotFound = errors.New("library root not found")
)

// Descriptor identifies a library independently of its location.
type Descriptor struct {
	ID        string `yaml:"id"`
	CreatedAt string `yaml:"createdAt"`
	Version   string `yaml:"version"`
}

// Init creates the metadata directory and a descriptor with a fresh id.
func Init(root string) (Descriptor, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Descriptor{}, fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		return Descriptor{}, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return Descriptor{}, fmt.Errorf("library root %s is not a directory", root)
	}
	if _, err := os.Stat(descriptorPath(root)); err == nil {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrAlreadyLibrary, root)
	}

	d := Descriptor{
		ID:        uuid.NewString(),
		CreatedAt: types.FormatTime(time.Now()),
		Version:   DescriptorVersion,
	}
	data, err := yaml.Marshal(d)
	if err != nil {
		return Descriptor{}, fmt.Errorf("marshal descriptor: %w", err)
	}
	if err := atomicfile.WriteFile(descriptorPath(root), data, 0o644); err != nil {
		return Descriptor{}, fmt.Errorf("write descriptor: %w", err)
	}
	return d, nil
}

// Open reads the descriptor of the library at root.
func Open(root string) (Descriptor, error) {
	if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}
	data, err := os.ReadFile(descriptorPath(root))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Descriptor{}, fmt.Errorf("%w: %s", ErrNotLibrary, root)
		}
		return Descriptor{}, fmt.Errorf("read descriptor: %w", err)
	}

	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fmt.Errorf("invalid %s: %w", descriptorFile, err)
	}
	if d.ID == "" {
		return Descriptor{}, fmt.Errorf("invalid %s: missing id", descriptorFile)
	}
	return d, nil
}

// FindRoot walks up from dir until it finds a library descriptor.
func FindRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for cur := abs; ; {
		if _, err := os.Stat(descriptorPath(cur)); err == nil {
			return cur, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("%w: %s (or any parent)", ErrNotLibrary, abs)
		}
		cur = parent
	}
}
