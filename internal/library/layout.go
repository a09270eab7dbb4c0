// Package library resolves the on-disk layout of a media library and manages
// its descriptor and attached sources.
package library

import (
	"path/filepath"
	"strings"
)

// MetadataDirName is the directory under the library root that holds all
// bookkeeping. It is never scanned as library content.
const MetadataDirName = ".mediahub"

const (
	registryDir    = "registry"
	detectionsDir  = "detections"
	importsDir     = "imports"
	cacheDir       = "cache"
	descriptorFile = "library.yaml"
	sourcesFile    = "sources.yaml"
	configFile     = "config.yaml"
	indexFile      = "index.json"
	knownItemsFile = "known-items.db"
	hashCacheFile  = "hashes.db"
)

// MetadataDir returns <root>/.mediahub.
func MetadataDir(root string) string {
	return filepath.Join(root, MetadataDirName)
}

// RegistryDir returns the directory holding the index and known items.
func RegistryDir(root string) string {
	return filepath.Join(MetadataDir(root), registryDir)
}

// IndexPath returns the location of the baseline index.
func IndexPath(root string) string {
	return filepath.Join(RegistryDir(root), indexFile)
}

// KnownItemsPath returns the location of the known-items database.
func KnownItemsPath(root string) string {
	return filepath.Join(RegistryDir(root), knownItemsFile)
}

// DetectionsDir returns the directory of detection results for one source.
func DetectionsDir(root, sourceID string) string {
	return filepath.Join(MetadataDir(root), detectionsDir, sourceID)
}

// ImportsDir returns the directory of import results for one source.
func ImportsDir(root, sourceID string) string {
	return filepath.Join(MetadataDir(root), importsDir, sourceID)
}

// HashCachePath returns the location of the content-hash cache.
func HashCachePath(root string) string {
	return filepath.Join(MetadataDir(root), cacheDir, hashCacheFile)
}

// ConfigPath returns the location of the per-library configuration.
func ConfigPath(root string) string {
	return filepath.Join(MetadataDir(root), configFile)
}

func descriptorPath(root string) string {
	return filepath.Join(MetadataDir(root), descriptorFile)
}

func sourcesPath(root string) string {
	return filepath.Join(MetadataDir(root), sourcesFile)
}

// IsMetadataPath reports whether rel (a root-relative, slash-separated path)
// lies inside the metadata directory.
func IsMetadataPath(rel string) bool {
	return rel == MetadataDirName || strings.HasPrefix(rel, MetadataDirName+"/")
}
