package maintenance

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolet777/mediahub/internal/cache"
	"github.com/bolet777/mediahub/internal/hasher"
	"github.com/bolet777/mediahub/internal/index"
	"github.com/bolet777/mediahub/internal/types"
)

// newLibrary writes files under a temp root and indexes them unhashed.
func newLibrary(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	idx, err := index.Build(root, types.NewCancelFlag())
	require.NoError(t, err)
	require.NoError(t, index.Write(idx, index.FilePath(root), root))
	return root
}

func hashOf(t *testing.T, content string) string {
	t.Helper()
	h, err := hasher.HashReader(strings.NewReader(content))
	require.NoError(t, err)
	return h
}

func readIndex(t *testing.T, root string) *index.Index {
	t.Helper()
	idx, err := index.Load(index.FilePath(root))
	require.NoError(t, err)
	return idx
}

// =============================================================================
// Section 1: Candidate Selection
// =============================================================================

func TestSelectCandidatesSortedAndLimited(t *testing.T) {
	root := newLibrary(t, map[string]string{"c.jpg": "c", "a.jpg": "a", "b/x.jpg": "x"})

	sel, err := SelectCandidates(root, 0)
	require.NoError(t, err)
	var paths []string
	for _, c := range sel.Candidates {
		paths = append(paths, c.Entry.Path)
	}
	assert.Equal(t, []string{"a.jpg", "b/x.jpg", "c.jpg"}, paths)
	assert.Equal(t, 3, sel.Statistics.EntriesMissingHash)

	// The limit applies after sorting.
	sel, err = SelectCandidates(root, 2)
	require.NoError(t, err)
	require.Len(t, sel.Candidates, 2)
	assert.Equal(t, "a.jpg", sel.Candidates[0].Entry.Path)
	assert.Equal(t, "b/x.jpg", sel.Candidates[1].Entry.Path)
}

func TestSelectCandidatesCountsMissingFiles(t *testing.T) {
	root := newLibrary(t, map[string]string{"a.jpg": "a", "gone.jpg": "g"})
	require.NoError(t, os.Remove(filepath.Join(root, "gone.jpg")))

	sel, err := SelectCandidates(root, 0)
	require.NoError(t, err)
	require.Len(t, sel.Candidates, 1)
	assert.Equal(t, "a.jpg", sel.Candidates[0].Entry.Path)
	assert.Equal(t, 1, sel.MissingFilesCount)
}

func TestSelectCandidatesSkipsHashedEntries(t *testing.T) {
	root := newLibrary(t, map[string]string{"a.jpg": "a", "b.jpg": "b"})
	_, err := ApplyComputedHashesAndWriteIndex(root, map[string]string{"a.jpg": hashOf(t, "a")})
	require.NoError(t, err)

	sel, err := SelectCandidates(root, 0)
	require.NoError(t, err)
	require.Len(t, sel.Candidates, 1)
	assert.Equal(t, "b.jpg", sel.Candidates[0].Entry.Path)
}

func TestSelectCandidatesIsReadOnly(t *testing.T) {
	root := newLibrary(t, map[string]string{"a.jpg": "a"})
	before, err := os.ReadFile(index.FilePath(root))
	require.NoError(t, err)

	_, err = SelectCandidates(root, 0)
	require.NoError(t, err)

	after, err := os.ReadFile(index.FilePath(root))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSelectCandidatesErrors(t *testing.T) {
	_, err := SelectCandidates(filepath.Join(t.TempDir(), "missing"), 0)
	assert.True(t, errors.Is(err, ErrLibraryNotFound), "got %v", err)

	_, err = SelectCandidates(t.TempDir(), 0)
	assert.True(t, errors.Is(err, ErrIndexNotFound), "got %v", err)

	root := newLibrary(t, map[string]string{"a.jpg": "a"})
	require.NoError(t, os.WriteFile(index.FilePath(root), []byte("{"), 0o644))
	_, err = SelectCandidates(root, 0)
	assert.True(t, index.IsKind(err, index.KindInvalidJSON), "got %v", err)
}

// =============================================================================
// Section 2: Hash Computation
// =============================================================================

func TestComputeMissingHashes(t *testing.T) {
	root := newLibrary(t, map[string]string{"a.jpg": "alpha", "b.jpg": "beta"})
	before, err := os.ReadFile(index.FilePath(root))
	require.NoError(t, err)

	res, err := ComputeMissingHashes(root, 0, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.HashesComputed)
	assert.Empty(t, res.HashFailures)
	assert.Equal(t, map[string]string{
		"a.jpg": hashOf(t, "alpha"),
		"b.jpg": hashOf(t, "beta"),
	}, res.ComputedHashes)

	// Computing never touches the index.
	after, err := os.ReadFile(index.FilePath(root))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestComputeMissingHashesRespectsLimit(t *testing.T) {
	root := newLibrary(t, map[string]string{"a.jpg": "a", "b.jpg": "b", "c.jpg": "c"})

	res, err := ComputeMissingHashes(root, 1, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.HashesComputed)
	assert.Contains(t, res.ComputedHashes, "a.jpg")
}

func TestComputeMissingHashesReportsChangedFiles(t *testing.T) {
	root := newLibrary(t, map[string]string{"a.jpg": "a", "b.jpg": "b"})
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.jpg"), []byte("grown"), 0o644))

	res, err := ComputeMissingHashes(root, 0, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.HashesComputed)
	require.Len(t, res.HashFailures, 1)
	assert.Equal(t, "b.jpg", res.HashFailures[0].Path)
	assert.Contains(t, res.HashFailures[0].Reason, "size changed")
}

func TestComputeMissingHashesUsesCache(t *testing.T) {
	root := newLibrary(t, map[string]string{"a.jpg": "alpha"})
	cachePath := filepath.Join(t.TempDir(), "hashes.db")
	info, err := os.Stat(filepath.Join(root, "a.jpg"))
	require.NoError(t, err)

	// Seed the cache with a hash that differs from the real content so a hit
	// is observable.
	seeded := "sha256:" + strings.Repeat("ab", 32)
	c, err := cache.Open(cachePath)
	require.NoError(t, err)
	require.NoError(t, c.Store("a.jpg", info.Size(), info.ModTime(), seeded))
	require.NoError(t, c.Close())

	c, err = cache.Open(cachePath)
	require.NoError(t, err)
	defer c.Close()

	res, err := ComputeMissingHashes(root, 0, Options{Cache: c})
	require.NoError(t, err)
	assert.Equal(t, 1, res.CacheHits)
	assert.Equal(t, seeded, res.ComputedHashes["a.jpg"])
}

func TestComputeMissingHashesCacheMissOnMtimeChange(t *testing.T) {
	root := newLibrary(t, map[string]string{"a.jpg": "alpha"})
	cachePath := filepath.Join(t.TempDir(), "hashes.db")
	p := filepath.Join(root, "a.jpg")
	info, err := os.Stat(p)
	require.NoError(t, err)

	c, err := cache.Open(cachePath)
	require.NoError(t, err)
	require.NoError(t, c.Store("a.jpg", info.Size(), info.ModTime(), "sha256:"+strings.Repeat("ab", 32)))
	require.NoError(t, c.Close())

	later := info.ModTime().Add(time.Hour)
	require.NoError(t, os.Chtimes(p, later, later))

	c, err = cache.Open(cachePath)
	require.NoError(t, err)
	defer c.Close()

	res, err := ComputeMissingHashes(root, 0, Options{Cache: c})
	require.NoError(t, err)
	assert.Equal(t, 0, res.CacheHits)
	assert.Equal(t, hashOf(t, "alpha"), res.ComputedHashes["a.jpg"])
}

func TestComputeMissingHashesCanceled(t *testing.T) {
	root := newLibrary(t, map[string]string{"a.jpg": "a", "b.jpg": "b"})
	flag := types.NewCancelFlag()
	flag.Cancel()

	res, err := ComputeMissingHashes(root, 0, Options{Cancel: flag})
	assert.True(t, errors.Is(err, types.ErrCanceled))
	assert.Equal(t, 0, res.HashesComputed)
}

// =============================================================================
// Section 3: Applying Hashes
// =============================================================================

func TestApplyWritesIndexAndUpgradesVersion(t *testing.T) {
	root := newLibrary(t, map[string]string{"a.jpg": "a", "b.jpg": "b"})
	require.Equal(t, index.VersionPlain, readIndex(t, root).Version())

	res, err := ApplyComputedHashesAndWriteIndex(root, map[string]string{"a.jpg": hashOf(t, "a")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.EntriesUpdated)
	assert.True(t, res.IndexUpdated)
	assert.Equal(t, 0, res.StatisticsBefore.EntriesWithHash)
	assert.Equal(t, 1, res.StatisticsAfter.EntriesWithHash)
	assert.InDelta(t, 0.5, res.StatisticsAfter.HashCoverage, 0.0001)

	idx := readIndex(t, root)
	assert.Equal(t, index.VersionHashed, idx.Version())
	e, ok := idx.Lookup("a.jpg")
	require.True(t, ok)
	assert.Equal(t, hashOf(t, "a"), e.Hash)
}

func TestApplyIsIdempotent(t *testing.T) {
	root := newLibrary(t, map[string]string{"a.jpg": "a"})
	hashes := map[string]string{"a.jpg": hashOf(t, "a")}

	_, err := ApplyComputedHashesAndWriteIndex(root, hashes)
	require.NoError(t, err)
	first, err := os.ReadFile(index.FilePath(root))
	require.NoError(t, err)

	res, err := ApplyComputedHashesAndWriteIndex(root, hashes)
	require.NoError(t, err)
	assert.Equal(t, 0, res.EntriesUpdated)
	assert.False(t, res.IndexUpdated)

	second, err := os.ReadFile(index.FilePath(root))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestApplyNeverOverwritesExistingHash(t *testing.T) {
	root := newLibrary(t, map[string]string{"a.jpg": "a"})
	original := hashOf(t, "a")
	_, err := ApplyComputedHashesAndWriteIndex(root, map[string]string{"a.jpg": original})
	require.NoError(t, err)

	res, err := ApplyComputedHashesAndWriteIndex(root, map[string]string{"a.jpg": "sha256:" + strings.Repeat("0", 64)})
	require.NoError(t, err)
	assert.Equal(t, 0, res.EntriesUpdated)

	e, _ := readIndex(t, root).Lookup("a.jpg")
	assert.Equal(t, original, e.Hash)
}

func TestApplyIgnoresUnknownPathsAndMalformedHashes(t *testing.T) {
	root := newLibrary(t, map[string]string{"a.jpg": "a"})

	res, err := ApplyComputedHashesAndWriteIndex(root, map[string]string{
		"nope.jpg": hashOf(t, "x"),
		"a.jpg":    "md5:abc",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.EntriesUpdated)
	assert.False(t, res.IndexUpdated)
}

// TestComputeThenApply tests the full backfill in two passes with a limit.
func TestComputeThenApply(t *testing.T) {
	root := newLibrary(t, map[string]string{"a.jpg": "a", "b.jpg": "b", "c.jpg": "c"})

	for pass := 1; pass <= 2; pass++ {
		res, err := ComputeMissingHashes(root, 2, Options{})
		require.NoError(t, err)
		_, err = ApplyComputedHashesAndWriteIndex(root, res.ComputedHashes)
		require.NoError(t, err)
	}

	idx := readIndex(t, root)
	assert.Equal(t, 3, idx.HashEntryCount())
	assert.InDelta(t, 1.0, idx.HashCoverage(), 0.0001)

	sel, err := SelectCandidates(root, 0)
	require.NoError(t, err)
	assert.Empty(t, sel.Candidates)
}
