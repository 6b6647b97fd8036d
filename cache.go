package tabular

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// TransformCache memoizes transformation outputs, keyed by the pair
// (input fingerprint, transform fingerprint). It is strictly an
// optimization: every fault on the read path degrades to a miss, and
// faults on the write path degrade to a no-op. Both are logged.
type TransformCache struct {
	root    string
	fs      afero.Fs
	log     *zap.Logger
	nowFunc NowFunc
	mu      sync.Mutex
}

// NowFunc defines a function that returns the current time.
type NowFunc func() time.Time

// CacheOption configures a TransformCache.
type CacheOption func(*TransformCache)

// OpenTransformCache opens (creating if needed) a transform cache rooted at
// the given directory. The cache directory is explicit configuration: there
// is no environment-derived default.
func OpenTransformCache(root string, options ...CacheOption) (*TransformCache, error) {
	c := &TransformCache{
		root:    root,
		fs:      afero.NewOsFs(),
		log:     zap.NewNop(),
		nowFunc: time.Now,
	}

	for _, option := range options {
		option(c)
	}

	if err := c.fs.MkdirAll(c.transformsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transforms directory: %w", err)
	}
	return c, nil
}

// OpenTempTransformCache creates an in-memory cache for testing.
func OpenTempTransformCache() *TransformCache {
	c, err := OpenTransformCache("", WithFs(afero.NewMemMapFs()))
	if err != nil {
		panic(fmt.Sprintf("failed to create temp cache: %v", err))
	}
	return c
}

// Get retrieves the memoized dataset for the key pair. The second return
// reports a hit. Unreadable payloads, checksum mismatches, and decode
// failures all count as misses.
func (c *TransformCache) Get(inputFP, transformFP Fingerprint) (*Dataset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(inputFP, transformFP)
	m := c.loadManifest()
	entry, ok := m.Entries[key]
	if !ok {
		return nil, false
	}

	path := c.entryPath(inputFP, transformFP)
	payload, err := afero.ReadFile(c.fs, path)
	if err != nil {
		c.log.Warn("unreadable cache entry, treating as miss",
			zap.String("key", key),
			zap.Error(err))
		return nil, false
	}
	if sum := payloadChecksum(payload); sum != entry.Checksum {
		c.log.Warn("cache entry checksum mismatch, treating as miss",
			zap.String("key", key),
			zap.String("want", entry.Checksum),
			zap.String("got", sum))
		return nil, false
	}

	d, err := decodeDataset(payload)
	if err != nil {
		c.log.Warn("corrupt cache entry, treating as miss",
			zap.String("key", key),
			zap.Error(err))
		return nil, false
	}
	return d, true
}

// Put stores a dataset under the key pair, overwriting any previous entry.
func (c *TransformCache) Put(inputFP, transformFP Fingerprint, d *Dataset) error {
	payload, err := encodeDataset(d)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.entryPath(inputFP, transformFP)
	if err := afero.WriteFile(c.fs, path, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	m := c.loadManifest()
	m.Entries[cacheKey(inputFP, transformFP)] = manifestEntry{
		InputFingerprint:     inputFP.String(),
		TransformFingerprint: transformFP.String(),
		CreatedAt:            c.nowFunc(),
		SizeBytes:            int64(len(payload)),
		Checksum:             payloadChecksum(payload),
	}
	return c.saveManifest(m)
}

// Cleanup evicts entries in two passes: first everything older than maxAge,
// then oldest-by-creation entries until the total payload size fits under
// maxTotalSize. A negative maxAge disables the age pass; a negative
// maxTotalSize disables the size pass (so Cleanup(0, -1) empties the cache).
// Returns the number of entries removed.
func (c *TransformCache) Cleanup(maxAge time.Duration, maxTotalSize int64) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.loadManifest()
	removed := 0

	if maxAge >= 0 {
		cutoff := c.nowFunc().Add(-maxAge)
		for key, entry := range m.Entries {
			if !entry.CreatedAt.After(cutoff) {
				c.removeEntry(m, key)
				removed++
			}
		}
	}

	if maxTotalSize >= 0 {
		var total int64
		keys := make([]string, 0, len(m.Entries))
		for key, entry := range m.Entries {
			total += entry.SizeBytes
			keys = append(keys, key)
		}
		// Oldest first; key order breaks creation-time ties deterministically.
		sort.Slice(keys, func(i, j int) bool {
			a, b := m.Entries[keys[i]], m.Entries[keys[j]]
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return keys[i] < keys[j]
		})
		for _, key := range keys {
			if total <= maxTotalSize {
				break
			}
			total -= m.Entries[key].SizeBytes
			c.removeEntry(m, key)
			removed++
		}
	}

	if err := c.saveManifest(m); err != nil {
		return removed, err
	}
	return removed, nil
}

// CacheStats summarizes the manifest.
type CacheStats struct {
	Entries     int
	TotalSize   int64
	OldestEntry time.Duration
	NewestEntry time.Duration
}

// Stats returns statistics about the cache contents.
func (c *TransformCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.loadManifest()
	stats := CacheStats{Entries: len(m.Entries)}

	var oldest, newest time.Time
	for _, entry := range m.Entries {
		stats.TotalSize += entry.SizeBytes
		if oldest.IsZero() || entry.CreatedAt.Before(oldest) {
			oldest = entry.CreatedAt
		}
		if newest.IsZero() || entry.CreatedAt.After(newest) {
			newest = entry.CreatedAt
		}
	}

	now := c.nowFunc()
	if !oldest.IsZero() {
		stats.OldestEntry = now.Sub(oldest)
	}
	if !newest.IsZero() {
		stats.NewestEntry = now.Sub(newest)
	}
	return stats
}

// Clear removes all entries and the manifest.
func (c *TransformCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fs.RemoveAll(c.transformsDir()); err != nil {
		return fmt.Errorf("failed to remove transforms directory: %w", err)
	}
	if err := c.fs.MkdirAll(c.transformsDir(), 0o755); err != nil {
		return fmt.Errorf("failed to recreate transforms directory: %w", err)
	}
	return nil
}

// removeEntry drops an entry from the manifest and best-effort deletes its
// payload file.
func (c *TransformCache) removeEntry(m *manifest, key string) {
	delete(m.Entries, key)
	path := filepath.Join(c.transformsDir(), key+cacheFileExt)
	if err := c.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.log.Warn("failed to remove cache entry file",
			zap.String("path", path),
			zap.Error(err))
	}
}

const cacheFileExt = ".cache"

func cacheKey(inputFP, transformFP Fingerprint) string {
	return inputFP.String() + "_" + transformFP.String()
}

func (c *TransformCache) transformsDir() string {
	return filepath.Join(c.root, "transforms")
}

func (c *TransformCache) manifestPath() string {
	return filepath.Join(c.transformsDir(), "manifest.json")
}

func (c *TransformCache) entryPath(inputFP, transformFP Fingerprint) string {
	return filepath.Join(c.transformsDir(), cacheKey(inputFP, transformFP)+cacheFileExt)
}
