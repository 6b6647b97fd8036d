package tabular

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// manifest indexes every cache entry for lookup and eviction. It lives at
// <root>/transforms/manifest.json and is the single source of truth for
// entry metadata; the .cache files hold only payloads.
type manifest struct {
	Entries map[string]manifestEntry `json:"entries"`
}

// manifestEntry carries the per-entry metadata used for lookup validation
// and eviction ordering.
type manifestEntry struct {
	InputFingerprint     string    `json:"input_fingerprint"`
	TransformFingerprint string    `json:"transform_fingerprint"`
	CreatedAt            time.Time `json:"created_at"`
	SizeBytes            int64     `json:"size_bytes"`
	Checksum             string    `json:"checksum"`
}

func newManifest() *manifest {
	return &manifest{Entries: make(map[string]manifestEntry)}
}

// loadManifest reads the manifest from disk. A missing manifest yields an
// empty one; a corrupt manifest is logged and also yields an empty one,
// orphaning the existing entries rather than failing the caller.
func (c *TransformCache) loadManifest() *manifest {
	data, err := afero.ReadFile(c.fs, c.manifestPath())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn("failed to read cache manifest, starting empty",
				zap.String("path", c.manifestPath()),
				zap.Error(err))
		}
		return newManifest()
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		c.log.Warn("corrupt cache manifest, starting empty",
			zap.String("path", c.manifestPath()),
			zap.Error(err))
		return newManifest()
	}
	if m.Entries == nil {
		m.Entries = make(map[string]manifestEntry)
	}
	return &m
}

// saveManifest writes the manifest atomically: a temp file under the same
// directory followed by a rename, so readers never observe a torn write.
// Callers hold c.mu, giving a single-writer discipline within the process.
func (c *TransformCache) saveManifest(m *manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tmp := c.manifestPath() + ".tmp"
	if err := afero.WriteFile(c.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := c.fs.Rename(tmp, c.manifestPath()); err != nil {
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}
