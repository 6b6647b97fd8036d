package tabular

import (
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// WithFs sets a custom filesystem for the cache.
// This is primarily useful for testing with in-memory filesystems.
//
// Example:
//
//	cache, err := tabular.OpenTransformCache(".cache", tabular.WithFs(afero.NewMemMapFs()))
func WithFs(fs afero.Fs) CacheOption {
	return func(c *TransformCache) {
		c.fs = fs
	}
}

// WithNowFunc sets a custom time function for the cache.
// This is primarily useful for testing eviction with deterministic timestamps.
func WithNowFunc(nowFunc NowFunc) CacheOption {
	return func(c *TransformCache) {
		c.nowFunc = nowFunc
	}
}

// WithCacheLogger sets the logger the cache uses for degraded-path warnings
// (corrupt entries, manifest faults). Defaults to a no-op logger.
func WithCacheLogger(log *zap.Logger) CacheOption {
	return func(c *TransformCache) {
		if log != nil {
			c.log = log
		}
	}
}

// DatasetOption configures a Dataset at construction.
type DatasetOption func(*Dataset)

// WithSchema attaches a schema. Records are validated against it by
// NewDataset.
func WithSchema(s Schema) DatasetOption {
	return func(d *Dataset) {
		d.schema = s
	}
}

// WithCache threads a transform cache through the dataset. Map and Filter
// consult it; all derived datasets inherit it.
func WithCache(c *TransformCache) DatasetOption {
	return func(d *Dataset) {
		d.cache = c
	}
}

// WithLogger sets the logger for cache-degradation warnings raised by
// dataset operators. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) DatasetOption {
	return func(d *Dataset) {
		if log != nil {
			d.log = log
		}
	}
}
