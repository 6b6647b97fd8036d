package tabular

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Dataset is an immutable, eagerly materialized ordered collection of
// records. Every operator returns a new Dataset and leaves the receiver
// untouched; backing records are shared structurally, never mutated.
type Dataset struct {
	records []Record
	schema  Schema
	fp      Fingerprint
	cache   *TransformCache
	log     *zap.Logger
}

// MapFunc transforms one record into another.
type MapFunc func(Record) (Record, error)

// FilterFunc decides whether a record is retained.
type FilterFunc func(Record) (bool, error)

// NewDataset builds a dataset from records. If a schema is supplied via
// WithSchema, every record is validated against it.
func NewDataset(records []Record, opts ...DatasetOption) (*Dataset, error) {
	d := &Dataset{
		records: append([]Record(nil), records...),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.schema != nil {
		for i, r := range d.records {
			if err := d.schema.Validate(r); err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
		}
	}
	return d, nil
}

// derive builds a successor dataset sharing the receiver's cache and logger.
func (d *Dataset) derive(records []Record, schema Schema) *Dataset {
	return &Dataset{records: records, schema: schema, cache: d.cache, log: d.log}
}

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.records) }

// Records returns a copy of the record sequence. The records themselves are
// shared; treat them as read-only.
func (d *Dataset) Records() []Record {
	return append([]Record(nil), d.records...)
}

// At returns the record at index i.
func (d *Dataset) At(i int) (Record, error) {
	if i < 0 || i >= len(d.records) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrIndexOutOfRange, i, len(d.records))
	}
	return d.records[i], nil
}

// Schema returns the attached schema, or nil.
func (d *Dataset) Schema() Schema { return d.schema.Clone() }

// Fingerprint returns the dataset's current fingerprint. It is zero until a
// cached transformation tags the dataset.
func (d *Dataset) Fingerprint() Fingerprint { return d.fp }

// Equal reports whether two datasets hold equal records in equal order.
func (d *Dataset) Equal(o *Dataset) bool {
	if len(d.records) != len(o.records) {
		return false
	}
	for i := range d.records {
		if !d.records[i].Equal(o.records[i]) {
			return false
		}
	}
	return true
}

// TransformOption configures a single Map or Filter application.
type TransformOption func(*transformConfig)

type transformConfig struct {
	options map[string]string
	noCache bool
}

// WithTransformOptions adds key/value options that become part of the
// transform fingerprint, distinguishing otherwise-identical applications.
func WithTransformOptions(options map[string]string) TransformOption {
	return func(cfg *transformConfig) {
		cfg.options = options
	}
}

// WithoutCache disables cache lookup and store for this application only.
func WithoutCache() TransformOption {
	return func(cfg *transformConfig) {
		cfg.noCache = true
	}
}

// Map applies fn to every record. When a cache is attached, the result is
// memoized under (input fingerprint, transform fingerprint); note that fn
// contributes only its runtime symbol name to the key, so two different
// closures compiled to the same symbol share cache entries.
func (d *Dataset) Map(fn MapFunc, opts ...TransformOption) (*Dataset, error) {
	cfg := buildTransformConfig(opts)
	return d.applyCached("map", fn, cfg, nil, func() ([]Record, error) {
		out := make([]Record, len(d.records))
		for i, r := range d.records {
			nr, err := fn(r.Clone())
			if err != nil {
				return nil, fmt.Errorf("map record %d: %w", i, err)
			}
			out[i] = nr
		}
		return out, nil
	})
}

// Filter retains records for which fn returns true. Caching behaves as in
// Map. The schema is preserved: filtering never changes record shape.
func (d *Dataset) Filter(fn FilterFunc, opts ...TransformOption) (*Dataset, error) {
	cfg := buildTransformConfig(opts)
	return d.applyCached("filter", fn, cfg, d.schema, func() ([]Record, error) {
		var out []Record
		for i, r := range d.records {
			keep, err := fn(r)
			if err != nil {
				return nil, fmt.Errorf("filter record %d: %w", i, err)
			}
			if keep {
				out = append(out, r)
			}
		}
		return out, nil
	})
}

func buildTransformConfig(opts []TransformOption) transformConfig {
	var cfg transformConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// applyCached runs the fingerprint -> cache -> compute-on-miss -> store
// pipeline shared by Map and Filter. Cache faults degrade: fingerprinting
// or store failures are logged and the transformation proceeds uncached.
func (d *Dataset) applyCached(op string, fn any, cfg transformConfig, schema Schema, compute func() ([]Record, error)) (*Dataset, error) {
	if d.cache == nil || cfg.noCache {
		records, err := compute()
		if err != nil {
			return nil, err
		}
		return d.derive(records, schema), nil
	}

	inputFP, transformFP, keyed := d.transformKey(op, fn, cfg)
	if keyed {
		if hit, ok := d.cache.Get(inputFP, transformFP); ok {
			hit.cache = d.cache
			hit.log = d.log
			return hit, nil
		}
	}

	records, err := compute()
	if err != nil {
		return nil, err
	}
	out := d.derive(records, schema)
	if keyed {
		out.fp = CombineFingerprints(inputFP, transformFP)
		if err := d.cache.Put(inputFP, transformFP, out); err != nil {
			d.log.Warn("failed to store transform result in cache",
				zap.String("op", op),
				zap.Error(err))
		}
	}
	return out, nil
}

// transformKey computes the cache key pair for an operation. keyed is false
// when fingerprinting failed; the caller then skips the cache entirely.
func (d *Dataset) transformKey(op string, fn any, cfg transformConfig) (inputFP, transformFP Fingerprint, keyed bool) {
	inputFP = d.fp
	if inputFP.IsZero() {
		var err error
		inputFP, err = FingerprintFromDataset(d)
		if err != nil {
			d.log.Warn("failed to fingerprint dataset, skipping cache", zap.Error(err))
			return Fingerprint{}, Fingerprint{}, false
		}
	}
	transformFP, err := GenerateFingerprint(op, []any{fn}, cfg.options)
	if err != nil {
		d.log.Warn("failed to fingerprint transform, skipping cache",
			zap.String("op", op),
			zap.Error(err))
		return Fingerprint{}, Fingerprint{}, false
	}
	return inputFP, transformFP, true
}

// Shuffle reorders records with the reference generator seeded from seed.
// The permutation is reproducible across runs and implementations.
func (d *Dataset) Shuffle(seed uint64) *Dataset {
	return d.ShuffleWith(NewPCG64Seed(seed))
}

// ShuffleWith reorders records drawing from an arbitrary source. Use this
// when cross-implementation ordering parity is not required. The source
// must not be shared with concurrent callers.
func (d *Dataset) ShuffleWith(src RandomSource) *Dataset {
	perm := make([]int, len(d.records))
	for i := range perm {
		perm[i] = i
	}
	shuffleWith(src, len(perm), func(i, j int) {
		perm[i], perm[j] = perm[j], perm[i]
	})

	out := make([]Record, len(d.records))
	for i, p := range perm {
		out[i] = d.records[p]
	}
	return d.derive(out, d.schema)
}

// Select returns the records at the given indices, in the given order.
func (d *Dataset) Select(indices []int) (*Dataset, error) {
	out := make([]Record, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(d.records) {
			return nil, fmt.Errorf("%w: index %d of %d", ErrIndexOutOfRange, idx, len(d.records))
		}
		out[i] = d.records[idx]
	}
	return d.derive(out, d.schema), nil
}

// Take returns the first n records. Taking more than the length saturates
// to the full dataset; a negative n is a contract violation.
func (d *Dataset) Take(n int) (*Dataset, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: take %d", ErrInvalidArgument, n)
	}
	if n > len(d.records) {
		n = len(d.records)
	}
	return d.derive(d.records[:n], d.schema), nil
}

// Skip drops the first n records. Skipping more than the length saturates
// to an empty dataset; a negative n is a contract violation.
func (d *Dataset) Skip(n int) (*Dataset, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: skip %d", ErrInvalidArgument, n)
	}
	if n > len(d.records) {
		n = len(d.records)
	}
	return d.derive(d.records[n:], d.schema), nil
}

// Slice returns records in [start, end). Unlike Take and Skip, out-of-range
// bounds are errors, not clamped.
func (d *Dataset) Slice(start, end int) (*Dataset, error) {
	if start < 0 || end < start || end > len(d.records) {
		return nil, fmt.Errorf("%w: slice [%d, %d) of %d", ErrIndexOutOfRange, start, end, len(d.records))
	}
	return d.derive(d.records[start:end], d.schema), nil
}

// Batch groups consecutive records into list-valued rows of the given size.
// The final batch may be smaller. Field names are the union across the
// batch in first-seen order; records missing a field contribute null.
func (d *Dataset) Batch(size int) (*Dataset, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: batch size %d", ErrInvalidArgument, size)
	}

	var out []Record
	for start := 0; start < len(d.records); start += size {
		end := start + size
		if end > len(d.records) {
			end = len(d.records)
		}
		out = append(out, batchRecords(d.records[start:end]))
	}
	return d.derive(out, nil), nil
}

func batchRecords(group []Record) Record {
	var names []string
	seen := make(map[string]bool)
	for _, r := range group {
		for _, f := range r {
			if !seen[f.Name] {
				seen[f.Name] = true
				names = append(names, f.Name)
			}
		}
	}

	batched := make(Record, len(names))
	for i, name := range names {
		values := make([]Value, len(group))
		for j, r := range group {
			if v, ok := r.Get(name); ok {
				values[j] = v
			} else {
				values[j] = Null()
			}
		}
		batched[i] = Field{Name: name, Value: List(values...)}
	}
	return batched
}

// Concat appends the records of the given datasets after the receiver's.
func (d *Dataset) Concat(others ...*Dataset) *Dataset {
	total := len(d.records)
	schema := d.schema
	for _, o := range others {
		total += len(o.records)
		if !schema.Equal(o.schema) {
			schema = nil
		}
	}

	out := make([]Record, 0, total)
	out = append(out, d.records...)
	for _, o := range others {
		out = append(out, o.records...)
	}
	return d.derive(out, schema)
}

// SplitAt partitions the dataset into [0, index) and [index, len).
func (d *Dataset) SplitAt(index int) (*Dataset, *Dataset, error) {
	if index < 0 || index > len(d.records) {
		return nil, nil, fmt.Errorf("%w: split at %d of %d", ErrIndexOutOfRange, index, len(d.records))
	}
	return d.derive(d.records[:index], d.schema), d.derive(d.records[index:], d.schema), nil
}

// Shard returns the index-th of numShards contiguous partitions. Sizes
// differ by at most one; earlier shards take the remainder.
func (d *Dataset) Shard(numShards, index int) (*Dataset, error) {
	if numShards < 1 {
		return nil, fmt.Errorf("%w: %d shards", ErrInvalidArgument, numShards)
	}
	if index < 0 || index >= numShards {
		return nil, fmt.Errorf("%w: shard %d of %d", ErrIndexOutOfRange, index, numShards)
	}

	n := len(d.records)
	base := n / numShards
	rem := n % numShards

	start := index*base + min(index, rem)
	size := base
	if index < rem {
		size++
	}
	return d.derive(d.records[start:start+size], d.schema), nil
}

// Rename renames a column in every record, preserving field order.
func (d *Dataset) Rename(oldName, newName string) (*Dataset, error) {
	if !d.hasColumn(oldName) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, oldName)
	}
	if d.hasColumn(newName) {
		return nil, fmt.Errorf("%w: %q", ErrColumnExists, newName)
	}

	out := make([]Record, len(d.records))
	for i, r := range d.records {
		out[i] = r.Rename(oldName, newName)
	}

	schema := d.schema.Clone()
	if schema != nil {
		if k, ok := schema[oldName]; ok {
			delete(schema, oldName)
			schema[newName] = k
		}
	}
	return d.derive(out, schema), nil
}

// AddColumn appends a column with one value per record.
func (d *Dataset) AddColumn(name string, values []Value) (*Dataset, error) {
	if d.hasColumn(name) {
		return nil, fmt.Errorf("%w: %q", ErrColumnExists, name)
	}
	if len(values) != len(d.records) {
		return nil, fmt.Errorf("%w: %d values for %d records", ErrInvalidArgument, len(values), len(d.records))
	}

	out := make([]Record, len(d.records))
	for i, r := range d.records {
		out[i] = append(r.Clone(), Field{Name: name, Value: values[i]})
	}

	schema := d.schema.Clone()
	if schema != nil {
		schema[name] = InferSchema(out)[name]
	}
	return d.derive(out, schema), nil
}

// RemoveColumn drops a column from every record.
func (d *Dataset) RemoveColumn(name string) (*Dataset, error) {
	if !d.hasColumn(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}

	out := make([]Record, len(d.records))
	for i, r := range d.records {
		out[i] = r.Delete(name)
	}

	schema := d.schema.Clone()
	if schema != nil {
		delete(schema, name)
	}
	return d.derive(out, schema), nil
}

// Cast converts a column to the target kind in every record. A value that
// cannot be cast fails the whole operation.
func (d *Dataset) Cast(name string, target Kind) (*Dataset, error) {
	if !d.hasColumn(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}

	out := make([]Record, len(d.records))
	for i, r := range d.records {
		v, ok := r.Get(name)
		if !ok {
			out[i] = r
			continue
		}
		cast, err := castValue(v, target)
		if err != nil {
			return nil, fmt.Errorf("record %d, column %q: %w", i, name, err)
		}
		out[i] = r.Set(name, cast)
	}

	schema := d.schema.Clone()
	if schema != nil {
		schema[name] = target
	}
	return d.derive(out, schema), nil
}

// Flatten expands nested record fields into dotted top-level columns.
func (d *Dataset) Flatten() *Dataset {
	out := make([]Record, len(d.records))
	for i, r := range d.records {
		out[i] = r.flatten("")
	}
	return d.derive(out, nil)
}

// Unique returns the distinct values of a column in first-seen order.
func (d *Dataset) Unique(name string) ([]Value, error) {
	if !d.hasColumn(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}

	seen := make(map[Fingerprint]bool)
	var out []Value
	for _, r := range d.records {
		v, ok := r.Get(name)
		if !ok {
			v = Null()
		}
		key, err := canonicalDigest(v.normalize())
		if err != nil {
			return nil, err
		}
		if !seen[key] {
			seen[key] = true
			out = append(out, v)
		}
	}
	return out, nil
}

// Sort stably orders records by the projected column. Records missing the
// column sort as null, before everything else (after, when descending).
func (d *Dataset) Sort(name string, descending bool) (*Dataset, error) {
	if !d.hasColumn(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}

	out := append([]Record(nil), d.records...)
	key := func(r Record) Value {
		if v, ok := r.Get(name); ok {
			return v
		}
		return Null()
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compareValues(key(out[i]), key(out[j]))
		if descending {
			return c > 0
		}
		return c < 0
	})
	return d.derive(out, d.schema), nil
}

// ColumnNames returns the union of field names across records, in
// first-seen order.
func (d *Dataset) ColumnNames() []string {
	var names []string
	seen := make(map[string]bool)
	for _, r := range d.records {
		for _, f := range r {
			if !seen[f.Name] {
				seen[f.Name] = true
				names = append(names, f.Name)
			}
		}
	}
	return names
}

// Column returns the values of a column, one per record, null where absent.
func (d *Dataset) Column(name string) ([]Value, error) {
	if !d.hasColumn(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	out := make([]Value, len(d.records))
	for i, r := range d.records {
		if v, ok := r.Get(name); ok {
			out[i] = v
		} else {
			out[i] = Null()
		}
	}
	return out, nil
}

func (d *Dataset) hasColumn(name string) bool {
	for _, r := range d.records {
		if r.Has(name) {
			return true
		}
	}
	return false
}
