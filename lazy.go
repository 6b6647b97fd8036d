package tabular

import (
	"fmt"
	"io"
	"strings"
)

// RecordIterator is the pull interface lazy pipelines are built from.
// Next returns io.EOF once the sequence is exhausted; any other error is a
// source fault surfaced at the offending pull. Iterators are single-use and
// not restartable unless the underlying source says otherwise.
type RecordIterator interface {
	Next() (Record, error)
}

// LazyDataset composes staged transformations over a pull-based record
// source. Nothing is evaluated until a consumer pulls, and no element past
// the last consumed point is ever computed. A LazyDataset is itself a
// RecordIterator and is consumed by iterating it.
type LazyDataset struct {
	name       string
	transforms []string
	it         RecordIterator
}

// FromSource wraps a record source in a LazyDataset.
func FromSource(name string, src RecordIterator) *LazyDataset {
	return &LazyDataset{name: name, it: src}
}

// FromRecords builds a LazyDataset over an in-memory record slice.
func FromRecords(name string, records []Record) *LazyDataset {
	return FromSource(name, &sliceIterator{records: records})
}

// Name returns the source name the dataset was created with.
func (l *LazyDataset) Name() string { return l.name }

// String renders the pipeline for debugging: name plus staged transforms.
func (l *LazyDataset) String() string {
	if len(l.transforms) == 0 {
		return l.name
	}
	return l.name + "|" + strings.Join(l.transforms, "|")
}

// Next pulls the next record through the staged transforms.
func (l *LazyDataset) Next() (Record, error) {
	return l.it.Next()
}

// stage returns a successor with one more transform applied.
func (l *LazyDataset) stage(desc string, it RecordIterator) *LazyDataset {
	transforms := make([]string, 0, len(l.transforms)+1)
	transforms = append(transforms, l.transforms...)
	transforms = append(transforms, desc)
	return &LazyDataset{name: l.name, transforms: transforms, it: it}
}

// Map stages a per-record transformation.
func (l *LazyDataset) Map(fn MapFunc) *LazyDataset {
	return l.stage("map", &mapIterator{src: l.it, fn: fn})
}

// Filter stages a predicate. Pulling k records evaluates exactly the source
// prefix needed to produce k passing records.
func (l *LazyDataset) Filter(fn FilterFunc) *LazyDataset {
	return l.stage("filter", &filterIterator{src: l.it, fn: fn})
}

// Take stages a limit of n records. A negative n is reported at the first
// pull, not at composition.
func (l *LazyDataset) Take(n int) *LazyDataset {
	if n < 0 {
		return l.stage("take", errIterator{fmt.Errorf("%w: take %d", ErrInvalidArgument, n)})
	}
	return l.stage("take", &takeIterator{src: l.it, remaining: n})
}

// Skip stages dropping the first n records. The skipped prefix is consumed
// lazily, on the first pull.
func (l *LazyDataset) Skip(n int) *LazyDataset {
	if n < 0 {
		return l.stage("skip", errIterator{fmt.Errorf("%w: skip %d", ErrInvalidArgument, n)})
	}
	return l.stage("skip", &skipIterator{src: l.it, pending: n})
}

// Batch stages grouping of consecutive records into list-valued rows of the
// given size; the final batch may be smaller.
func (l *LazyDataset) Batch(size int) *LazyDataset {
	if size <= 0 {
		return l.stage("batch", errIterator{fmt.Errorf("%w: batch size %d", ErrInvalidArgument, size)})
	}
	return l.stage("batch", &lazyBatchIterator{src: l.it, size: size})
}

// Shuffle stages an approximate buffered shuffle: a buffer of bufferSize
// records is kept filled from the source, and each pull yields a uniformly
// drawn buffer slot, refilled from the source while it lasts. This is not a
// uniform permutation of the whole stream - the bounded buffer is the
// deliberate trade-off that keeps memory constant.
func (l *LazyDataset) Shuffle(bufferSize int, seed uint64) *LazyDataset {
	if bufferSize <= 0 {
		return l.stage("shuffle", errIterator{fmt.Errorf("%w: shuffle buffer size %d", ErrInvalidArgument, bufferSize)})
	}
	return l.stage("shuffle", &shuffleIterator{
		src:  l.it,
		size: bufferSize,
		gen:  NewPCG64Seed(seed),
	})
}

// Collect materializes the remaining stream into an eager Dataset.
func (l *LazyDataset) Collect(opts ...DatasetOption) (*Dataset, error) {
	var records []Record
	for {
		r, err := l.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return NewDataset(records, opts...)
}

// Drain consumes the remaining stream, discarding records, and returns how
// many were pulled. Useful for forcing side effects of a pipeline whose
// output is not needed.
func (l *LazyDataset) Drain() (int, error) {
	n := 0
	for {
		_, err := l.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// StoppingStrategy controls when Interleave halts.
type StoppingStrategy int

const (
	// FirstExhausted halts the whole interleave as soon as any source ends.
	FirstExhausted StoppingStrategy = iota
	// AllExhausted removes ended sources from rotation, renormalizing the
	// remaining probabilities, and continues until every source ends.
	AllExhausted
)

// Interleave yields records drawn from sources one at a time. Each pull
// picks a source index with the given probabilities (uniform when nil,
// renormalized otherwise) using the deterministic bounded-draw primitive,
// then pulls one record from it.
func Interleave(sources []*LazyDataset, probabilities []float64, seed uint64, strategy StoppingStrategy) *LazyDataset {
	out := &LazyDataset{name: interleaveName(sources), transforms: []string{"interleave"}}
	if probabilities != nil && len(probabilities) != len(sources) {
		out.it = errIterator{fmt.Errorf("%w: %d probabilities for %d sources",
			ErrInvalidArgument, len(probabilities), len(sources))}
		return out
	}
	for _, p := range probabilities {
		if p < 0 {
			out.it = errIterator{fmt.Errorf("%w: negative probability %v", ErrInvalidArgument, p)}
			return out
		}
	}

	its := make([]RecordIterator, len(sources))
	for i, s := range sources {
		its[i] = s
	}
	out.it = &interleaveIterator{
		sources:  its,
		probs:    append([]float64(nil), probabilities...),
		gen:      NewPCG64Seed(seed),
		strategy: strategy,
	}
	return out
}

// Concatenate yields every record of each source in order, moving to the
// next source only when the previous one is exhausted.
func Concatenate(sources ...*LazyDataset) *LazyDataset {
	its := make([]RecordIterator, len(sources))
	for i, s := range sources {
		its[i] = s
	}
	return &LazyDataset{
		name:       interleaveName(sources),
		transforms: []string{"concatenate"},
		it:         &concatIterator{sources: its},
	}
}

func interleaveName(sources []*LazyDataset) string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.name
	}
	return strings.Join(names, "+")
}

// sliceIterator pulls from an in-memory slice.
type sliceIterator struct {
	records []Record
	pos     int
}

func (s *sliceIterator) Next() (Record, error) {
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

// errIterator reports a staged contract violation at the first pull.
type errIterator struct{ err error }

func (e errIterator) Next() (Record, error) { return nil, e.err }

type mapIterator struct {
	src RecordIterator
	fn  MapFunc
}

func (m *mapIterator) Next() (Record, error) {
	r, err := m.src.Next()
	if err != nil {
		return nil, err
	}
	return m.fn(r.Clone())
}

type filterIterator struct {
	src RecordIterator
	fn  FilterFunc
}

func (f *filterIterator) Next() (Record, error) {
	for {
		r, err := f.src.Next()
		if err != nil {
			return nil, err
		}
		keep, err := f.fn(r)
		if err != nil {
			return nil, err
		}
		if keep {
			return r, nil
		}
	}
}

type takeIterator struct {
	src       RecordIterator
	remaining int
}

func (t *takeIterator) Next() (Record, error) {
	if t.remaining <= 0 {
		return nil, io.EOF
	}
	r, err := t.src.Next()
	if err != nil {
		return nil, err
	}
	t.remaining--
	return r, nil
}

type skipIterator struct {
	src     RecordIterator
	pending int
}

func (s *skipIterator) Next() (Record, error) {
	for s.pending > 0 {
		if _, err := s.src.Next(); err != nil {
			return nil, err
		}
		s.pending--
	}
	return s.src.Next()
}

type lazyBatchIterator struct {
	src  RecordIterator
	size int
	done bool
}

func (b *lazyBatchIterator) Next() (Record, error) {
	if b.done {
		return nil, io.EOF
	}

	group := make([]Record, 0, b.size)
	for len(group) < b.size {
		r, err := b.src.Next()
		if err == io.EOF {
			b.done = true
			break
		}
		if err != nil {
			return nil, err
		}
		group = append(group, r)
	}
	if len(group) == 0 {
		return nil, io.EOF
	}
	return batchRecords(group), nil
}

// shuffleIterator implements the reservoir-style buffered shuffle. The
// buffer fills on the first pull; each subsequent pull yields a random
// slot and refills it from the source while records remain, then drains
// the buffer in random order.
type shuffleIterator struct {
	src    RecordIterator
	size   int
	gen    *PCG64
	buf    []Record
	filled bool
	srcEOF bool
}

func (s *shuffleIterator) Next() (Record, error) {
	if !s.filled {
		s.filled = true
		s.buf = make([]Record, 0, s.size)
		for len(s.buf) < s.size {
			r, err := s.src.Next()
			if err == io.EOF {
				s.srcEOF = true
				break
			}
			if err != nil {
				return nil, err
			}
			s.buf = append(s.buf, r)
		}
	}

	if len(s.buf) == 0 {
		return nil, io.EOF
	}

	if !s.srcEOF {
		r, err := s.src.Next()
		if err == io.EOF {
			s.srcEOF = true
		} else if err != nil {
			return nil, err
		} else {
			j := int(s.gen.NextBounded(uint64(len(s.buf))))
			out := s.buf[j]
			s.buf[j] = r
			return out, nil
		}
	}

	// Source exhausted: drain remaining buffer contents in random order.
	j := int(s.gen.NextBounded(uint64(len(s.buf))))
	out := s.buf[j]
	last := len(s.buf) - 1
	s.buf[j] = s.buf[last]
	s.buf = s.buf[:last]
	return out, nil
}

type interleaveIterator struct {
	sources  []RecordIterator
	probs    []float64
	gen      *PCG64
	strategy StoppingStrategy
	done     bool
}

// probabilityScale sets the resolution of weighted draws: one bounded draw
// in [0, 2^53) maps onto the cumulative probability line.
const probabilityScale = 1 << 53

func (it *interleaveIterator) Next() (Record, error) {
	for !it.done && len(it.sources) > 0 {
		idx := it.pick()
		r, err := it.sources[idx].Next()
		if err == io.EOF {
			if it.strategy == FirstExhausted {
				it.done = true
				return nil, io.EOF
			}
			it.drop(idx)
			continue
		}
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, io.EOF
}

// pick draws a source index. Uniform when no probabilities were given;
// otherwise a single bounded draw walks the renormalized cumulative line.
func (it *interleaveIterator) pick() int {
	if it.probs == nil {
		return int(it.gen.NextBounded(uint64(len(it.sources))))
	}

	var total float64
	for _, p := range it.probs {
		total += p
	}
	if total <= 0 {
		// Degenerate weights fall back to uniform rotation.
		return int(it.gen.NextBounded(uint64(len(it.sources))))
	}

	x := float64(it.gen.NextBounded(probabilityScale)) / float64(probabilityScale) * total
	var cum float64
	for i, p := range it.probs {
		cum += p
		if x < cum {
			return i
		}
	}
	return len(it.probs) - 1
}

// drop removes an exhausted source from rotation.
func (it *interleaveIterator) drop(idx int) {
	it.sources = append(it.sources[:idx], it.sources[idx+1:]...)
	if it.probs != nil {
		it.probs = append(it.probs[:idx], it.probs[idx+1:]...)
	}
}

type concatIterator struct {
	sources []RecordIterator
	pos     int
}

func (c *concatIterator) Next() (Record, error) {
	for c.pos < len(c.sources) {
		r, err := c.sources[c.pos].Next()
		if err == io.EOF {
			c.pos++
			continue
		}
		return r, err
	}
	return nil, io.EOF
}
