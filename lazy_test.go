package tabular

import (
	"errors"
	"io"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingIterator records how many pulls reached the source, which is how
// the minimal-prefix guarantee is observed.
type countingIterator struct {
	records []Record
	pulls   int
	pos     int
}

func (c *countingIterator) Next() (Record, error) {
	c.pulls++
	if c.pos >= len(c.records) {
		return nil, io.EOF
	}
	r := c.records[c.pos]
	c.pos++
	return r, nil
}

// faultyIterator fails with err after yielding the first n records.
type faultyIterator struct {
	records []Record
	err     error
	pos     int
}

func (f *faultyIterator) Next() (Record, error) {
	if f.pos >= len(f.records) {
		return nil, f.err
	}
	r := f.records[f.pos]
	f.pos++
	return r, nil
}

// endlessIterator yields the same record forever.
type endlessIterator struct{ id int64 }

func (e *endlessIterator) Next() (Record, error) {
	return NewRecord(Field{Name: "id", Value: Int(e.id)}), nil
}

func collectIDs(t *testing.T, l *LazyDataset) []int64 {
	t.Helper()
	d, err := l.Collect()
	require.NoError(t, err)
	return datasetIDs(t, d)
}

func TestLazyCollect(t *testing.T) {
	l := FromRecords("src", idRecords(1, 2, 3))
	assert.Equal(t, []int64{1, 2, 3}, collectIDs(t, l))

	// Iterators are single-use: a second collect sees an exhausted stream.
	d, err := l.Collect()
	require.NoError(t, err)
	assert.Equal(t, 0, d.Len())
}

func TestLazyMapFilter(t *testing.T) {
	l := FromRecords("src", idRecords(1, 2, 3, 4)).
		Map(func(r Record) (Record, error) {
			v, _ := r.Get("id")
			n, _ := v.Int()
			return r.Set("id", Int(n*10)), nil
		}).
		Filter(func(r Record) (bool, error) {
			v, _ := r.Get("id")
			n, _ := v.Int()
			return n > 15, nil
		})

	assert.Equal(t, []int64{20, 30, 40}, collectIDs(t, l))
}

func TestLazyMapClonesInput(t *testing.T) {
	records := idRecords(1)
	l := FromRecords("src", records).Map(func(r Record) (Record, error) {
		r[0].Value = Int(99)
		return r, nil
	})

	_, err := l.Collect()
	require.NoError(t, err)

	v, _ := records[0].Get("id")
	n, _ := v.Int()
	assert.Equal(t, int64(1), n, "source records must stay untouched")
}

func TestLazyMinimalPrefix(t *testing.T) {
	src := &countingIterator{records: idRecords(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)}
	l := FromSource("counted", src).
		Filter(func(r Record) (bool, error) {
			v, _ := r.Get("id")
			n, _ := v.Int()
			return n != 3, nil
		}).
		Take(2)

	assert.Equal(t, 0, src.pulls, "composition alone must not pull")
	assert.Equal(t, []int64{1, 2}, collectIDs(t, l))
	assert.Equal(t, 2, src.pulls, "only the prefix needed for two passing records is evaluated")
}

func TestLazySkipIsDeferred(t *testing.T) {
	src := &countingIterator{records: idRecords(1, 2, 3, 4, 5)}
	l := FromSource("counted", src).Skip(3)

	assert.Equal(t, 0, src.pulls, "skip must not consume at composition")

	r, err := l.Next()
	require.NoError(t, err)
	v, _ := r.Get("id")
	n, _ := v.Int()
	assert.Equal(t, int64(4), n)
	assert.Equal(t, 4, src.pulls, "first pull consumes the skipped prefix plus one")
}

func TestLazyTakeSkipBounds(t *testing.T) {
	l := FromRecords("src", idRecords(1, 2, 3)).Take(10)
	assert.Equal(t, []int64{1, 2, 3}, collectIDs(t, l))

	l = FromRecords("src", idRecords(1, 2, 3)).Skip(10)
	d, err := l.Collect()
	require.NoError(t, err)
	assert.Equal(t, 0, d.Len())
}

func TestLazyInvalidArgsSurfaceAtPull(t *testing.T) {
	cases := map[string]*LazyDataset{
		"take":    FromRecords("src", idRecords(1)).Take(-1),
		"skip":    FromRecords("src", idRecords(1)).Skip(-1),
		"batch":   FromRecords("src", idRecords(1)).Batch(0),
		"shuffle": FromRecords("src", idRecords(1)).Shuffle(0, 42),
	}
	for name, l := range cases {
		_, err := l.Next()
		assert.ErrorIs(t, err, ErrInvalidArgument, name)
	}
}

func TestLazyDrain(t *testing.T) {
	l := FromRecords("src", idRecords(1, 2, 3, 4)).Filter(func(r Record) (bool, error) {
		v, _ := r.Get("id")
		n, _ := v.Int()
		return n%2 == 0, nil
	})

	n, err := l.Drain()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	boom := errors.New("source fault")
	faulty := FromSource("flaky", &faultyIterator{records: idRecords(1), err: boom})
	n, err = faulty.Drain()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
}

func TestLazyBatch(t *testing.T) {
	l := FromRecords("src", idRecords(1, 2, 3, 4, 5)).Batch(2)

	var sizes []int
	for {
		r, err := l.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		v, ok := r.Get("id")
		require.True(t, ok)
		list, ok := v.ListValue()
		require.True(t, ok)
		sizes = append(sizes, len(list))
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestLazyErrorPropagation(t *testing.T) {
	boom := errors.New("read failed")
	src := &faultyIterator{records: idRecords(1, 2), err: boom}

	l := FromSource("flaky", src).Map(func(r Record) (Record, error) { return r, nil })

	for i := 0; i < 2; i++ {
		_, err := l.Next()
		require.NoError(t, err, "record %d", i)
	}
	_, err := l.Next()
	assert.ErrorIs(t, err, boom)
}

// Golden orderings captured from the reference buffered shuffle: fill a
// buffer, then swap a uniformly drawn slot with each incoming record, and
// drain the remainder by swap-with-last.
func TestLazyShuffleGoldenVectors(t *testing.T) {
	tests := []struct {
		n, buf int
		seed   uint64
		want   []int64
	}{
		{10, 4, 42, []int64{0, 1, 4, 5, 3, 6, 7, 9, 8, 2}},
		{10, 4, 7, []int64{3, 1, 2, 6, 5, 0, 9, 8, 4, 7}},
		{6, 3, 42, []int64{0, 1, 3, 4, 2, 5}},
	}
	for _, tc := range tests {
		ids := make([]int64, tc.n)
		for i := range ids {
			ids[i] = int64(i)
		}
		l := FromRecords("src", idRecords(ids...)).Shuffle(tc.buf, tc.seed)
		assert.Equal(t, tc.want, collectIDs(t, l), "n %d buf %d seed %d", tc.n, tc.buf, tc.seed)
	}
}

func TestLazyShuffleIsPermutation(t *testing.T) {
	ids := make([]int64, 100)
	for i := range ids {
		ids[i] = int64(i)
	}

	l := FromRecords("src", idRecords(ids...)).Shuffle(16, 3)
	got := collectIDs(t, l)
	require.Len(t, got, len(ids))

	sorted := append([]int64(nil), got...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	assert.Equal(t, ids, sorted)
}

func TestLazyShuffleBufferLocality(t *testing.T) {
	// With buffer size b, element i can appear no earlier than position i-b.
	const n, buf = 50, 8
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i)
	}

	got := collectIDs(t, FromRecords("src", idRecords(ids...)).Shuffle(buf, 11))
	for pos, id := range got {
		assert.GreaterOrEqual(t, int64(pos)+buf, id, "element %d at position %d", id, pos)
	}
}

func TestConcatenate(t *testing.T) {
	a := FromRecords("a", idRecords(1, 2))
	b := FromRecords("b", idRecords(3, 4))
	assert.Equal(t, []int64{1, 2, 3, 4}, collectIDs(t, Concatenate(a, b)))

	// Empty sources are skipped transparently.
	empty := FromRecords("empty", nil)
	c := FromRecords("c", idRecords(5))
	assert.Equal(t, []int64{5}, collectIDs(t, Concatenate(empty, c)))

	solo := FromRecords("solo", idRecords(9))
	assert.Equal(t, []int64{9}, collectIDs(t, Concatenate(solo)))
}

func TestInterleaveFirstExhausted(t *testing.T) {
	// Weight 1/0 pins every draw to the first source, so the interleave
	// ends exactly when it does.
	a := FromRecords("a", idRecords(1, 2, 3))
	b := FromRecords("b", idRecords(10, 20))

	l := Interleave([]*LazyDataset{a, b}, []float64{1, 0}, 42, FirstExhausted)
	assert.Equal(t, []int64{1, 2, 3}, collectIDs(t, l))
}

func TestInterleaveFirstExhaustedUnboundedSource(t *testing.T) {
	// An endless source paired with a 2-element one: the interleave must
	// halt the instant the finite source runs out, having yielded exactly
	// that source's length from it.
	endless := FromSource("endless", &endlessIterator{id: 0})
	short := FromRecords("short", idRecords(100, 200))

	l := Interleave([]*LazyDataset{endless, short}, nil, 42, FirstExhausted)

	fromShort, total := 0, 0
	for {
		r, err := l.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		total++
		require.Less(t, total, 10000, "interleave must halt once the finite source is exhausted")
		v, _ := r.Get("id")
		n, _ := v.Int()
		if n >= 100 {
			fromShort++
		}
	}
	assert.Equal(t, 2, fromShort, "the finite source contributes exactly its length")
	assert.GreaterOrEqual(t, total, fromShort)

	// Exhaustion is sticky: further pulls keep reporting EOF.
	_, err := l.Next()
	assert.Equal(t, io.EOF, err)
}

func TestInterleaveAllExhausted(t *testing.T) {
	a := FromRecords("a", idRecords(1, 2, 3))
	b := FromRecords("b", idRecords(10, 20))

	l := Interleave([]*LazyDataset{a, b}, []float64{1, 0}, 42, AllExhausted)
	// The first source drains fully, then the survivor takes over.
	assert.Equal(t, []int64{1, 2, 3, 10, 20}, collectIDs(t, l))
}

func TestInterleaveUniformDrainsEverything(t *testing.T) {
	a := FromRecords("a", idRecords(1, 2, 3))
	b := FromRecords("b", idRecords(10, 20))

	got := collectIDs(t, Interleave([]*LazyDataset{a, b}, nil, 7, AllExhausted))
	require.Len(t, got, 5)

	sorted := append([]int64(nil), got...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	assert.Equal(t, []int64{1, 2, 3, 10, 20}, sorted)
}

func TestInterleaveDeterminism(t *testing.T) {
	build := func() []*LazyDataset {
		return []*LazyDataset{
			FromRecords("a", idRecords(1, 2, 3)),
			FromRecords("b", idRecords(10, 20, 30)),
		}
	}

	first := collectIDs(t, Interleave(build(), nil, 42, AllExhausted))
	second := collectIDs(t, Interleave(build(), nil, 42, AllExhausted))
	assert.Equal(t, first, second, "same seed, same interleaving")
}

func TestInterleaveInvalidArgs(t *testing.T) {
	a := FromRecords("a", idRecords(1))
	b := FromRecords("b", idRecords(2))

	l := Interleave([]*LazyDataset{a, b}, []float64{1}, 42, FirstExhausted)
	_, err := l.Next()
	assert.ErrorIs(t, err, ErrInvalidArgument)

	l = Interleave([]*LazyDataset{a, b}, []float64{0.5, -0.5}, 42, FirstExhausted)
	_, err = l.Next()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestInterleaveEmptySources(t *testing.T) {
	l := Interleave(nil, nil, 42, AllExhausted)
	_, err := l.Next()
	assert.Equal(t, io.EOF, err)
}

func TestLazyString(t *testing.T) {
	l := FromRecords("corpus", idRecords(1)).Map(nil).Filter(nil).Take(1)
	assert.Equal(t, "corpus|map|filter|take", l.String())
	assert.Equal(t, "corpus", l.Name())

	i := Interleave([]*LazyDataset{FromRecords("a", nil), FromRecords("b", nil)}, nil, 1, FirstExhausted)
	assert.Equal(t, "a+b|interleave", i.String())
}
