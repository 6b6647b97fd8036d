package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden output words captured from the reference generator. The extraction
// formula is validated against these, not re-derived: a correct-looking
// XSL-RR variant that differs in rotation source or advance order produces
// a plausible but incompatible stream.
var pcgRawVectors = []struct {
	seed  uint64
	words []uint64
}{
	{0, []uint64{
		0xa30febcfd9c2825f, 0x4510bdf882d9d721, 0x0a7d3da94ecde8b8, 0x043b27b61342f01d,
		0xd0327a782cde513b, 0xe9aa5979a6401c4e, 0x9b4c7b7180edb27f, 0xbac0495ff8829a45,
		0x8b2b01e7a1dc7fbf, 0xef60e8078f56bfed,
	}},
	{42, []uint64{
		0xc621fbcd16d92688, 0x705a5661a791ffc1, 0xdbcd12c26eda1624, 0xb286b60e1600888d,
		0x181c01b5339381eb, 0xf9c262ed86c7538c, 0xc2da0d2fbc5a4471, 0xc93b82a3b7ac9740,
		0x20cc0e168362d113, 0x734c7e29d6f9bd6e,
	}},
	{12345, []uint64{
		0x3a32b18db2ffc19d, 0x51171315c9e4c4de, 0xcc2024823444efd9, 0xad1f06aea486e910,
		0x641fc168fd0b7b0d, 0x55334b27d6e48f43, 0x992ac3319147e59d, 0x2fcdcfc436908a5f,
		0xac39bd773aa89e2d, 0xf119fe199d0cabff,
	}},
}

func TestPCG64GoldenVectors(t *testing.T) {
	for _, tc := range pcgRawVectors {
		g := NewPCG64Seed(tc.seed)
		got := make([]uint64, len(tc.words))
		for i := range got {
			got[i] = g.Next()
		}
		assert.Equal(t, tc.words, got, "seed %d", tc.seed)
	}
}

func TestPCG64SeedFromDerivedState(t *testing.T) {
	// Seeding from DeriveState words must be identical to the convenience
	// constructor path.
	state, inc := NewSeedSequence(42).DeriveState()
	a := SeedPCG64(state, inc)
	b := NewPCG64Seed(42)
	for i := 0; i < 100; i++ {
		require.Equal(t, b.Next(), a.Next(), "draw %d", i)
	}
}

func TestPCG64IndependentInstances(t *testing.T) {
	// Two generators from the same seed evolve identically but separately:
	// advancing one must not disturb the other.
	a := NewPCG64Seed(9)
	b := NewPCG64Seed(9)
	_ = a.Next()
	_ = a.Next()
	c := NewPCG64Seed(9)
	assert.Equal(t, c.Next(), b.Next())
}

func TestNextBoundedGoldenVectors(t *testing.T) {
	g := NewPCG64Seed(42)
	got := make([]uint64, 12)
	for i := range got {
		got[i] = g.NextBounded(10)
	}
	assert.Equal(t, []uint64{8, 1, 4, 1, 0, 3, 9, 6, 6, 3, 2, 5}, got)

	g = NewPCG64Seed(42)
	got = got[:8]
	for i := range got {
		got[i] = g.NextBounded(1000)
	}
	assert.Equal(t, []uint64{648, 961, 548, 141, 491, 908, 113, 832}, got)
}

func TestNextBoundedRange(t *testing.T) {
	g := NewPCG64Seed(1)
	for _, n := range []uint64{1, 2, 3, 7, 64, 1000, 1 << 40} {
		for i := 0; i < 200; i++ {
			v := g.NextBounded(n)
			require.Less(t, v, n, "bound %d", n)
		}
	}
}

func TestNextBoundedZeroPanics(t *testing.T) {
	g := NewPCG64Seed(1)
	assert.Panics(t, func() { g.NextBounded(0) })
}

func TestShuffleGoldenVectors(t *testing.T) {
	tests := []struct {
		seed uint64
		n    int
		want []int
	}{
		{42, 5, []int{2, 3, 4, 1, 0}},
		{7, 5, []int{4, 0, 2, 1, 3}},
		{42, 10, []int{2, 6, 0, 9, 7, 3, 5, 4, 1, 8}},
	}
	for _, tc := range tests {
		g := NewPCG64Seed(tc.seed)
		perm := make([]int, tc.n)
		for i := range perm {
			perm[i] = i
		}
		g.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		assert.Equal(t, tc.want, perm, "seed %d n %d", tc.seed, tc.n)
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	g := NewPCG64Seed(3)
	perm := make([]int, 257)
	for i := range perm {
		perm[i] = i
	}
	g.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

	seen := make([]bool, len(perm))
	for _, p := range perm {
		require.False(t, seen[p])
		seen[p] = true
	}
}

func TestUint128Arithmetic(t *testing.T) {
	// Carry propagation across the 64-bit boundary.
	a := Uint128{Hi: 0, Lo: ^uint64(0)}
	assert.Equal(t, Uint128{Hi: 1, Lo: 0}, a.Add(Uint128{Lo: 1}))

	// Wrap at 2^128.
	m := Uint128{Hi: ^uint64(0), Lo: ^uint64(0)}
	assert.Equal(t, Uint128{}, m.Add(Uint128{Lo: 1}))

	// (2^64 - 1)^2 = 2^128 - 2^65 + 1 mod 2^128.
	b := Uint128{Lo: ^uint64(0)}
	assert.Equal(t, Uint128{Hi: 0xfffffffffffffffe, Lo: 1}, b.Mul(b))

	assert.Equal(t, "00000000000000010000000000000002", Uint128{Hi: 1, Lo: 2}.String())
}
