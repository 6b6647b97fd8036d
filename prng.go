package tabular

import (
	"fmt"
	"math/bits"
)

// Uint128 is an unsigned 128-bit integer stored as two 64-bit halves.
// All arithmetic wraps modulo 2^128.
type Uint128 struct {
	Hi, Lo uint64
}

// Add returns u + v mod 2^128.
func (u Uint128) Add(v Uint128) Uint128 {
	lo, carry := bits.Add64(u.Lo, v.Lo, 0)
	hi, _ := bits.Add64(u.Hi, v.Hi, carry)
	return Uint128{Hi: hi, Lo: lo}
}

// Mul returns u * v mod 2^128.
func (u Uint128) Mul(v Uint128) Uint128 {
	hi, lo := bits.Mul64(u.Lo, v.Lo)
	hi += u.Hi*v.Lo + u.Lo*v.Hi
	return Uint128{Hi: hi, Lo: lo}
}

// String renders the value as 32 lowercase hex digits.
func (u Uint128) String() string {
	return fmt.Sprintf("%016x%016x", u.Hi, u.Lo)
}

// pcgMultiplier is the reference 128-bit LCG multiplier.
var pcgMultiplier = Uint128{Hi: 0x2360ed051fc65da4, Lo: 0x4385df649fccf645}

// RandomSource is the draw interface consumed by shuffling and interleaving.
// PCG64 is the reference-parity implementation; any other source may be
// substituted when cross-implementation ordering parity is not required.
type RandomSource interface {
	// Next returns the next 64-bit word of the stream.
	Next() uint64
	// NextBounded returns a uniform draw in [0, n).
	NextBounded(n uint64) uint64
}

// PCG64 is a deterministic 128-bit-state generator producing 64-bit words.
// Each seeded instance owns its state exclusively; concurrent callers must
// use independently seeded instances.
type PCG64 struct {
	state Uint128
	inc   Uint128
}

var _ RandomSource = (*PCG64)(nil)

// NewPCG64 seeds a generator from a SeedSequence.
func NewPCG64(seq *SeedSequence) *PCG64 {
	initState, initSeq := seq.DeriveState()
	return SeedPCG64(initState, initSeq)
}

// NewPCG64Seed seeds a generator directly from a 64-bit seed.
func NewPCG64Seed(seed uint64) *PCG64 {
	return NewPCG64(NewSeedSequence(seed))
}

// SeedPCG64 seeds a generator from raw (state, sequence) words, as derived
// by SeedSequence.DeriveState. The increment is forced odd. The state is
// stepped once past the reference's seeding dance so that Next extracts
// from the pre-advance state while emitting the reference stream exactly.
func SeedPCG64(initState, initSeq Uint128) *PCG64 {
	g := &PCG64{}
	g.inc = Uint128{
		Hi: initSeq.Hi<<1 | initSeq.Lo>>63,
		Lo: initSeq.Lo<<1 | 1,
	}
	g.step()
	g.state = g.state.Add(initState)
	g.step()
	g.step()
	return g
}

// step advances the LCG: state' = state*mult + inc mod 2^128.
func (g *PCG64) step() {
	g.state = g.state.Mul(pcgMultiplier).Add(g.inc)
}

// Next produces the next 64-bit output word. The XSL-RR extraction
// (xor of the state halves, rotated right by the top six state bits) is
// applied to the current state before advancing.
func (g *PCG64) Next() uint64 {
	s := g.state
	out := bits.RotateLeft64(s.Hi^s.Lo, -int(s.Hi>>58))
	g.step()
	return out
}

// NextBounded returns a uniform draw in [0, n) using masked rejection:
// draws are masked down to the smallest covering power of two and rejected
// until one lands under n. This consumes the stream exactly the way the
// reference does, which is what keeps seeded shuffles aligned across
// implementations. Panics if n is zero.
func (g *PCG64) NextBounded(n uint64) uint64 {
	if n == 0 {
		panic("tabular: NextBounded called with zero bound")
	}
	mask := n - 1
	mask |= mask >> 1
	mask |= mask >> 2
	mask |= mask >> 4
	mask |= mask >> 8
	mask |= mask >> 16
	mask |= mask >> 32
	for {
		if v := g.Next() & mask; v < n {
			return v
		}
	}
}

// Shuffle applies the reference Fisher-Yates pass: i runs from n-1 down
// to 1 and each step swaps i with a bounded draw over [0, i]. The loop
// order and bounds are part of the determinism contract.
func (g *PCG64) Shuffle(n int, swap func(i, j int)) {
	shuffleWith(g, n, swap)
}

// shuffleWith is Shuffle over an arbitrary RandomSource.
func shuffleWith(src RandomSource, n int, swap func(i, j int)) {
	for i := n - 1; i >= 1; i-- {
		j := int(src.NextBounded(uint64(i + 1)))
		swap(i, j)
	}
}
