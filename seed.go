package tabular

import (
	"fmt"
	"math/big"
)

// SeedSequence mixing constants. These match the reference algorithm and
// must not be changed: identical seeds have to derive identical generator
// state across implementations.
const (
	seedInitA   = 0x43b0d7e5
	seedMultA   = 0x931e8875
	seedInitB   = 0x8b51f9dd
	seedMultB   = 0x58f38ded
	seedMixL    = 0xca01f9dd
	seedMixR    = 0x4973f715
	seedXShift  = 16
	seedPoolLen = 4
)

// SeedSequence derives fixed-size generator state from an arbitrary-precision
// integer seed using the reference hash-mixing algorithm. The derivation is
// pure: the same seed always yields the same pool, and therefore the same
// generator state.
type SeedSequence struct {
	entropy []uint32
	pool    [seedPoolLen]uint32
}

// NewSeedSequence creates a SeedSequence from a 64-bit seed.
func NewSeedSequence(seed uint64) *SeedSequence {
	var entropy []uint32
	if seed == 0 {
		entropy = []uint32{0}
	} else {
		for seed > 0 {
			entropy = append(entropy, uint32(seed))
			seed >>= 32
		}
	}
	return newSeedSequence(entropy)
}

// NewSeedSequenceBig creates a SeedSequence from an arbitrary-precision
// non-negative seed. Negative seeds are a contract violation.
func NewSeedSequenceBig(seed *big.Int) (*SeedSequence, error) {
	if seed == nil {
		return nil, fmt.Errorf("%w: nil seed", ErrInvalidArgument)
	}
	if seed.Sign() < 0 {
		return nil, fmt.Errorf("%w: seed must be non-negative, got %s", ErrInvalidArgument, seed)
	}
	if seed.Sign() == 0 {
		return newSeedSequence([]uint32{0}), nil
	}

	// Decompose into little-endian 32-bit words.
	var entropy []uint32
	s := new(big.Int).Set(seed)
	mask := big.NewInt(0xffffffff)
	word := new(big.Int)
	for s.Sign() > 0 {
		word.And(s, mask)
		entropy = append(entropy, uint32(word.Uint64()))
		s.Rsh(s, 32)
	}
	return newSeedSequence(entropy), nil
}

func newSeedSequence(entropy []uint32) *SeedSequence {
	ss := &SeedSequence{entropy: entropy}
	ss.mixEntropy()
	return ss
}

// seedHasher is the running hash chain used by both the entropy-mixing and
// the state-generation passes. Each chain owns its own evolving constant.
type seedHasher struct {
	hashConst uint32
	mult      uint32
}

func (h *seedHasher) hash(v uint32) uint32 {
	v ^= h.hashConst
	h.hashConst *= h.mult
	v *= h.hashConst
	v ^= v >> seedXShift
	return v
}

// mix combines an already-hashed word into a pool slot.
func seedMix(dst, hashed uint32) uint32 {
	r := seedMixL*dst - seedMixR*hashed
	r ^= r >> seedXShift
	return r
}

// mixEntropy populates the pool with three passes:
// entropy into slots, full pairwise pool mixing, then any entropy words
// beyond the pool size into every slot.
func (ss *SeedSequence) mixEntropy() {
	h := &seedHasher{hashConst: seedInitA, mult: seedMultA}

	for i := 0; i < seedPoolLen; i++ {
		if i < len(ss.entropy) {
			ss.pool[i] = h.hash(ss.entropy[i])
		} else {
			ss.pool[i] = h.hash(0)
		}
	}
	for src := 0; src < seedPoolLen; src++ {
		for dst := 0; dst < seedPoolLen; dst++ {
			if src != dst {
				ss.pool[dst] = seedMix(ss.pool[dst], h.hash(ss.pool[src]))
			}
		}
	}
	for src := seedPoolLen; src < len(ss.entropy); src++ {
		for dst := 0; dst < seedPoolLen; dst++ {
			ss.pool[dst] = seedMix(ss.pool[dst], h.hash(ss.entropy[src]))
		}
	}
}

// GenerateState produces n 64-bit state words by cycling through the mixed
// pool with a second, independent hash chain. Repeated calls are
// reproducible: each call restarts the output chain.
func (ss *SeedSequence) GenerateState(n int) []uint64 {
	h := &seedHasher{hashConst: seedInitB, mult: seedMultB}

	words := make([]uint32, 2*n)
	for i := range words {
		words[i] = h.hash(ss.pool[i%seedPoolLen])
	}

	// Pair little-endian: the first 32-bit word is the low half.
	out := make([]uint64, n)
	for i := range out {
		out[i] = uint64(words[2*i]) | uint64(words[2*i+1])<<32
	}
	return out
}

// DeriveState returns the (state, increment) 128-bit word pairs used to seed
// the deterministic generator.
func (ss *SeedSequence) DeriveState() (state, increment Uint128) {
	w := ss.GenerateState(4)
	return Uint128{Hi: w[0], Lo: w[1]}, Uint128{Hi: w[2], Lo: w[3]}
}
