package randutil

import (
	crand "crypto/rand"
	rand "math/rand/v2"
)

const (
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// New returns a *rand.Rand seeded deterministically from the provided int64.
// Tests and replayable simulations use this so the same seed always deals the
// same cards.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// NewSecure returns a *rand.Rand keyed from crypto/rand. Live rooms deal from
// this so shuffles cannot be predicted from a seed.
func NewSecure() *rand.Rand {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic("randutil: failed to read crypto seed: " + err.Error())
	}
	return rand.New(rand.NewChaCha8(seed))
}

// Seed derives a child seed from rng, for handing each room or worker its own
// independent generator.
func Seed(rng *rand.Rand) int64 {
	return int64(rng.Uint64())
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
