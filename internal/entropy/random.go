// Package entropy provides the randomness source for stochastic game rolls
// (gather outcomes, craft checks, combat noise). Sources are crypto-seeded
// in production and explicitly seeded in tests so outcomes are reproducible.
package entropy

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
)

// Source is a concurrency-safe random number generator.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a Source seeded from crypto/rand.
func New() *Source {
	return NewSeeded(cryptoSeed())
}

// NewSeeded returns a deterministic Source for tests and replays.
func NewSeeded(seed int64) *Source {
	return &Source{rng: rand.New(rand.NewSource(seed))}
}

// Float returns a random float64 in [0, 1).
func (s *Source) Float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// IntN returns a random int in [0, n).
func (s *Source) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// cryptoSeed draws a seed from crypto/rand. Falls back to a fixed seed if
// the platform RNG is unavailable, which should never happen.
func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return 1
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}
