package random

import (
	crand "crypto/rand"
	"math/rand/v2"
	"sync"
)

// Random picks indices for the sequence generator. Mocked in tests so turns are reproducible.
type Random interface {
	// Intn returns an int in [0, n), or 0 when n <= 0
	Intn(n int) int
}

// Source is a ChaCha8 generator seeded from the OS entropy pool
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Source with a fresh seed
func New() *Source {
	var seed [32]byte
	_, _ = crand.Read(seed[:])
	return &Source{rng: rand.New(rand.NewChaCha8(seed))}
}

func (s *Source) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}
