package gambling

import (
	"math/rand/v2"
	"sync"
	"time"
)

// RNG is the randomness source for draws and games. Implementations must be
// safe for concurrent use.
type RNG interface {
	IntN(n int) int
	Int64N(n int64) int64
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRNG returns a mutex-guarded PCG generator.
func NewRNG(seed1, seed2 uint64) RNG {
	return &lockedRand{r: rand.New(rand.NewPCG(seed1, seed2))}
}

func defaultRNG() RNG {
	return NewRNG(uint64(time.Now().UnixNano()), rand.Uint64())
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (l *lockedRand) Int64N(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Int64N(n)
}
