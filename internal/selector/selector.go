// Package selector picks the system message paired with each user message.
package selector

import (
	"errors"
	"math/rand"
	"time"
)

// DefaultEmptyProbability is the chance that a selection is replaced by an empty system message.
const DefaultEmptyProbability = 0.2

var ErrEmptyPool = errors.New("cannot select from an empty system message pool")

// Selector is not safe for concurrent use; a batch owns exactly one.
type Selector struct {
	rng       *rand.Rand
	emptyProb float64
}

// New returns a selector seeded with seed. Any seed, zero included, gives a
// reproducible sequence.
func New(seed int64, emptyProb float64) *Selector {
	return NewWithRand(rand.New(rand.NewSource(seed)), emptyProb)
}

// NewFromClock returns a selector seeded from the current time.
func NewFromClock(emptyProb float64) *Selector {
	return New(time.Now().UnixNano(), emptyProb)
}

func NewWithRand(rng *rand.Rand, emptyProb float64) *Selector {
	return &Selector{rng: rng, emptyProb: emptyProb}
}

// Select draws an index into pool, then decides whether to override the pick
// with an empty message. Both draws happen on every call.
func (s *Selector) Select(pool []string) (string, bool, error) {
	if len(pool) == 0 {
		return "", false, ErrEmptyPool
	}
	text := pool[s.rng.Intn(len(pool))]
	if s.rng.Float64() < s.emptyProb {
		return "", true, nil
	}
	return text, false, nil
}
