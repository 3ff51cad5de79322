package matching

import (
	"math/rand"
	"sync"
	"time"
)

// ChemistrySource supplies the small random bonus added to a score.
// Implementations must return a value in [0, Max()].
type ChemistrySource interface {
	Bonus(a, b int64) int
	Max() int
}

// NoChemistry always returns zero. Used where scores must be reproducible.
type NoChemistry struct{}

func (NoChemistry) Bonus(a, b int64) int { return 0 }
func (NoChemistry) Max() int             { return 0 }

// RandomChemistry draws a uniform bonus from a seeded generator
type RandomChemistry struct {
	mu  sync.Mutex
	rng *rand.Rand
	max int
}

// NewRandomChemistry creates a source bounded by max. A zero seed uses the clock.
func NewRandomChemistry(seed int64, max int) *RandomChemistry {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if max < 0 {
		max = 0
	}
	return &RandomChemistry{rng: rand.New(rand.NewSource(seed)), max: max}
}

func (c *RandomChemistry) Bonus(a, b int64) int {
	if c.max == 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Intn(c.max + 1)
}

func (c *RandomChemistry) Max() int { return c.max }
