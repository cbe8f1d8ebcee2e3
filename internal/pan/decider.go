package pan

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Decider approves or declines a PAN submission.
type Decider interface {
	Decide(ctx context.Context, number string) (bool, error)
}

// RandomDecider approves a fixed share of submissions. It stands in for a
// real verification provider.
type RandomDecider struct {
	mu   sync.Mutex
	rate float64
	rng  *rand.Rand
}

// NewRandomDecider approves with probability rate.
func NewRandomDecider(rate float64) *RandomDecider {
	return &RandomDecider{rate: rate, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (d *RandomDecider) Decide(context.Context, string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng.Float64() < d.rate, nil
}

// StaticDecider always returns the same outcome.
type StaticDecider bool

func (d StaticDecider) Decide(context.Context, string) (bool, error) {
	return bool(d), nil
}
