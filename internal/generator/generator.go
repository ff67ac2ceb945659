// Package generator picks random starting points for descent runs.
package generator

import (
	"errors"
	"math/rand"
	"time"

	"github.com/verte-zerg/tuigrad/internal/descent"
	"github.com/verte-zerg/tuigrad/internal/numeric"
)

const (
	maxAttempts = 64
	// Seeds are drawn from the inner part of the interval so a first step
	// has room to move.
	edgeMargin = 0.05
)

// ErrNoSeed is returned when no finite starting point was found.
var ErrNoSeed = errors.New("no finite starting point found")

// Generator produces random seeds.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed returns a deterministic Generator.
func NewWithSeed(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Uniform returns a value in [min, max).
func (g *Generator) Uniform(min, max float64) float64 {
	return min + g.rnd.Float64()*(max-min)
}

// Seed returns a random x inside b where fn is finite.
func (g *Generator) Seed(fn numeric.Function, b descent.Bounds) (float64, error) {
	if fn == nil {
		return 0, descent.ErrNoFunction
	}
	margin := (b.Max - b.Min) * edgeMargin
	lo, hi := b.Min+margin, b.Max-margin
	for i := 0; i < maxAttempts; i++ {
		x := g.Uniform(lo, hi)
		if _, err := numeric.Sample(fn, x); err == nil {
			return x, nil
		}
	}
	return 0, ErrNoSeed
}
