// Package namegen produces readable names for clusters created without one.
package namegen

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

var letters = []string{
	"alpha", "beta", "gamma", "delta", "epsilon", "zeta",
	"eta", "theta", "iota", "kappa", "lambda", "mu",
	"nu", "xi", "omicron", "pi", "rho", "sigma",
	"tau", "upsilon", "phi", "chi", "psi", "omega",
}

// Generator yields names like "zeta-22". It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New returns a generator seeded from the runtime's random source.
func New() *Generator {
	return &Generator{rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeeded returns a deterministic generator.
func NewSeeded(seed1, seed2 uint64) *Generator {
	return &Generator{rnd: rand.New(rand.NewPCG(seed1, seed2))}
}

// Generate returns a Greek letter followed by a number in [1, 99].
func (g *Generator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("%s-%d", letters[g.rnd.IntN(len(letters))], g.rnd.IntN(99)+1)
}

// ClusterName returns a generated name with the "-cluster" suffix.
func (g *Generator) ClusterName() string {
	return g.Generate() + "-cluster"
}
