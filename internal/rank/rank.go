package rank

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// #region ranking
// Ranking is a total order over constraints, most dominant first.
type Ranking struct {
	order []int
	pos   []int
}

// FromOrder builds a ranking from constraint indices listed most dominant
// first. order must be a permutation of 0..len(order)-1.
func FromOrder(order []int) Ranking {
	r := Ranking{order: make([]int, len(order)), pos: make([]int, len(order))}
	copy(r.order, order)
	for p, c := range order {
		r.pos[c] = p
	}
	return r
}

// Len returns the number of ranked constraints.
func (r Ranking) Len() int {
	return len(r.order)
}

// Order returns constraint indices, most dominant first.
func (r Ranking) Order() []int {
	out := make([]int, len(r.order))
	copy(out, r.order)
	return out
}

// Position returns the rank of constraint c; 0 is the most dominant.
func (r Ranking) Position(c int) int {
	return r.pos[c]
}

// Names maps the order onto constraint names.
func (r Ranking) Names(names []string) []string {
	out := make([]string, len(r.order))
	for i, c := range r.order {
		out[i] = names[c]
	}
	return out
}

// #endregion ranking

// #region engine
// Engine draws rankings from ranking values. It is not safe for
// concurrent use; give each goroutine its own Engine.
type Engine struct {
	src rand.Source
	rng *rand.Rand
}

// NewEngine returns an engine drawing all randomness from src.
func NewEngine(src rand.Source) *Engine {
	return &Engine{src: src, rng: rand.New(src)}
}

// NewSeededEngine is NewEngine over a PCG source seeded with seed.
func NewSeededEngine(seed uint64) *Engine {
	return NewEngine(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Rand exposes the engine's generator, e.g. for corpus shuffling, so a
// session draws from a single reproducible stream.
func (e *Engine) Rand() *rand.Rand {
	return e.rng
}

// Rank orders constraints by value, highest first. When sigma > 0 each
// value is perturbed by an independent N(0, sigma) sample for this call
// only; values is never modified. A random permutation precedes the
// stable sort so that tied constraints are ordered uniformly at random.
func (e *Engine) Rank(values []float64, sigma float64) Ranking {
	noisy := make([]float64, len(values))
	copy(noisy, values)
	if sigma > 0 {
		noise := distuv.Normal{Mu: 0, Sigma: sigma, Src: e.src}
		for i := range noisy {
			noisy[i] += noise.Rand()
		}
	}

	order := e.rng.Perm(len(values))
	sort.SliceStable(order, func(a, b int) bool {
		return noisy[order[a]] > noisy[order[b]]
	})
	return FromOrder(order)
}

// #endregion engine

// #region canonical
// Canonical orders constraints by value, highest first, breaking ties by
// declaration order. It is deterministic.
func Canonical(values []float64) Ranking {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] > values[order[b]]
	})
	return FromOrder(order)
}

// #endregion canonical
