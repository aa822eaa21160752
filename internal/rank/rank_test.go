package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalOrdersDescending(t *testing.T) {
	r := Canonical([]float64{90, 110, 100})
	assert.Equal(t, []int{1, 2, 0}, r.Order())
	assert.Equal(t, 0, r.Position(1))
	assert.Equal(t, 2, r.Position(0))
	assert.Equal(t, []string{"B", "C", "A"}, r.Names([]string{"A", "B", "C"}))
}

func TestCanonicalTiesKeepDeclarationOrder(t *testing.T) {
	r := Canonical([]float64{100, 100, 100})
	assert.Equal(t, []int{0, 1, 2}, r.Order())
}

func TestRankWithoutNoiseFollowsValues(t *testing.T) {
	e := NewSeededEngine(7)
	values := []float64{1, 5, 3, 4}
	for i := 0; i < 20; i++ {
		assert.Equal(t, []int{1, 3, 2, 0}, e.Rank(values, 0).Order())
	}
}

func TestRankDoesNotMutateValues(t *testing.T) {
	e := NewSeededEngine(1)
	values := []float64{100, 100, 100}
	e.Rank(values, 2.0)
	assert.Equal(t, []float64{100, 100, 100}, values)
}

func TestRankBreaksTiesRandomly(t *testing.T) {
	e := NewSeededEngine(42)
	values := []float64{100, 100}
	firsts := map[int]int{}
	for i := 0; i < 200; i++ {
		firsts[e.Rank(values, 0).Order()[0]]++
	}
	assert.Greater(t, firsts[0], 50)
	assert.Greater(t, firsts[1], 50)
}

func TestRankNoiseReorders(t *testing.T) {
	e := NewSeededEngine(3)
	values := []float64{100, 99}
	flipped := 0
	for i := 0; i < 500; i++ {
		if e.Rank(values, 2.0).Order()[0] == 1 {
			flipped++
		}
	}
	// P(N(0, 2*sqrt2) > 1) is about 0.36.
	assert.Greater(t, flipped, 100)
	assert.Less(t, flipped, 300)
}

func TestRankReproducibleWithSeed(t *testing.T) {
	a, b := NewSeededEngine(11), NewSeededEngine(11)
	values := []float64{100, 100, 100, 100}
	for i := 0; i < 10; i++ {
		require.Equal(t, a.Rank(values, 2).Order(), b.Rank(values, 2).Order())
	}
}
