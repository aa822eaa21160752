package optimize

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/danielpatrickdp/otgla/internal/grammar"
	"github.com/danielpatrickdp/otgla/internal/rank"
)

// #region errors
// ErrRankingMismatch is returned when the ranking does not cover exactly
// the constraints a tableau's profiles are keyed on.
var ErrRankingMismatch = errors.New("ranking does not match violation profile size")

// OptimizationError reports a competition with no unique optimum.
type OptimizationError struct {
	Form string
	Tied []string
}

func (e *OptimizationError) Error() string {
	if len(e.Tied) == 0 {
		return fmt.Sprintf("could not find optimal candidate for %q: empty competition", e.Form)
	}
	return fmt.Sprintf("could not find optimal candidate for %q: %s tie on every constraint", e.Form, strings.Join(e.Tied, ", "))
}

// #endregion errors

// #region offenses
// offense is one violated constraint of one candidate.
type offense struct {
	pos   int // rank position, 0 = most dominant
	count int
}

// contender is a candidate still in the running, with a cursor into its
// offense list.
type contender struct {
	cand     int
	offenses []offense
	next     int
}

func (c *contender) exhausted() bool {
	return c.next >= len(c.offenses)
}

func (c *contender) head() offense {
	return c.offenses[c.next]
}

// offenseList collects violated constraints sorted most dominant first.
func offenseList(p grammar.Profile, r rank.Ranking) []offense {
	out := make([]offense, 0, len(p))
	for c, n := range p {
		if n > 0 {
			out = append(out, offense{pos: r.Position(c), count: n})
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].pos < out[b].pos })
	return out
}

// #endregion offenses

// #region optimize
// Optimize returns the index of the optimal candidate of t under r.
//
// Each round compares the most serious remaining offense of every
// contender. A contender with no offenses left wins outright. Otherwise
// the contenders whose most serious offense is the least dominant survive,
// then those with the fewest violations of it; survivors drop that
// offense and the next round starts.
func Optimize(t *grammar.Tableau, r rank.Ranking) (int, error) {
	if t.Len() == 0 {
		return -1, &OptimizationError{Form: t.Form}
	}

	alive := make([]*contender, 0, t.Len())
	for i, c := range t.Candidates {
		if len(c.Profile) != r.Len() {
			return -1, fmt.Errorf("candidate %q has %d violations, ranking has %d constraints: %w",
				c.ID, len(c.Profile), r.Len(), ErrRankingMismatch)
		}
		alive = append(alive, &contender{cand: i, offenses: offenseList(c.Profile, r)})
	}

	for {
		if len(alive) == 1 {
			return alive[0].cand, nil
		}

		var clean []*contender
		for _, c := range alive {
			if c.exhausted() {
				clean = append(clean, c)
			}
		}
		switch len(clean) {
		case 0:
		case 1:
			return clean[0].cand, nil
		default:
			return -1, tie(t, clean)
		}

		// Least dominant of the most serious offenses.
		worst := -1
		for _, c := range alive {
			if p := c.head().pos; p > worst {
				worst = p
			}
		}
		var best []*contender
		for _, c := range alive {
			if c.head().pos == worst {
				best = append(best, c)
			}
		}
		if len(best) == 1 {
			return best[0].cand, nil
		}

		fewest := best[0].head().count
		for _, c := range best[1:] {
			if n := c.head().count; n < fewest {
				fewest = n
			}
		}
		alive = alive[:0]
		for _, c := range best {
			if c.head().count == fewest {
				c.next++
				alive = append(alive, c)
			}
		}
	}
}

func tie(t *grammar.Tableau, cs []*contender) *OptimizationError {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = t.Candidates[c.cand].ID
	}
	return &OptimizationError{Form: t.Form, Tied: ids}
}

// #endregion optimize
