package generate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/danielpatrickdp/otgla/internal/grammar"
	"github.com/danielpatrickdp/otgla/internal/optimize"
	"github.com/danielpatrickdp/otgla/internal/rank"
)

// #region generate
// FromInput returns the optimal candidate for input under r.
func FromInput(input string, r rank.Ranking, set *grammar.TableauSet) (grammar.Candidate, error) {
	return winner(input, r, set)
}

// FromOvert returns the optimal parse of overt under r, i.e. the parse
// robust interpretive parsing would assign to it.
func FromOvert(overt string, r rank.Ranking, set *grammar.TableauSet) (grammar.Candidate, error) {
	return winner(overt, r, set)
}

func winner(form string, r rank.Ranking, set *grammar.TableauSet) (grammar.Candidate, error) {
	t, err := set.Get(form)
	if err != nil {
		return grammar.Candidate{}, err
	}
	i, err := optimize.Optimize(t, r)
	if err != nil {
		return grammar.Candidate{}, fmt.Errorf("optimize %q: %w", form, err)
	}
	return t.Candidates[i], nil
}

// #endregion generate

// #region hypothesize
var overtCore = regexp.MustCompile(`^\[([^\[\]]*)\]$`)

// HypothesizeInput derives the input of an overt form by stripping stress
// digits and spaces from the bracketed core: "[H1 L L H2]" becomes "|HLLH|".
func HypothesizeInput(overt string) (string, error) {
	m := overtCore.FindStringSubmatch(overt)
	if m == nil {
		return "", &grammar.FormatError{Msg: fmt.Sprintf("overt form %q is not bracket-delimited, expected e.g. [L1 H H]", overt)}
	}
	core := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, m[1])
	return "|" + core + "|", nil
}

// #endregion hypothesize
