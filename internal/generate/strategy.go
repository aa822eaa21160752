package generate

import (
	"github.com/danielpatrickdp/otgla/internal/grammar"
	"github.com/danielpatrickdp/otgla/internal/rank"
)

// #region strategy
// Strategy binds the generator to one learning mode. Both modes share
// the optimizer; they differ in which tableaux feed it and how the input
// of an observed overt form is found.
type Strategy interface {
	// Predict returns what the grammar generates for the datum's input.
	Predict(overt string, r rank.Ranking) (grammar.Candidate, error)
	// Target returns the candidate the learner takes to be correct.
	Target(overt string, r rank.Ranking) (grammar.Candidate, error)
	// Produce returns the overt form the grammar pronounces for the
	// datum's input.
	Produce(overt string, r rank.Ranking) (string, error)
	// Mode names the strategy ("direct" or "rip").
	Mode() string
}

// ForGrammar picks the strategy matching how g was parsed.
func ForGrammar(g *grammar.Grammar) Strategy {
	if g.RIP {
		return RIP{G: g}
	}
	return Direct{G: g}
}

// #endregion strategy

// #region direct
// Direct learns from fully observed candidates: the corpus item is the
// winning candidate of a known input.
type Direct struct {
	G *grammar.Grammar
}

func (d Direct) Mode() string { return "direct" }

func (d Direct) Predict(overt string, r rank.Ranking) (grammar.Candidate, error) {
	input, err := d.G.InputOf(overt)
	if err != nil {
		return grammar.Candidate{}, err
	}
	return FromInput(input, r, d.G.Inputs)
}

func (d Direct) Target(overt string, _ rank.Ranking) (grammar.Candidate, error) {
	input, err := d.G.InputOf(overt)
	if err != nil {
		return grammar.Candidate{}, err
	}
	t, err := d.G.Inputs.Get(input)
	if err != nil {
		return grammar.Candidate{}, err
	}
	c, ok := t.Lookup(overt)
	if !ok {
		return grammar.Candidate{}, &grammar.LookupError{Form: overt}
	}
	return c, nil
}

func (d Direct) Produce(overt string, r rank.Ranking) (string, error) {
	c, err := d.Predict(overt, r)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

// #endregion direct

// #region rip
// RIP learns from overt forms alone. The input is hypothesized from the
// overt form and the target parse is the winner of the overt form's own
// competition.
type RIP struct {
	G *grammar.Grammar
}

func (p RIP) Mode() string { return "rip" }

func (p RIP) Predict(overt string, r rank.Ranking) (grammar.Candidate, error) {
	input, err := HypothesizeInput(overt)
	if err != nil {
		return grammar.Candidate{}, err
	}
	return FromInput(input, r, p.G.Inputs)
}

func (p RIP) Target(overt string, r rank.Ranking) (grammar.Candidate, error) {
	return FromOvert(overt, r, p.G.Overts)
}

func (p RIP) Produce(overt string, r rank.Ranking) (string, error) {
	input, err := HypothesizeInput(overt)
	if err != nil {
		return "", err
	}
	c, err := FromInput(input, r, p.G.InputOverts)
	if err != nil {
		return "", err
	}
	return c.Overt, nil
}

// #endregion rip
