package session

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/otgla/internal/grammar"
	"github.com/danielpatrickdp/otgla/internal/state"
	"github.com/danielpatrickdp/otgla/internal/update"
)

// #region fixture-types

// Fixture is the top-level YAML structure of a learning fixture: a grammar,
// a corpus, the settings to learn with and what the outcome must satisfy.
type Fixture struct {
	Description  string          `yaml:"description"`
	Mode         string          `yaml:"mode"` // "direct" | "rip"
	Grammar      string          `yaml:"grammar"`
	InitialValue *float64        `yaml:"initial_value,omitempty"`
	Corpus       []FixtureItem   `yaml:"corpus"`
	Config       FixtureConfig   `yaml:"config"`
	Seed         uint64          `yaml:"seed"`
	Expected     FixtureExpected `yaml:"expected"`
}

// FixtureItem is a corpus form presented Count times (default once).
type FixtureItem struct {
	Form  string `yaml:"form"`
	Count int    `yaml:"count"`
}

// FixtureConfig mirrors Config with YAML tags. Zero or nil fields take
// defaults; an explicit plasticity or noise of 0 is kept.
type FixtureConfig struct {
	Plasticity  *float64 `yaml:"plasticity"`
	Promote     string   `yaml:"promote"`
	NoiseSigma  *float64 `yaml:"noise_sigma"`
	Passes      int      `yaml:"passes"`
	SkipUnknown bool     `yaml:"skip_unknown"`
}

// FixtureExpected lists the properties the learned grammar must have.
type FixtureExpected struct {
	// Dominates holds "A >> B" pairs that must hold of the final values.
	Dominates  []string `yaml:"dominates"`
	MaxChanges int      `yaml:"max_changes"`
	// Learned lists forms that must have been matched at least once.
	Learned []string `yaml:"learned"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToConfig converts a FixtureConfig to a session Config.
func (fc *FixtureConfig) ToConfig() Config {
	cfg := DefaultSessionConfig()
	cfg.PrintCycle = 0
	if fc.Plasticity != nil {
		cfg.Update.Plasticity = *fc.Plasticity
	}
	if fc.Promote != "" {
		cfg.Update.Promote = update.PromoteMode(fc.Promote)
	}
	if fc.NoiseSigma != nil {
		cfg.NoiseSigma = *fc.NoiseSigma
	}
	if fc.Passes > 0 {
		cfg.Passes = fc.Passes
	}
	cfg.SkipUnknown = fc.SkipUnknown
	return cfg
}

// Items expands the corpus counts into a flat corpus.
func (f *Fixture) Items() []string {
	var corpus []string
	for _, it := range f.Corpus {
		n := it.Count
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			corpus = append(corpus, it.Form)
		}
	}
	return corpus
}

// #endregion fixture-loader

// #region fixture-run

// Run parses the fixture grammar and learns the corpus with the fixture's
// settings and seed.
func (f *Fixture) Run(ctx context.Context) (Summary, []TrialResult, error) {
	opts := grammar.Options{RIP: f.Mode == "rip", InitialValue: f.InitialValue}
	g, err := grammar.ParseString(f.Grammar, opts)
	if err != nil {
		return Summary{}, nil, fmt.Errorf("fixture grammar: %w", err)
	}
	st := state.NewLearningState(g.Names(), g.Values())
	s := New(g, st, f.Config.ToConfig(), rand.NewPCG(f.Seed, f.Seed+1))
	results, err := s.Run(ctx, f.Items())
	return s.Summary(), results, err
}

// Check compares a summary against the fixture's expectations and returns
// one message per violated expectation.
func (f *Fixture) Check(sum Summary) []string {
	var problems []string
	values := make(map[string]float64, len(sum.Constraints))
	for i, n := range sum.Constraints {
		values[n] = sum.Values[i]
	}
	for _, pair := range f.Expected.Dominates {
		hi, lo, ok := strings.Cut(pair, ">>")
		hi, lo = strings.TrimSpace(hi), strings.TrimSpace(lo)
		vh, okh := values[hi]
		vl, okl := values[lo]
		if !ok || !okh || !okl {
			problems = append(problems, fmt.Sprintf("bad dominance expectation %q", pair))
			continue
		}
		if vh <= vl {
			problems = append(problems, fmt.Sprintf("expected %s (%.3f) >> %s (%.3f)", hi, vh, lo, vl))
		}
	}
	if f.Expected.MaxChanges > 0 && sum.Changes > f.Expected.MaxChanges {
		problems = append(problems, fmt.Sprintf("grammar changed %d times, expected at most %d", sum.Changes, f.Expected.MaxChanges))
	}
	failed := make(map[string]bool, len(sum.Failed))
	for _, form := range sum.Failed {
		failed[form] = true
	}
	for _, form := range f.Expected.Learned {
		if failed[form] {
			problems = append(problems, fmt.Sprintf("form %s was never learned", form))
		}
	}
	return problems
}

// #endregion fixture-run

// #region fixture-export

// NewFixture captures a finished run as a fixture. Its expectations are the
// run's own outcome: each adjacent strict dominance of the learned ranking,
// the number of changes and the forms that were matched. Consecutive
// repeats in corpus are folded into counts so Items restores the order.
func NewFixture(description, mode, grammarText string, initial *float64, corpus []string, cfg Config, seed uint64, sum Summary) *Fixture {
	noise := cfg.NoiseSigma
	plasticity := cfg.Update.Plasticity
	f := &Fixture{
		Description:  description,
		Mode:         mode,
		Grammar:      grammarText,
		InitialValue: initial,
		Config: FixtureConfig{
			Plasticity:  &plasticity,
			Promote:     string(cfg.Update.Promote),
			NoiseSigma:  &noise,
			Passes:      cfg.Passes,
			SkipUnknown: cfg.SkipUnknown,
		},
		Seed: seed,
	}

	for _, form := range corpus {
		if n := len(f.Corpus); n > 0 && f.Corpus[n-1].Form == form {
			f.Corpus[n-1].Count++
			continue
		}
		f.Corpus = append(f.Corpus, FixtureItem{Form: form, Count: 1})
	}

	order := make([]int, len(sum.Values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return sum.Values[order[a]] > sum.Values[order[b]] })
	for k := 1; k < len(order); k++ {
		hi, lo := order[k-1], order[k]
		if sum.Values[hi] > sum.Values[lo] {
			f.Expected.Dominates = append(f.Expected.Dominates, sum.Constraints[hi]+" >> "+sum.Constraints[lo])
		}
	}
	f.Expected.MaxChanges = sum.Changes

	failed := make(map[string]bool, len(sum.Failed))
	for _, form := range sum.Failed {
		failed[form] = true
	}
	seen := make(map[string]bool)
	for _, form := range corpus {
		if !seen[form] && !failed[form] {
			f.Expected.Learned = append(f.Expected.Learned, form)
		}
		seen[form] = true
	}
	return f
}

// WriteFixture writes f as YAML to path.
func WriteFixture(path string, f *Fixture) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// #endregion fixture-export
