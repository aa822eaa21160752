package eval

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/danielpatrickdp/otgla/internal/generate"
	"github.com/danielpatrickdp/otgla/internal/grammar"
	"github.com/danielpatrickdp/otgla/internal/rank"
)

// #region eval-harness
// EvalHarness checks how often a frozen grammar reproduces its corpus.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

type sample struct {
	target string
	err    *ErrorRecord
}

// Run draws config.Samples forms from targets, asks the grammar with the
// given ranking values to produce each one and records the mismatches.
// Every sample owns a generator seeded from (Seed, sample index), so the
// result does not depend on Workers.
func (h *EvalHarness) Run(ctx context.Context, g *grammar.Grammar, values []float64, targets []string) (EvalResult, error) {
	if h.config.Samples < 1 {
		return EvalResult{}, fmt.Errorf("eval: samples must be at least 1, got %d", h.config.Samples)
	}
	if len(targets) == 0 {
		return EvalResult{}, errors.New("eval: no target forms")
	}
	if len(values) != len(g.Constraints) {
		return EvalResult{}, fmt.Errorf("eval: %d values for %d constraints", len(values), len(g.Constraints))
	}
	frozen := append([]float64(nil), values...)
	strategy := generate.ForGrammar(g)

	samples := make([]sample, h.config.Samples)
	eg, ctx := errgroup.WithContext(ctx)
	workers := h.config.Workers
	if workers < 1 {
		workers = 1
	}
	eg.SetLimit(workers)

	for i := range samples {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := h.evaluate(i, g, strategy, frozen, targets)
			if err != nil {
				return fmt.Errorf("sample %d: %w", i, err)
			}
			samples[i] = s
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return EvalResult{}, err
	}

	return h.summarize(samples), nil
}

func (h *EvalHarness) evaluate(i int, g *grammar.Grammar, strategy generate.Strategy, values []float64, targets []string) (sample, error) {
	engine := rank.NewEngine(rand.NewPCG(h.config.Seed, uint64(i)))
	target := targets[engine.Rand().IntN(len(targets))]
	r := engine.Rank(values, h.config.NoiseSigma)

	produced, err := strategy.Produce(target, r)
	if err != nil {
		return sample{}, err
	}
	s := sample{target: target}
	if produced == target {
		return s, nil
	}

	rec := &ErrorRecord{Sample: i, Target: target, Predicted: produced}
	if g.RIP {
		parse, err := generate.FromOvert(produced, r, g.Overts)
		if err != nil {
			return sample{}, fmt.Errorf("parse produced form %q: %w", produced, err)
		}
		rec.PredictedParse = parse.ID
	}
	s.err = rec
	return s, nil
}

// #endregion eval-harness

// #region summarize
func (h *EvalHarness) summarize(samples []sample) EvalResult {
	res := EvalResult{Samples: len(samples), ByForm: make(map[string]int)}
	flags := make([]float64, len(samples))
	for i, s := range samples {
		if s.err == nil {
			continue
		}
		flags[i] = 1
		res.Errors = append(res.Errors, *s.err)
		res.ByForm[s.target]++
	}
	if len(flags) > 0 {
		res.ErrorRate = stat.Mean(flags, nil)
	}

	ratePass := res.ErrorRate <= h.config.MaxErrorRate
	res.Metrics = append(res.Metrics,
		EvalMetric{Name: "error_rate", Value: res.ErrorRate, Pass: ratePass},
		EvalMetric{Name: "forms_with_errors", Value: float64(len(res.ByForm)), Pass: true},
	)

	res.Passed = ratePass
	res.Reason = "all checks passed"
	if !ratePass {
		res.Reason = fmt.Sprintf("eval failed: error rate %.4f exceeds %.4f", res.ErrorRate, h.config.MaxErrorRate)
	}
	return res
}

// #endregion summarize
