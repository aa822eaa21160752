package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sort"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/stat"

	"github.com/danielpatrickdp/otgla/internal/generate"
	"github.com/danielpatrickdp/otgla/internal/grammar"
	"github.com/danielpatrickdp/otgla/internal/rank"
	"github.com/danielpatrickdp/otgla/internal/state"
	"github.com/danielpatrickdp/otgla/internal/update"
)

// #region session
// Session runs error-driven learning of one grammar over a corpus. It is
// single-threaded: each trial's update completes before the next trial
// draws its ranking.
type Session struct {
	g        *grammar.Grammar
	st       *state.LearningState
	cfg      Config
	strategy generate.Strategy
	engine   *rank.Engine
	recorder Recorder

	seen          map[string]bool
	matched       int
	skipped       int
	learningTrack []int
	intervalTrack []int
}

// New prepares a session over g. st holds the starting ranking values and
// is updated in place; src is the session's only source of randomness.
func New(g *grammar.Grammar, st *state.LearningState, cfg Config, src rand.Source) *Session {
	return &Session{
		g:        g,
		st:       st,
		cfg:      cfg,
		strategy: generate.ForGrammar(g),
		engine:   rank.NewEngine(src),
		seen:     make(map[string]bool),
	}
}

// SetRecorder installs a hook called after every trial.
func (s *Session) SetRecorder(r Recorder) {
	s.recorder = r
}

// State returns the learning state the session mutates.
func (s *Session) State() *state.LearningState {
	return s.st
}

// #endregion session

// #region step
// Step runs one trial on overt: draw a ranking, generate the predicted and
// target candidates, and learn when they differ.
func (s *Session) Step(overt string) (TrialResult, error) {
	r := s.engine.Rank(s.st.Values, s.cfg.NoiseSigma)

	pred, err := s.strategy.Predict(overt, r)
	if err != nil {
		return s.skip(overt, err)
	}
	target, err := s.strategy.Target(overt, r)
	if err != nil {
		return s.skip(overt, err)
	}

	s.st.Trials++
	s.seen[overt] = true
	res := TrialResult{
		Trial:     s.st.Trials,
		Overt:     overt,
		Ranking:   r,
		Predicted: pred,
		Target:    target,
		Matched:   pred.ID == target.ID,
	}

	var reevalErr error
	if res.Matched {
		s.matched++
		s.st.Learned[overt] = true
		res.Update = update.Result{Decision: update.Decision{Action: "no_op", Reason: "prediction matches target"}}
	} else {
		s.st.Changes++
		s.intervalTrack = append(s.intervalTrack, res.Trial)
		res.Update = update.Learn(s.st, target.Profile, pred.Profile, s.cfg.Update)
		res.After, reevalErr = s.reevaluate(overt)
	}

	// The update has been applied; history and the recorder must see the
	// trial even when the re-evaluation fails.
	s.st.RecordHistory()
	s.learningTrack = append(s.learningTrack, s.matched)

	if s.recorder != nil {
		if err := s.recorder.RecordTrial(res); err != nil {
			return res, fmt.Errorf("record trial %d: %w", res.Trial, err)
		}
	}
	if reevalErr != nil {
		return res, fmt.Errorf("trial %d: reevaluate %q: %w", res.Trial, overt, reevalErr)
	}
	return res, nil
}

func (s *Session) reevaluate(overt string) (*Reevaluation, error) {
	r := rank.Canonical(s.st.Values)
	pred, err := s.strategy.Predict(overt, r)
	if err != nil {
		return nil, err
	}
	target, err := s.strategy.Target(overt, r)
	if err != nil {
		return nil, err
	}
	return &Reevaluation{Predicted: pred.ID, Target: target.ID, Matched: pred.ID == target.ID}, nil
}

// skip turns a lookup failure into a skipped trial when the session is
// configured to tolerate unknown forms. Every other error is returned.
func (s *Session) skip(overt string, err error) (TrialResult, error) {
	var le *grammar.LookupError
	if s.cfg.SkipUnknown && errors.As(err, &le) {
		s.skipped++
		log.Printf("skip %q: %v", overt, err)
		return TrialResult{Overt: overt, Skipped: true}, nil
	}
	return TrialResult{Overt: overt}, fmt.Errorf("trial %d: %w", s.st.Trials+1, err)
}

// #endregion step

// #region pass
// Pass presents every corpus item once, in a fresh random order.
// Cancellation is checked between trials; a cancelled pass returns the
// results so far together with ctx.Err().
func (s *Session) Pass(ctx context.Context, corpus []string) ([]TrialResult, error) {
	results := make([]TrialResult, 0, len(corpus))
	for n, i := range s.engine.Rand().Perm(len(corpus)) {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := s.Step(corpus[i])
		if err != nil {
			return results, err
		}
		results = append(results, res)

		if s.cfg.PrintCycle > 0 && (n+1)%s.cfg.PrintCycle == 0 {
			log.Printf("%s of %s trials, %s matched, %s changes",
				humanize.Comma(int64(n+1)), humanize.Comma(int64(len(corpus))),
				humanize.Comma(int64(s.matched)), humanize.Comma(int64(s.st.Changes)))
		}
	}
	return results, nil
}

// Run performs cfg.Passes passes (at least one) over the corpus.
func (s *Session) Run(ctx context.Context, corpus []string) ([]TrialResult, error) {
	passes := s.cfg.Passes
	if passes < 1 {
		passes = 1
	}
	var all []TrialResult
	for p := 0; p < passes; p++ {
		results, err := s.Pass(ctx, corpus)
		all = append(all, results...)
		if err != nil {
			return all, fmt.Errorf("pass %d: %w", p+1, err)
		}
	}
	return all, nil
}

// #endregion pass

// #region summary
// Summary reports the session's counters and diagnostic tracks.
func (s *Session) Summary() Summary {
	failed := make([]string, 0)
	for form := range s.seen {
		if !s.st.Learned[form] {
			failed = append(failed, form)
		}
	}
	sort.Strings(failed)

	history := make([][]float64, len(s.st.History))
	for i, h := range s.st.History {
		history[i] = append([]float64(nil), h...)
	}

	return Summary{
		Mode:          s.strategy.Mode(),
		Trials:        s.st.Trials,
		Changes:       s.st.Changes,
		Skipped:       s.skipped,
		Constraints:   append([]string(nil), s.st.Constraints...),
		Values:        s.st.Snapshot(),
		Failed:        failed,
		LearningTrack: append([]int(nil), s.learningTrack...),
		IntervalTrack: append([]int(nil), s.intervalTrack...),
		History:       history,
	}
}

// MismatchRates splits the non-skipped results into consecutive windows
// of the given size and returns the fraction of mismatches in each. A
// trailing partial window is included.
func MismatchRates(results []TrialResult, window int) []float64 {
	if window < 1 {
		return nil
	}
	var flags []float64
	for _, r := range results {
		if r.Skipped {
			continue
		}
		if r.Matched {
			flags = append(flags, 0)
		} else {
			flags = append(flags, 1)
		}
	}
	var rates []float64
	for lo := 0; lo < len(flags); lo += window {
		hi := lo + window
		if hi > len(flags) {
			hi = len(flags)
		}
		rates = append(rates, stat.Mean(flags[lo:hi], nil))
	}
	return rates
}

// #endregion summary
