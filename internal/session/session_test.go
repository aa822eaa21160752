package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/otgla/internal/generate"
	"github.com/danielpatrickdp/otgla/internal/grammar"
	"github.com/danielpatrickdp/otgla/internal/rank"
	"github.com/danielpatrickdp/otgla/internal/state"
)

// #region helpers
const tiedDirect = `constraint [1]: "C1" 100
constraint [2]: "C2" 100
input [1]: "|a|"
	candidate [1]: "A" 0 1
	candidate [2]: "B" 1 0
`

const tiedRIP = `constraint [1]: "Trochee" 100
constraint [2]: "Iamb" 100
constraint [3]: "Parse" 100
input [1]: "|LL|"
	candidate [1]: "[L1 L] \-> /(L1 L)/" 0 1 0
	candidate [2]: "[L L1] \-> /(L L1)/" 1 0 0
	candidate [3]: "[L1 L] \-> /(L1) L/" 0 0 1
`

func newSession(t *testing.T, text string, rip bool, cfg Config, seed uint64) *Session {
	t.Helper()
	g, err := grammar.ParseString(text, grammar.Options{RIP: rip})
	require.NoError(t, err)
	st := state.NewLearningState(g.Names(), g.Values())
	return New(g, st, cfg, rand.NewPCG(seed, seed+1))
}

func quietConfig() Config {
	cfg := DefaultSessionConfig()
	cfg.PrintCycle = 0
	return cfg
}

func repeat(form string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = form
	}
	return out
}

// flakyPredict fails every Predict call after the first failAfter calls.
type flakyPredict struct {
	generate.Strategy
	failAfter int
	calls     int
	err       error
}

func (f *flakyPredict) Predict(overt string, r rank.Ranking) (grammar.Candidate, error) {
	f.calls++
	if f.calls > f.failAfter {
		return grammar.Candidate{}, f.err
	}
	return f.Strategy.Predict(overt, r)
}

// #endregion helpers

// #region learning-tests
func TestDirectConvergence(t *testing.T) {
	s := newSession(t, tiedDirect, false, quietConfig(), 42)

	results, err := s.Run(context.Background(), repeat("A", 100))
	require.NoError(t, err)
	require.Len(t, results, 100)

	st := s.State()
	c1, _ := st.Value("C1")
	c2, _ := st.Value("C2")
	assert.Greater(t, c1, c2, "expected C1 > C2 after learning")

	rates := MismatchRates(results, 25)
	require.Len(t, rates, 4)
	assert.Greater(t, rates[0], rates[len(rates)-1], "expected mismatch rate to fall: %v", rates)
}

func TestRIPConvergence(t *testing.T) {
	s := newSession(t, tiedRIP, true, quietConfig(), 9)

	_, err := s.Run(context.Background(), repeat("[L1 L]", 100))
	require.NoError(t, err)
	sum := s.Summary()
	assert.Equal(t, "rip", sum.Mode)
	require.NotZero(t, sum.Changes, "expected at least one grammar change")
	// Each change raises Trochee and lowers one of the others, so Trochee
	// cannot be the lowest ranked constraint.
	assert.NotEqual(t, "Trochee", sum.Ranking()[2], "values %v", sum.Values)
	assert.Empty(t, sum.Failed)
}

func TestZeroPlasticityLeavesValues(t *testing.T) {
	cfg := quietConfig()
	cfg.Update.Plasticity = 0
	s := newSession(t, tiedDirect, false, cfg, 1)

	results, err := s.Run(context.Background(), repeat("A", 40))
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 100}, s.State().Values)
	for _, r := range results {
		assert.Equal(t, "no_op", r.Update.Decision.Action, "trial %d", r.Trial)
	}
}

func TestSameSeedSameSession(t *testing.T) {
	corpus := repeat("[L1 L]", 50)
	a := newSession(t, tiedRIP, true, quietConfig(), 5)
	b := newSession(t, tiedRIP, true, quietConfig(), 5)

	_, err := a.Run(context.Background(), corpus)
	require.NoError(t, err)
	_, err = b.Run(context.Background(), corpus)
	require.NoError(t, err)

	sa, sb := a.Summary(), b.Summary()
	assert.Equal(t, sa.Changes, sb.Changes)
	assert.Equal(t, sa.Values, sb.Values)
}

func TestNoNoiseIsDeterministic(t *testing.T) {
	cfg := quietConfig()
	cfg.NoiseSigma = 0
	g, err := grammar.ParseString(tiedDirect, grammar.Options{})
	require.NoError(t, err)
	// Untied values: C1 dominates and A always wins.
	st := state.NewLearningState(g.Names(), []float64{101, 100})
	s := New(g, st, cfg, rand.NewPCG(3, 4))

	results, err := s.Run(context.Background(), repeat("A", 20))
	require.NoError(t, err)
	for _, r := range results {
		assert.True(t, r.Matched, "trial %d", r.Trial)
		assert.Equal(t, "A", r.Predicted.ID, "trial %d", r.Trial)
	}
	assert.Zero(t, s.Summary().Changes)
}

// #endregion learning-tests

// #region diagnostics-tests
func TestSummaryTracks(t *testing.T) {
	cfg := quietConfig()
	cfg.Passes = 2
	s := newSession(t, tiedDirect, false, cfg, 8)

	results, err := s.Run(context.Background(), repeat("A", 30))
	require.NoError(t, err)
	sum := s.Summary()
	require.Equal(t, 60, sum.Trials)
	require.Len(t, results, 60)
	assert.Len(t, sum.LearningTrack, sum.Trials)
	assert.Len(t, sum.History[0], sum.Trials)
	assert.Len(t, sum.IntervalTrack, sum.Changes)

	matched := 0
	for _, r := range results {
		if r.Matched {
			matched++
		} else {
			assert.NotNil(t, r.After, "trial %d: expected a reevaluation after learning", r.Trial)
		}
	}
	assert.Equal(t, matched, sum.LearningTrack[len(sum.LearningTrack)-1])
	assert.Equal(t, sum.Trials, matched+sum.Changes)
}

func TestMismatchRates(t *testing.T) {
	results := []TrialResult{
		{Matched: false}, {Matched: false}, {Matched: true}, {Matched: false},
		{Skipped: true},
		{Matched: true}, {Matched: true}, {Matched: true}, {Matched: false},
		{Matched: true},
	}
	assert.Equal(t, []float64{0.75, 0.25, 0}, MismatchRates(results, 4))
	assert.Nil(t, MismatchRates(results, 0), "non-positive window")
}

func TestRecorderSeesEveryTrial(t *testing.T) {
	s := newSession(t, tiedDirect, false, quietConfig(), 2)
	var seen []int
	s.SetRecorder(RecorderFunc(func(r TrialResult) error {
		seen = append(seen, r.Trial)
		return nil
	}))
	_, err := s.Run(context.Background(), repeat("A", 10))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, seen)
}

func TestRecorderErrorStops(t *testing.T) {
	s := newSession(t, tiedDirect, false, quietConfig(), 2)
	boom := errors.New("disk full")
	s.SetRecorder(RecorderFunc(func(TrialResult) error { return boom }))

	results, err := s.Run(context.Background(), repeat("A", 10))
	require.ErrorIs(t, err, boom)
	assert.Empty(t, results)
}

// TestFailedReevaluationKeepsBookkeeping checks that a trial whose update
// was applied is still recorded when the diagnostic re-evaluation fails.
func TestFailedReevaluationKeepsBookkeeping(t *testing.T) {
	cfg := quietConfig()
	cfg.NoiseSigma = 0
	g, err := grammar.ParseString(tiedDirect, grammar.Options{})
	require.NoError(t, err)
	// C2 >> C1: B is predicted for A, so the first trial always learns.
	st := state.NewLearningState(g.Names(), []float64{100, 101})
	s := New(g, st, cfg, rand.NewPCG(1, 2))

	boom := errors.New("optimizer unavailable")
	s.strategy = &flakyPredict{Strategy: s.strategy, failAfter: 1, err: boom}
	var recorded []TrialResult
	s.SetRecorder(RecorderFunc(func(r TrialResult) error {
		recorded = append(recorded, r)
		return nil
	}))

	res, err := s.Step("A")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "reevaluate")
	assert.False(t, res.Matched)
	assert.Nil(t, res.After)

	assert.Equal(t, []float64{101, 100}, st.Values, "update is applied")
	assert.Equal(t, 1, st.Trials)
	assert.Equal(t, 1, st.Changes)
	for c := range st.History {
		assert.Equal(t, []float64{st.Values[c]}, st.History[c], "history of constraint %d", c)
	}
	require.Len(t, recorded, 1, "recorder must see the trial")
	assert.Equal(t, 1, recorded[0].Trial)
	assert.Equal(t, "commit", recorded[0].Update.Decision.Action)

	sum := s.Summary()
	assert.Len(t, sum.LearningTrack, 1)
	assert.Equal(t, []int{1}, sum.IntervalTrack)
}

// #endregion diagnostics-tests

// #region error-tests
func TestUnknownFormFails(t *testing.T) {
	s := newSession(t, tiedDirect, false, quietConfig(), 1)
	_, err := s.Run(context.Background(), []string{"Z"})
	var le *grammar.LookupError
	assert.ErrorAs(t, err, &le)
}

func TestUnknownFormSkipped(t *testing.T) {
	cfg := quietConfig()
	cfg.SkipUnknown = true
	s := newSession(t, tiedDirect, false, cfg, 1)

	results, err := s.Run(context.Background(), []string{"Z", "A", "Z"})
	require.NoError(t, err)
	assert.Len(t, results, 3)
	sum := s.Summary()
	assert.Equal(t, 2, sum.Skipped)
	assert.Equal(t, 1, sum.Trials)
}

func TestMalformedOvertInRIP(t *testing.T) {
	cfg := quietConfig()
	cfg.SkipUnknown = true
	s := newSession(t, tiedRIP, true, cfg, 1)

	// Not a lookup failure, so it is fatal even when skipping.
	for _, overt := range []string{"L1 L", "x[L1 L]", "[L1] [L]"} {
		_, err := s.Step(overt)
		var fe *grammar.FormatError
		assert.ErrorAs(t, err, &fe, "overt %q", overt)
	}
	assert.Zero(t, s.State().Trials)
}

func TestCancelledContext(t *testing.T) {
	s := newSession(t, tiedDirect, false, quietConfig(), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := s.Run(ctx, repeat("A", 5))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

// #endregion error-tests

// #region corpus-tests
func TestReadCorpus(t *testing.T) {
	corpus, err := ReadCorpus(strings.NewReader("[L1 L]\n\n  [L L1]  \n\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"[L1 L]", "[L L1]"}, corpus)
}

func TestLoadCorpusMissing(t *testing.T) {
	_, err := LoadCorpus(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

// #endregion corpus-tests
