package session

import (
	"github.com/danielpatrickdp/otgla/internal/grammar"
	"github.com/danielpatrickdp/otgla/internal/rank"
	"github.com/danielpatrickdp/otgla/internal/update"
)

// #region config
// Config bundles the learner and loop parameters of a session.
type Config struct {
	Update      update.Config
	NoiseSigma  float64 // evaluation noise; 0 disables it
	Passes      int     // passes over the corpus, each freshly shuffled
	PrintCycle  int     // progress line every N trials; 0 disables it
	SkipUnknown bool    // skip corpus items the grammar cannot look up
}

// DefaultSessionConfig returns the conventional GLA session settings.
func DefaultSessionConfig() Config {
	return Config{
		Update:     update.DefaultUpdateConfig(),
		NoiseSigma: 2.0,
		Passes:     1,
		PrintCycle: 1000,
	}
}

// #endregion config

// #region trial-result
// TrialResult captures the outcome of one corpus item.
type TrialResult struct {
	Trial     int
	Overt     string
	Ranking   rank.Ranking
	Predicted grammar.Candidate
	Target    grammar.Candidate
	Matched   bool
	Skipped   bool
	Update    update.Result

	// After is the noise-free re-evaluation following a learning step.
	// It is diagnostic only and nil when no learning happened.
	After *Reevaluation
}

// Reevaluation is the predicted/target pair under the updated grammar.
type Reevaluation struct {
	Predicted string
	Target    string
	Matched   bool
}

// #endregion trial-result

// #region summary
// Summary provides aggregate stats from a session.
type Summary struct {
	Mode        string
	Trials      int
	Changes     int
	Skipped     int
	Constraints []string
	Values      []float64

	// Failed lists the corpus forms that were never matched, sorted.
	Failed []string
	// LearningTrack[k] is the number of matched trials after trial k+1.
	LearningTrack []int
	// IntervalTrack holds the trial numbers at which the grammar changed.
	IntervalTrack []int
	// History[c][k] is constraint c's value after trial k+1.
	History [][]float64
}

// Ranking returns the constraint names ordered by final value.
func (s Summary) Ranking() []string {
	return rank.Canonical(s.Values).Names(s.Constraints)
}

// #endregion summary

// #region recorder
// Recorder receives every completed trial, e.g. to persist it.
type Recorder interface {
	RecordTrial(TrialResult) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(TrialResult) error

func (f RecorderFunc) RecordTrial(r TrialResult) error { return f(r) }

// #endregion recorder
