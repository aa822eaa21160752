package state

import (
	"fmt"
	"time"
)

// #region learning-state
// LearningState holds the ranking values being learned together with the
// session counters and diagnostics. Ranking values change only through
// the learner (internal/update).
type LearningState struct {
	Constraints []string
	Values      []float64

	Trials  int
	Changes int

	// History[c][k] is constraint c's ranking value after trial k+1.
	History [][]float64
	// Learned is the set of overt forms matched at least once.
	Learned map[string]bool
}

// NewLearningState starts a state from the given names and values.
// values is copied.
func NewLearningState(names []string, values []float64) *LearningState {
	st := &LearningState{
		Constraints: make([]string, len(names)),
		Values:      make([]float64, len(values)),
		History:     make([][]float64, len(names)),
		Learned:     make(map[string]bool),
	}
	copy(st.Constraints, names)
	copy(st.Values, values)
	return st
}

// Snapshot returns a copy of the current ranking values.
func (s *LearningState) Snapshot() []float64 {
	out := make([]float64, len(s.Values))
	copy(out, s.Values)
	return out
}

// Value returns the ranking value of the named constraint.
func (s *LearningState) Value(name string) (float64, bool) {
	for i, n := range s.Constraints {
		if n == name {
			return s.Values[i], true
		}
	}
	return 0, false
}

// RecordHistory appends the current values to every constraint's track.
func (s *LearningState) RecordHistory() {
	for i, v := range s.Values {
		s.History[i] = append(s.History[i], v)
	}
}

// #endregion learning-state

// #region snapshot-record
// SnapshotRecord is a persisted, versioned copy of a grammar's ranking
// values.
type SnapshotRecord struct {
	VersionID   string
	ParentID    string
	SessionID   string
	Constraints []string
	Values      []float64
	CreatedAt   time.Time
	MetricsJSON string
}

// Ranking returns name/value pairs in declaration order.
func (r SnapshotRecord) Ranking() map[string]float64 {
	out := make(map[string]float64, len(r.Constraints))
	for i, n := range r.Constraints {
		if i < len(r.Values) {
			out[n] = r.Values[i]
		}
	}
	return out
}

// ValuesFor returns the stored values in the order of names. Every name
// must be present in the snapshot.
func (r SnapshotRecord) ValuesFor(names []string) ([]float64, error) {
	byName := r.Ranking()
	out := make([]float64, len(names))
	for i, n := range names {
		v, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("snapshot %s has no constraint %q", r.VersionID, n)
		}
		out[i] = v
	}
	return out, nil
}

// #endregion snapshot-record

// #region session-record
// SessionRecord describes one learning run.
type SessionRecord struct {
	SessionID   string
	Mode        string // "direct" | "rip"
	GrammarPath string
	CorpusPath  string
	ConfigJSON  string
	CreatedAt   time.Time
}

// #endregion session-record

// #region version-with-summary
// VersionWithSummary pairs a snapshot with the trial-log counts of the
// session that produced it.
type VersionWithSummary struct {
	SnapshotRecord
	Mode    string
	Trials  int
	Changes int
}

// #endregion version-with-summary
