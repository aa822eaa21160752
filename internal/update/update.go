package update

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/danielpatrickdp/otgla/internal/grammar"
	"github.com/danielpatrickdp/otgla/internal/state"
)

// #region classify
// Classify compares the violation profiles of the target and the
// predicted candidate constraint by constraint.
func Classify(target, predicted grammar.Profile) []Class {
	out := make([]Class, len(target))
	for i := range target {
		switch {
		case predicted[i] > target[i]:
			out[i] = Promote
		case target[i] > predicted[i]:
			out[i] = Demote
		}
	}
	return out
}

// #endregion classify

// #region learn
// Learn applies one GLA step to st: constraints that prefer the target are
// raised, constraints that prefer the predicted candidate are lowered.
// Equal profiles leave st untouched. Learn is the only code that changes
// ranking values after a session starts.
func Learn(st *state.LearningState, target, predicted grammar.Profile, cfg Config) Result {
	if len(target) != len(st.Values) || len(predicted) != len(st.Values) {
		return Result{Decision: Decision{
			Action: "no_op",
			Reason: fmt.Sprintf("profile length %d/%d does not match %d constraints", len(target), len(predicted), len(st.Values)),
		}}
	}

	classes := Classify(target, predicted)
	var promoted, demoted []int
	for i, c := range classes {
		switch c {
		case Promote:
			promoted = append(promoted, i)
		case Demote:
			demoted = append(demoted, i)
		}
	}

	up := cfg.Plasticity
	if cfg.Promote == PromoteSplit && len(promoted) > 0 {
		up = cfg.Plasticity / float64(len(promoted))
	}

	before := st.Snapshot()
	metrics := Metrics{}
	for _, i := range promoted {
		st.Values[i] += up
		metrics.Promoted = append(metrics.Promoted, st.Constraints[i])
	}
	for _, i := range demoted {
		st.Values[i] -= cfg.Plasticity
		metrics.Demoted = append(metrics.Demoted, st.Constraints[i])
	}
	metrics.DeltaNorm = floats.Distance(st.Values, before, 2)

	decision := Decision{Action: "no_op", Reason: "no ranking change"}
	if metrics.DeltaNorm > 0 {
		decision = Decision{
			Action: "commit",
			Reason: fmt.Sprintf("promoted: %v, demoted: %v, delta norm: %.6f", metrics.Promoted, metrics.Demoted, metrics.DeltaNorm),
		}
	}

	return Result{Decision: decision, Metrics: metrics}
}

// #endregion learn
