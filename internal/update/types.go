package update

// #region class
// Class is how one constraint takes part in an error-driven update.
type Class int

const (
	// Neutral constraints do not distinguish the two candidates.
	Neutral Class = iota
	// Promote marks constraints the predicted (wrong) candidate violates more.
	Promote
	// Demote marks constraints the target candidate violates more.
	Demote
)

func (c Class) String() string {
	switch c {
	case Promote:
		return "promote"
	case Demote:
		return "demote"
	default:
		return "neutral"
	}
}

// #endregion class

// #region decision
// Decision records what the update function decided.
type Decision struct {
	Action string // "commit" | "no_op"
	Reason string
}

// #endregion decision

// #region metrics
// Metrics captures telemetry from an update cycle.
type Metrics struct {
	DeltaNorm float64
	Promoted  []string
	Demoted   []string
}

// #endregion metrics

// #region update-config
// PromoteMode selects how plasticity is shared among promoted constraints.
type PromoteMode string

const (
	// PromoteFull adds the full plasticity to every promoted constraint.
	PromoteFull PromoteMode = "full"
	// PromoteSplit divides the plasticity evenly among promoted constraints.
	PromoteSplit PromoteMode = "split"
)

// Config holds the learning parameters for Learn.
type Config struct {
	Plasticity float64     // step size (default 1.0)
	Promote    PromoteMode // default PromoteFull
}

// DefaultUpdateConfig returns the conventional GLA settings.
func DefaultUpdateConfig() Config {
	return Config{
		Plasticity: 1.0,
		Promote:    PromoteFull,
	}
}

// #endregion update-config

// #region update-result
// Result bundles everything returned by Learn().
type Result struct {
	Decision Decision
	Metrics  Metrics
}

// #endregion update-result
