package eval

// #region eval-config
// EvalConfig controls held-out evaluation of a frozen grammar.
type EvalConfig struct {
	Samples      int     // corpus draws to evaluate (default 1000)
	NoiseSigma   float64 // evaluation noise; 0 evaluates the grammar as ranked
	Workers      int     // concurrent evaluators (default 4)
	Seed         uint64
	MaxErrorRate float64 // fail above this fraction of errors
}

// DefaultEvalConfig returns the defaults used by cmd/evaluate.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		Samples:      1000,
		NoiseSigma:   0,
		Workers:      4,
		Seed:         1,
		MaxErrorRate: 0.05,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region error-record
// ErrorRecord is one sample whose produced form differs from the target.
// PredictedParse is only set for RIP grammars.
type ErrorRecord struct {
	Sample         int    `json:"sample"`
	Target         string `json:"target"`
	Predicted      string `json:"predicted"`
	PredictedParse string `json:"predicted_parse,omitempty"`
}

// #endregion error-record

// #region eval-result
// EvalResult is the output of a held-out evaluation.
type EvalResult struct {
	Passed    bool          `json:"passed"`
	Samples   int           `json:"samples"`
	ErrorRate float64       `json:"error_rate"`
	Errors    []ErrorRecord `json:"errors"`
	// ByForm counts errors per target form.
	ByForm  map[string]int `json:"by_form"`
	Metrics []EvalMetric   `json:"metrics"`
	Reason  string         `json:"reason"`
}

// #endregion eval-result
