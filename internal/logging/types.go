package logging

import "time"

// #region trial-entry
// TrialEntry is a single row in the trial_log table.
type TrialEntry struct {
	SessionID  string
	Trial      int
	Overt      string
	Predicted  string
	Target     string
	Matched    bool
	Decision   string // "commit" | "no_op"
	Reason     string
	DetailJSON string
	CreatedAt  time.Time
}

// #endregion trial-entry

// #region trial-record
// TrialRecord captures the full evaluation inputs of one trial.
// Serialized as JSON into trial_log.detail_json so a session can be audited.
type TrialRecord struct {
	Trial     int                `json:"trial"`
	Overt     string             `json:"overt"`
	Noise     float64            `json:"noise_sigma"`
	Ranking   []string           `json:"ranking"`
	Predicted TrialRecordCand    `json:"predicted"`
	Target    TrialRecordCand    `json:"target"`
	Promoted  []string           `json:"promoted,omitempty"`
	Demoted   []string           `json:"demoted,omitempty"`
	DeltaNorm float64            `json:"delta_norm"`
	Values    map[string]float64 `json:"values"`
}

// TrialRecordCand is one candidate of a trial as it was compared.
type TrialRecordCand struct {
	ID      string `json:"id"`
	Profile []int  `json:"profile"`
}

// #endregion trial-record
