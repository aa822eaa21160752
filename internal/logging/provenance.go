package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// #region log-trial
// LogTrial writes a trial entry to the trial_log table.
func LogTrial(db *sql.DB, entry TrialEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	matched := 0
	if entry.Matched {
		matched = 1
	}

	_, err := db.Exec(
		`INSERT INTO trial_log (session_id, trial, overt, predicted, target, matched, decision, reason, detail_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.Trial,
		entry.Overt,
		nullIfEmpty(entry.Predicted),
		nullIfEmpty(entry.Target),
		matched,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(entry.DetailJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log trial: %w", err)
	}
	return nil
}

// #endregion log-trial

// #region read-trials
// Mismatches returns the logged trials of a session that did not match,
// oldest first.
func Mismatches(db *sql.DB, sessionID string) ([]TrialEntry, error) {
	rows, err := db.Query(
		`SELECT trial, overt, predicted, target, decision, reason, detail_json, created_at
		 FROM trial_log WHERE session_id = ? AND matched = 0 ORDER BY trial`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query trials: %w", err)
	}
	defer rows.Close()

	var out []TrialEntry
	for rows.Next() {
		e := TrialEntry{SessionID: sessionID}
		var predicted, target, reason, detail sql.NullString
		var createdStr string
		if err := rows.Scan(&e.Trial, &e.Overt, &predicted, &target, &e.Decision, &reason, &detail, &createdStr); err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		e.Predicted = predicted.String
		e.Target = target.String
		e.Reason = reason.String
		e.DetailJSON = detail.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DecodeRecord unmarshals the detail column of a logged trial.
func DecodeRecord(entry TrialEntry) (TrialRecord, error) {
	var rec TrialRecord
	if entry.DetailJSON == "" {
		return rec, fmt.Errorf("trial %d has no detail", entry.Trial)
	}
	if err := json.Unmarshal([]byte(entry.DetailJSON), &rec); err != nil {
		return rec, fmt.Errorf("decode trial %d: %w", entry.Trial, err)
	}
	return rec, nil
}

// #endregion read-trials

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
