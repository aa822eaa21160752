package state

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	mode          TEXT NOT NULL,
	grammar_path  TEXT,
	corpus_path   TEXT,
	config_json   TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS grammar_versions (
	version_id     TEXT PRIMARY KEY,
	parent_id      TEXT,
	session_id     TEXT,
	constraints    TEXT NOT NULL,
	ranking_values BLOB NOT NULL,
	created_at     TEXT NOT NULL,
	metrics_json   TEXT,
	FOREIGN KEY (parent_id) REFERENCES grammar_versions(version_id),
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE TABLE IF NOT EXISTS trial_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	trial         INTEGER NOT NULL,
	overt         TEXT NOT NULL,
	predicted     TEXT,
	target        TEXT,
	matched       INTEGER NOT NULL,
	decision      TEXT NOT NULL,
	reason        TEXT,
	detail_json   TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE TABLE IF NOT EXISTS active_grammar (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES grammar_versions(version_id)
);
`

// #endregion schema

// #region store-struct
// Store manages sessions and versioned ranking values in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #region sessions
// CreateSession records a new learning run and assigns its id.
func (s *Store) CreateSession(rec SessionRecord) (SessionRecord, error) {
	if rec.SessionID == "" {
		rec.SessionID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, mode, grammar_path, corpus_path, config_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Mode, nullIfEmpty(rec.GrammarPath), nullIfEmpty(rec.CorpusPath),
		nullIfEmpty(rec.ConfigJSON), rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("insert session: %w", err)
	}
	return rec, nil
}

// GetSession retrieves a session by id.
func (s *Store) GetSession(id string) (SessionRecord, error) {
	var rec SessionRecord
	var grammarPath, corpusPath, configJSON sql.NullString
	var createdStr string
	err := s.db.QueryRow(
		`SELECT session_id, mode, grammar_path, corpus_path, config_json, created_at
		 FROM sessions WHERE session_id = ?`, id,
	).Scan(&rec.SessionID, &rec.Mode, &grammarPath, &corpusPath, &configJSON, &createdStr)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("get session %s: %w", id, err)
	}
	rec.GrammarPath = grammarPath.String
	rec.CorpusPath = corpusPath.String
	rec.ConfigJSON = configJSON.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

// #endregion sessions

// #region create-initial
// CreateInitial stores the starting ranking values of a session and makes
// them the active version.
func (s *Store) CreateInitial(sessionID string, names []string, values []float64) (SnapshotRecord, error) {
	rec := SnapshotRecord{
		VersionID:   uuid.New().String(),
		SessionID:   sessionID,
		Constraints: append([]string(nil), names...),
		Values:      append([]float64(nil), values...),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.CommitSnapshot(rec); err != nil {
		return SnapshotRecord{}, err
	}
	return rec, nil
}

// #endregion create-initial

// #region get-current
// GetCurrent reads the active version.
func (s *Store) GetCurrent() (SnapshotRecord, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_grammar WHERE id = 1`).Scan(&versionID)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(versionID)
}

// #endregion get-current

// #region get-version
// GetVersion retrieves a specific version by ID.
func (s *Store) GetVersion(id string) (SnapshotRecord, error) {
	row := s.db.QueryRow(
		`SELECT version_id, parent_id, session_id, constraints, ranking_values, created_at, metrics_json
		 FROM grammar_versions WHERE version_id = ?`, id,
	)
	rec, err := scanSnapshot(row)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return rec, nil
}

// #endregion get-version

// #region commit-snapshot
// CommitSnapshot inserts a new version and updates the active pointer atomically.
func (s *Store) CommitSnapshot(rec SnapshotRecord) error {
	if len(rec.Constraints) != len(rec.Values) {
		return fmt.Errorf("snapshot %s: %d constraints, %d values", rec.VersionID, len(rec.Constraints), len(rec.Values))
	}
	namesJSON, err := json.Marshal(rec.Constraints)
	if err != nil {
		return fmt.Errorf("marshal constraints: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO grammar_versions (version_id, parent_id, session_id, constraints, ranking_values, created_at, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.VersionID, nullIfEmpty(rec.ParentID), nullIfEmpty(rec.SessionID), string(namesJSON),
		encodeValues(rec.Values), rec.CreatedAt.Format(time.RFC3339Nano), nullIfEmpty(rec.MetricsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_grammar (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		rec.VersionID,
	)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}

	return tx.Commit()
}

// #endregion commit-snapshot

// #region rollback
// Rollback sets the active pointer to a previous version.
func (s *Store) Rollback(targetVersionID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM grammar_versions WHERE version_id = ?`, targetVersionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("version %s not found", targetVersionID)
	}

	_, err = s.db.Exec(`UPDATE active_grammar SET version_id = ? WHERE id = 1`, targetVersionID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list-versions
// ListVersions returns the most recent versions, newest first. A negative
// limit returns every version.
func (s *Store) ListVersions(limit int) ([]SnapshotRecord, error) {
	rows, err := s.db.Query(
		`SELECT version_id, parent_id, session_id, constraints, ranking_values, created_at, metrics_json
		 FROM grammar_versions ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []SnapshotRecord
	for rows.Next() {
		rec, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListVersionsWithSummary is ListVersions joined with the session mode
// and trial-log counts.
func (s *Store) ListVersionsWithSummary(limit int) ([]VersionWithSummary, error) {
	rows, err := s.db.Query(
		`SELECT v.version_id, v.parent_id, v.session_id, v.constraints, v.ranking_values, v.created_at, v.metrics_json,
		        COALESCE(s.mode, ''),
		        (SELECT COUNT(*) FROM trial_log t WHERE t.session_id = v.session_id),
		        (SELECT COUNT(*) FROM trial_log t WHERE t.session_id = v.session_id AND t.matched = 0)
		 FROM grammar_versions v LEFT JOIN sessions s ON s.session_id = v.session_id
		 ORDER BY v.created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []VersionWithSummary
	for rows.Next() {
		var vs VersionWithSummary
		rec, err := scanSnapshot(rows, &vs.Mode, &vs.Trials, &vs.Changes)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		vs.SnapshotRecord = rec
		out = append(out, vs)
	}
	return out, rows.Err()
}

// #endregion list-versions

// #region scan
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanSnapshot reads the seven grammar_versions columns, then any extra
// destinations the query selects after them.
func scanSnapshot(sc scanner, extra ...interface{}) (SnapshotRecord, error) {
	var rec SnapshotRecord
	var parentID, sessionID, metricsJSON sql.NullString
	var namesJSON, createdStr string
	var blob []byte

	dest := []interface{}{&rec.VersionID, &parentID, &sessionID, &namesJSON, &blob, &createdStr, &metricsJSON}
	if err := sc.Scan(append(dest, extra...)...); err != nil {
		return SnapshotRecord{}, err
	}
	rec.ParentID = parentID.String
	rec.SessionID = sessionID.String
	rec.MetricsJSON = metricsJSON.String
	if err := json.Unmarshal([]byte(namesJSON), &rec.Constraints); err != nil {
		return SnapshotRecord{}, fmt.Errorf("unmarshal constraints: %w", err)
	}
	rec.Values = decodeValues(blob)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

// #endregion scan

// #region value-encoding
func encodeValues(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeValues(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion value-encoding
