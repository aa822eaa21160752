package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/otgla/internal/config"
	"github.com/danielpatrickdp/otgla/internal/session"
	"github.com/danielpatrickdp/otgla/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the otgla database")
	sessionID := flag.String("session", "", "session to export (default: the active grammar's session)")
	outPath := flag.String("out", "", "output fixture YAML path")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/otgla.db --out path/to/fixture.yaml [--session id]")
		os.Exit(2)
	}

	if err := run(*dbPath, *sessionID, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

// runMetrics mirrors the metrics gla stores with the final snapshot.
type runMetrics struct {
	Trials  int      `json:"trials"`
	Changes int      `json:"changes"`
	Failed  []string `json:"failed"`
}

func run(dbPath, sessionID, outPath string) error {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	// The exported outcome is the session's latest snapshot.
	snap, err := latestSnapshot(store, sessionID)
	if err != nil {
		return err
	}
	sess, err := store.GetSession(snap.SessionID)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if err := json.Unmarshal([]byte(sess.ConfigJSON), cfg); err != nil {
		return fmt.Errorf("decode session config: %w", err)
	}
	var m runMetrics
	if snap.MetricsJSON != "" {
		if err := json.Unmarshal([]byte(snap.MetricsJSON), &m); err != nil {
			return fmt.Errorf("decode metrics: %w", err)
		}
	}

	grammarText, err := os.ReadFile(sess.GrammarPath)
	if err != nil {
		return fmt.Errorf("read grammar: %w", err)
	}
	corpus, err := session.LoadCorpus(sess.CorpusPath)
	if err != nil {
		return err
	}

	sum := session.Summary{
		Mode:        sess.Mode,
		Trials:      m.Trials,
		Changes:     m.Changes,
		Constraints: snap.Constraints,
		Values:      snap.Values,
		Failed:      m.Failed,
	}
	desc := fmt.Sprintf("exported from session %s (grammar %s)", sess.SessionID, snap.VersionID)
	f := session.NewFixture(desc, sess.Mode, string(grammarText), cfg.Grammar.InitialValue, corpus, cfg.SessionConfig(), cfg.Learning.Seed, sum)

	if err := session.WriteFixture(outPath, f); err != nil {
		return err
	}
	fmt.Printf("Exported %d corpus forms, %d expectations to %s\n",
		len(corpus), len(f.Expected.Dominates)+len(f.Expected.Learned)+1, outPath)
	return nil
}

func latestSnapshot(store *state.Store, sessionID string) (state.SnapshotRecord, error) {
	if sessionID == "" {
		return store.GetCurrent()
	}
	versions, err := store.ListVersions(-1)
	if err != nil {
		return state.SnapshotRecord{}, err
	}
	for _, v := range versions {
		if v.SessionID == sessionID {
			return v, nil
		}
	}
	return state.SnapshotRecord{}, fmt.Errorf("no versions for session %s", sessionID)
}

// #endregion extract
