package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/otgla/internal/config"
	"github.com/danielpatrickdp/otgla/internal/eval"
	"github.com/danielpatrickdp/otgla/internal/grammar"
	"github.com/danielpatrickdp/otgla/internal/logging"
	"github.com/danielpatrickdp/otgla/internal/report"
	"github.com/danielpatrickdp/otgla/internal/session"
	"github.com/danielpatrickdp/otgla/internal/state"
)

// #region main
func main() {
	configPath := flag.String("config", envOr("GLA_CONFIG", ""), "YAML or JSON config file")
	grammarPath := flag.String("grammar", "", "grammar file (Praat OTGrammar text)")
	corpusPath := flag.String("corpus", "", "corpus file, one overt form per line")
	rip := flag.Bool("rip", false, "learn with robust interpretive parsing")
	initValue := flag.Float64("init", 0, "start every constraint at this value instead of the file values")
	dbPath := flag.String("db", "", "SQLite database for sessions and snapshots (\"-\" disables)")
	seed := flag.Uint64("seed", 0, "random seed")
	passes := flag.Int("passes", 0, "passes over the corpus")
	noise := flag.Float64("noise", 0, "evaluation noise sigma (0 disables)")
	plasticity := flag.Float64("plasticity", 0, "learning step")
	reportDir := flag.String("report-dir", "", "write a timestamped report file here")
	samples := flag.Int("eval", -1, "held-out evaluation samples after learning (0 disables)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		log.Fatalf("environment: %v", err)
	}

	// Flags given on the command line win over file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "grammar":
			cfg.Grammar.Path = *grammarPath
		case "corpus":
			cfg.Corpus = *corpusPath
		case "rip":
			cfg.Grammar.RIP = *rip
		case "init":
			cfg.Grammar.InitialValue = grammar.InitialValue(*initValue)
		case "db":
			cfg.Store.DBPath = *dbPath
		case "seed":
			cfg.Learning.Seed = *seed
		case "passes":
			cfg.Learning.Passes = *passes
		case "noise":
			cfg.Learning.NoiseSigma = *noise
		case "plasticity":
			cfg.Learning.Plasticity = *plasticity
		case "report-dir":
			cfg.Report.Dir = *reportDir
		case "eval":
			cfg.Eval.Samples = *samples
		}
	})

	if cfg.Grammar.Path == "" || cfg.Corpus == "" {
		fmt.Fprintln(os.Stderr, "usage: gla --grammar path --corpus path [--rip] [--config file] [--db path] [--seed N]")
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid configuration: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region run
func run(ctx context.Context, cfg *config.Config) error {
	g, err := grammar.LoadFile(cfg.Grammar.Path, grammar.Options{RIP: cfg.Grammar.RIP, InitialValue: cfg.Grammar.InitialValue})
	if err != nil {
		return err
	}
	corpus, err := session.LoadCorpus(cfg.Corpus)
	if err != nil {
		return err
	}
	log.Printf("grammar: %d constraints, %d inputs | corpus: %d forms", len(g.Constraints), g.Inputs.Len(), len(corpus))

	st := state.NewLearningState(g.Names(), g.Values())
	seed := cfg.Learning.Seed
	s := session.New(g, st, cfg.SessionConfig(), rand.NewPCG(seed, seed+1))

	var store *state.Store
	var sess state.SessionRecord
	var initial state.SnapshotRecord
	if cfg.Store.DBPath != "" && cfg.Store.DBPath != "-" {
		store, err = state.NewStore(cfg.Store.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		sess, err = store.CreateSession(state.SessionRecord{
			Mode:        modeName(g),
			GrammarPath: cfg.Grammar.Path,
			CorpusPath:  cfg.Corpus,
			ConfigJSON:  cfg.JSON(),
		})
		if err != nil {
			return err
		}
		initial, err = store.CreateInitial(sess.SessionID, st.Constraints, st.Snapshot())
		if err != nil {
			return err
		}
		s.SetRecorder(trialLogger(store, sess.SessionID, st, cfg.Learning.NoiseSigma))
		log.Printf("session %s | db %s", sess.SessionID, cfg.Store.DBPath)
	}

	start := time.Now()
	_, runErr := s.Run(ctx, corpus)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("learning: %w", runErr)
	}
	if runErr != nil {
		log.Printf("interrupted, keeping the grammar learned so far")
	}
	sum := s.Summary()
	log.Printf("learned in %s: %d trials, %d changes", time.Since(start).Round(time.Millisecond), sum.Trials, sum.Changes)

	if store != nil {
		metrics, _ := json.Marshal(map[string]interface{}{
			"trials":  sum.Trials,
			"changes": sum.Changes,
			"skipped": sum.Skipped,
			"failed":  sum.Failed,
		})
		final := state.SnapshotRecord{
			VersionID:   uuid.New().String(),
			ParentID:    initial.VersionID,
			SessionID:   sess.SessionID,
			Constraints: sum.Constraints,
			Values:      sum.Values,
			MetricsJSON: string(metrics),
		}
		if err := store.CommitSnapshot(final); err != nil {
			return fmt.Errorf("commit snapshot: %w", err)
		}
		log.Printf("snapshot %s committed", final.VersionID)
	}

	rep := report.Report{
		Summary:    sum,
		Plasticity: cfg.Learning.Plasticity,
		NoiseSigma: cfg.Learning.NoiseSigma,
	}
	if cfg.Eval.Samples > 0 && runErr == nil {
		res, err := eval.NewEvalHarness(cfg.EvalConfig()).Run(ctx, g, sum.Values, corpus)
		if err != nil {
			return fmt.Errorf("evaluate: %w", err)
		}
		rep.Eval = &res
	}

	if err := report.Write(os.Stdout, rep); err != nil {
		return err
	}
	if cfg.Report.Dir != "" {
		path, err := report.WriteFile(cfg.Report.Dir, cfg.Report.Label, rep)
		if err != nil {
			return err
		}
		fmt.Printf("\nResults file: %s\n", path)
	}
	return nil
}

// #endregion run

// #region helpers
// trialLogger persists every trial to the trial_log table.
func trialLogger(store *state.Store, sessionID string, st *state.LearningState, sigma float64) session.Recorder {
	return session.RecorderFunc(func(r session.TrialResult) error {
		rec := logging.TrialRecord{
			Trial:     r.Trial,
			Overt:     r.Overt,
			Noise:     sigma,
			Ranking:   r.Ranking.Names(st.Constraints),
			Predicted: logging.TrialRecordCand{ID: r.Predicted.ID, Profile: r.Predicted.Profile},
			Target:    logging.TrialRecordCand{ID: r.Target.ID, Profile: r.Target.Profile},
			Promoted:  r.Update.Metrics.Promoted,
			Demoted:   r.Update.Metrics.Demoted,
			DeltaNorm: r.Update.Metrics.DeltaNorm,
			Values:    make(map[string]float64, len(st.Values)),
		}
		for i, n := range st.Constraints {
			rec.Values[n] = st.Values[i]
		}
		detail, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal trial: %w", err)
		}
		return logging.LogTrial(store.DB(), logging.TrialEntry{
			SessionID:  sessionID,
			Trial:      r.Trial,
			Overt:      r.Overt,
			Predicted:  r.Predicted.ID,
			Target:     r.Target.ID,
			Matched:    r.Matched,
			Decision:   r.Update.Decision.Action,
			Reason:     r.Update.Decision.Reason,
			DetailJSON: string(detail),
		})
	})
}

func modeName(g *grammar.Grammar) string {
	if g.RIP {
		return "rip"
	}
	return "direct"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
