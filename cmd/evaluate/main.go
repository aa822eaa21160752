package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/danielpatrickdp/otgla/internal/eval"
	"github.com/danielpatrickdp/otgla/internal/grammar"
	"github.com/danielpatrickdp/otgla/internal/report"
	"github.com/danielpatrickdp/otgla/internal/session"
	"github.com/danielpatrickdp/otgla/internal/state"
)

// #region main

func main() {
	defaults := eval.DefaultEvalConfig()
	dbPath := flag.String("db", "", "path to the otgla database")
	version := flag.String("version", "", "grammar version to evaluate (default: active)")
	grammarPath := flag.String("grammar", "", "grammar file (default: the version's session grammar)")
	corpusPath := flag.String("corpus", "", "target forms (default: the version's session corpus)")
	samples := flag.Int("samples", defaults.Samples, "number of evaluation samples")
	noise := flag.Float64("noise", defaults.NoiseSigma, "evaluation noise sigma")
	workers := flag.Int("workers", defaults.Workers, "concurrent evaluation workers")
	seed := flag.Uint64("seed", defaults.Seed, "random seed")
	maxErr := flag.Float64("max-error-rate", defaults.MaxErrorRate, "error rate above which evaluation fails")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" || *samples < 1 {
		fmt.Fprintln(os.Stderr, "usage: evaluate --db path/to/otgla.db [--version id] [--grammar path] [--corpus path] [--samples N] [--noise sigma] [--json]")
		os.Exit(2)
	}

	cfg := eval.EvalConfig{
		Samples:      *samples,
		NoiseSigma:   *noise,
		Workers:      *workers,
		Seed:         *seed,
		MaxErrorRate: *maxErr,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, rip, err := run(ctx, *dbPath, *version, *grammarPath, *corpusPath, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal json: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
	} else {
		report.WriteEval(os.Stdout, res, rip)
		fmt.Printf("\n%s\n", res.Reason)
	}
	if !res.Passed {
		os.Exit(1)
	}
}

// #endregion main

// #region run

func run(ctx context.Context, dbPath, versionID, grammarPath, corpusPath string, cfg eval.EvalConfig) (eval.EvalResult, bool, error) {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return eval.EvalResult{}, false, fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	var snap state.SnapshotRecord
	if versionID == "" {
		snap, err = store.GetCurrent()
	} else {
		snap, err = store.GetVersion(versionID)
	}
	if err != nil {
		return eval.EvalResult{}, false, err
	}

	rip := false
	if grammarPath == "" || corpusPath == "" {
		sess, err := store.GetSession(snap.SessionID)
		if err != nil {
			return eval.EvalResult{}, false, err
		}
		rip = sess.Mode == "rip"
		if grammarPath == "" {
			grammarPath = sess.GrammarPath
		}
		if corpusPath == "" {
			corpusPath = sess.CorpusPath
		}
	} else if sess, err := store.GetSession(snap.SessionID); err == nil {
		rip = sess.Mode == "rip"
	}

	g, err := grammar.LoadFile(grammarPath, grammar.Options{RIP: rip})
	if err != nil {
		return eval.EvalResult{}, false, err
	}
	values, err := snap.ValuesFor(g.Names())
	if err != nil {
		return eval.EvalResult{}, false, err
	}
	targets, err := session.LoadCorpus(corpusPath)
	if err != nil {
		return eval.EvalResult{}, false, err
	}

	res, err := eval.NewEvalHarness(cfg).Run(ctx, g, values, targets)
	return res, rip, err
}

// #endregion run
