package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"sort"

	"github.com/danielpatrickdp/otgla/internal/config"
	"github.com/danielpatrickdp/otgla/internal/grammar"
	"github.com/danielpatrickdp/otgla/internal/logging"
	"github.com/danielpatrickdp/otgla/internal/session"
	"github.com/danielpatrickdp/otgla/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the otgla database (DB mode)")
	sessionID := flag.String("session", "", "session to replay (default: the active grammar's session)")
	fixturePath := flag.String("fixture", "", "path to fixture YAML (fixture mode)")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/otgla.db [--session id]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.yaml")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath, *sessionID)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region db-mode

// runDBMode re-learns a stored session from its grammar, corpus and
// configuration and compares the mismatched trials and final ranking with
// what was logged.
func runDBMode(dbPath, sessionID string) int {
	store, err := state.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer store.Close()

	if sessionID == "" {
		cur, err := store.GetCurrent()
		if err != nil {
			fmt.Fprintf(os.Stderr, "find active session: %v\n", err)
			return 2
		}
		sessionID = cur.SessionID
	}

	sess, err := store.GetSession(sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "get session: %v\n", err)
		return 2
	}
	cfg := config.Default()
	if err := json.Unmarshal([]byte(sess.ConfigJSON), cfg); err != nil {
		fmt.Fprintf(os.Stderr, "decode session config: %v\n", err)
		return 2
	}

	g, err := grammar.LoadFile(sess.GrammarPath, grammar.Options{RIP: sess.Mode == "rip", InitialValue: cfg.Grammar.InitialValue})
	if err != nil {
		fmt.Fprintf(os.Stderr, "load grammar: %v\n", err)
		return 2
	}
	corpus, err := session.LoadCorpus(sess.CorpusPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load corpus: %v\n", err)
		return 2
	}

	logged, err := logging.Mismatches(store.DB(), sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read trial log: %v\n", err)
		return 2
	}

	sc := cfg.SessionConfig()
	sc.PrintCycle = 0
	seed := cfg.Learning.Seed
	st := state.NewLearningState(g.Names(), g.Values())
	s := session.New(g, st, sc, rand.NewPCG(seed, seed+1))
	results, err := s.Run(context.Background(), corpus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	expected := make(map[int]string, len(logged))
	for _, e := range logged {
		expected[e.Trial] = e.Predicted
	}
	replayed := make(map[int]string)
	for _, r := range results {
		if !r.Matched && !r.Skipped {
			replayed[r.Trial] = r.Predicted.ID
		}
	}
	code := printComparison(expected, replayed)

	if cur, err := store.GetCurrent(); err == nil && cur.SessionID == sessionID {
		if diff := maxValueDiff(cur, s.Summary()); diff > 1e-9 {
			fmt.Printf("final ranking differs from snapshot %s by up to %g\n", cur.VersionID, diff)
			code = 1
		} else {
			fmt.Printf("final ranking matches snapshot %s\n", cur.VersionID)
		}
	}
	return code
}

func maxValueDiff(snap state.SnapshotRecord, sum session.Summary) float64 {
	stored := snap.Ranking()
	var worst float64
	for i, n := range sum.Constraints {
		v, ok := stored[n]
		if !ok {
			return math.Inf(1)
		}
		worst = math.Max(worst, math.Abs(v-sum.Values[i]))
	}
	return worst
}

// #endregion db-mode

// #region fixture-mode

func runFixtureMode(path string) int {
	f, err := session.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	sum, _, err := f.Run(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "run fixture: %v\n", err)
		return 2
	}

	fmt.Printf("%-24s| %s\n", "Constraint", "Value")
	fmt.Printf("%-24s+%s\n", "------------------------", "------------")
	for i, n := range sum.Constraints {
		fmt.Printf("%-24s| %.3f\n", n, sum.Values[i])
	}
	fmt.Printf("\nTrials: %d, changes: %d, never learned: %d\n", sum.Trials, sum.Changes, len(sum.Failed))

	problems := f.Check(sum)
	for _, p := range problems {
		fmt.Printf("FAIL %s\n", p)
	}
	if len(problems) > 0 {
		return 1
	}
	fmt.Println("OK")
	return 0
}

// #endregion fixture-mode

// #region output

// printComparison outputs one row per trial that mismatched in either run
// and returns the exit code.
func printComparison(expected, replayed map[int]string) int {
	trials := make(map[int]bool, len(expected)+len(replayed))
	for t := range expected {
		trials[t] = true
	}
	for t := range replayed {
		trials[t] = true
	}
	order := make([]int, 0, len(trials))
	for t := range trials {
		order = append(order, t)
	}
	sort.Ints(order)

	fmt.Printf("%-8s| %-24s| %-24s| %s\n", "Trial", "Logged", "Replayed", "Match")
	fmt.Printf("%-8s+%-25s+%-25s+%s\n", "--------", "-------------------------", "-------------------------", "------")

	diverge := 0
	for _, t := range order {
		exp, okE := expected[t]
		got, okR := replayed[t]
		match := "OK"
		if okE != okR || exp != got {
			match = "DIFF"
			diverge++
		}
		fmt.Printf("%-8d| %-24s| %-24s| %s\n", t, orDash(exp, okE), orDash(got, okR), match)
	}

	fmt.Printf("\nSummary: %d mismatched trials, %d match, %d diverge\n", len(order), len(order)-diverge, diverge)
	if diverge > 0 {
		return 1
	}
	return 0
}

func orDash(s string, ok bool) string {
	if !ok {
		return "-"
	}
	return s
}

// #endregion output
