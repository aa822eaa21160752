package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/danielpatrickdp/otgla/internal/logging"
	"github.com/danielpatrickdp/otgla/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the otgla database")
	last := flag.Int("last", 20, "show N most recent versions")
	version := flag.String("version", "", "show single version detail")
	mismatches := flag.String("mismatches", "", "list the mismatched trials of a session")
	rollback := flag.String("rollback", "", "make this version the active grammar")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/otgla.db [--last N] [--version id] [--mismatches session] [--rollback id] [--json]")
		os.Exit(2)
	}

	store, err := state.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *rollback != "":
		err = store.Rollback(*rollback)
		if err == nil {
			fmt.Printf("active grammar is now %s\n", *rollback)
		}
	case *mismatches != "":
		err = runMismatchMode(store, *mismatches, *jsonOut)
	case *version != "":
		err = runDetailMode(store, *version, *jsonOut)
	default:
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	VersionID string `json:"version_id"`
	ParentID  string `json:"parent_id,omitempty"`
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
	Trials    int    `json:"trials"`
	Changes   int    `json:"changes"`
	Top       string `json:"top"`
	CreatedAt string `json:"created_at"`
}

func runListMode(store *state.Store, last int, jsonOut bool) error {
	versions, err := store.ListVersionsWithSummary(last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(os.Stderr, "no versions found")
		return nil
	}

	// Store returns newest first; print chronologically.
	rows := make([]listRow, len(versions))
	for i, v := range versions {
		rows[len(versions)-1-i] = listRow{
			VersionID: v.VersionID,
			ParentID:  v.ParentID,
			SessionID: v.SessionID,
			Mode:      v.Mode,
			Trials:    v.Trials,
			Changes:   v.Changes,
			Top:       topConstraint(v.SnapshotRecord),
			CreatedAt: v.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Version", "Parent", "Session", "Mode", "Trials", "Changes", "Top", "Time"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, r := range rows {
		table.Append([]string{
			shortID(r.VersionID),
			shortID(r.ParentID),
			shortID(r.SessionID),
			r.Mode,
			humanize.Comma(int64(r.Trials)),
			humanize.Comma(int64(r.Changes)),
			r.Top,
			r.CreatedAt,
		})
	}
	table.Render()
	return nil
}

// #endregion list-mode

// #region detail-mode

type rankedValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type detailOutput struct {
	VersionID string          `json:"version_id"`
	ParentID  string          `json:"parent_id"`
	SessionID string          `json:"session_id"`
	CreatedAt string          `json:"created_at"`
	Ranking   []rankedValue   `json:"ranking"`
	Metrics   json.RawMessage `json:"metrics,omitempty"`
}

func runDetailMode(store *state.Store, versionID string, jsonOut bool) error {
	v, err := store.GetVersion(versionID)
	if err != nil {
		return err
	}

	out := detailOutput{
		VersionID: v.VersionID,
		ParentID:  v.ParentID,
		SessionID: v.SessionID,
		CreatedAt: v.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Ranking:   sortedRanking(v),
	}
	if v.MetricsJSON != "" && json.Valid([]byte(v.MetricsJSON)) {
		out.Metrics = json.RawMessage(v.MetricsJSON)
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Version:  %s\n", out.VersionID)
	fmt.Printf("Parent:   %s\n", out.ParentID)
	fmt.Printf("Session:  %s\n", out.SessionID)
	fmt.Printf("Created:  %s\n", out.CreatedAt)
	if out.Metrics != nil {
		fmt.Printf("Metrics:  %s\n", string(out.Metrics))
	}

	fmt.Printf("\nRanking:\n")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Constraint", "Value"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, r := range out.Ranking {
		table.Append([]string{r.Name, strconv.FormatFloat(r.Value, 'f', -1, 64)})
	}
	table.Render()
	return nil
}

// #endregion detail-mode

// #region mismatch-mode

type mismatchRow struct {
	Trial     int      `json:"trial"`
	Overt     string   `json:"overt"`
	Predicted string   `json:"predicted"`
	Target    string   `json:"target"`
	Promoted  []string `json:"promoted,omitempty"`
	Demoted   []string `json:"demoted,omitempty"`
}

func runMismatchMode(store *state.Store, sessionID string, jsonOut bool) error {
	entries, err := logging.Mismatches(store.DB(), sessionID)
	if err != nil {
		return err
	}
	rows := make([]mismatchRow, 0, len(entries))
	for _, e := range entries {
		row := mismatchRow{Trial: e.Trial, Overt: e.Overt, Predicted: e.Predicted, Target: e.Target}
		if rec, err := logging.DecodeRecord(e); err == nil {
			row.Promoted = rec.Promoted
			row.Demoted = rec.Demoted
		}
		rows = append(rows, row)
	}

	if jsonOut {
		return printJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "no mismatches logged")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Trial", "Overt", "Predicted", "Target", "Promoted", "Demoted"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, r := range rows {
		table.Append([]string{
			strconv.Itoa(r.Trial), r.Overt, r.Predicted, r.Target,
			fmt.Sprint(r.Promoted), fmt.Sprint(r.Demoted),
		})
	}
	table.Render()
	fmt.Printf("\n%s mismatched trials\n", humanize.Comma(int64(len(rows))))
	return nil
}

// #endregion mismatch-mode

// #region output

func sortedRanking(v state.SnapshotRecord) []rankedValue {
	out := make([]rankedValue, 0, len(v.Constraints))
	for name, val := range v.Ranking() {
		out = append(out, rankedValue{Name: name, Value: val})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func topConstraint(v state.SnapshotRecord) string {
	r := sortedRanking(v)
	if len(r) == 0 {
		return ""
	}
	return r[0].Name
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
