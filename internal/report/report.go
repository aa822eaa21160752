package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/danielpatrickdp/otgla/internal/eval"
	"github.com/danielpatrickdp/otgla/internal/session"
)

// Report is everything written about one learning run.
type Report struct {
	Summary    session.Summary
	Plasticity float64
	NoiseSigma float64
	// Eval is optional.
	Eval *eval.EvalResult
}

// Write renders r as a plain-text report.
func Write(w io.Writer, r Report) error {
	s := r.Summary
	title := "OT-GLA learning results"
	if s.Mode == "rip" {
		title = "RIP/OT-GLA learning results"
	}
	noise := "No noise"
	if r.NoiseSigma > 0 {
		noise = formatFloat(r.NoiseSigma)
	}

	fmt.Fprintln(w, title)
	fmt.Fprintf(w, "Grammar changed %s/%s times\n", humanize.Comma(int64(s.Changes)), humanize.Comma(int64(s.Trials)))
	if s.Skipped > 0 {
		fmt.Fprintf(w, "Skipped %s unknown forms\n", humanize.Comma(int64(s.Skipped)))
	}
	fmt.Fprintf(w, "Plasticity: %s\n", formatFloat(r.Plasticity))
	fmt.Fprintf(w, "Noise: %s\n\n", noise)

	fmt.Fprintln(w, "Constraints and ranking values")
	order := make([]int, len(s.Constraints))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return s.Values[order[a]] > s.Values[order[b]] })
	table := newTable(w, "Constraint", "Value")
	for _, i := range order {
		table.Append([]string{s.Constraints[i], formatFloat(s.Values[i])})
	}
	table.Render()

	if len(s.Failed) > 0 {
		fmt.Fprintln(w, "\nOvert forms that were never learned:")
		for _, form := range s.Failed {
			fmt.Fprintln(w, form)
		}
	}

	if r.Eval != nil {
		WriteEval(w, *r.Eval, s.Mode == "rip")
	}
	return nil
}

// WriteEval renders the evaluation section of a report.
func WriteEval(w io.Writer, e eval.EvalResult, rip bool) {
	fmt.Fprintf(w, "\nEvaluation errors: %s of %s samples (%.2f%%)\n",
		humanize.Comma(int64(len(e.Errors))), humanize.Comma(int64(e.Samples)), 100*e.ErrorRate)
	if len(e.Errors) == 0 {
		return
	}
	header := []string{"Target", "Predicted"}
	if rip {
		header = append(header, "Predicted parse")
	}
	table := newTable(w, header...)
	for _, er := range e.Errors {
		row := []string{er.Target, er.Predicted}
		if rip {
			row = append(row, er.PredictedParse)
		}
		table.Append(row)
	}
	table.Render()
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Filename returns a timestamped report name such as
// "results_261019_143005.txt".
func Filename(label string, now time.Time) string {
	return fmt.Sprintf("%s_%s.txt", label, now.Format("060102_150405"))
}

// WriteFile writes r to a timestamped file in dir and returns its path.
func WriteFile(dir, label string, r Report) (string, error) {
	path := filepath.Join(dir, Filename(label, time.Now()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	if err := Write(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close report: %w", err)
	}
	return path, nil
}
