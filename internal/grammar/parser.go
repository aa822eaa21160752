package grammar

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// #region patterns
var (
	constraintLine = regexp.MustCompile(`^\s*constraint\s*\[\d+\]:\s*"(.*)"\s*(.*)$`)
	inputLine      = regexp.MustCompile(`^\s*input\s*\[\d+\]:\s*"(.*)"\s*(.*)$`)
	candidateLine  = regexp.MustCompile(`^\s*candidate\s*\[\d+\]:\s*"(.*)"\s*(.*)$`)

	// ripDescription matches "[overt] ... /parse/", e.g. `[L1 L] \-> /(L1 L)/`.
	ripDescription = regexp.MustCompile(`^\s*(\[[^\[\]]*\]).*?(/[^/]*/)\s*$`)
)

// #endregion patterns

// #region options
// Options controls how a grammar is built from text.
type Options struct {
	// RIP parses candidate descriptions as "[overt] ... /parse/" pairs and
	// builds the overt-indexed tableaux.
	RIP bool
	// InitialValue, when non-nil, replaces every ranking value in the file.
	InitialValue *float64
}

// InitialValue is a convenience for Options.InitialValue.
func InitialValue(v float64) *float64 {
	return &v
}

// #endregion options

// #region load
// LoadFile reads and parses a grammar file.
func LoadFile(path string, opts Options) (*Grammar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open grammar %s: %w", path, err)
	}
	defer f.Close()

	g, err := Parse(f, opts)
	if err != nil {
		return nil, fmt.Errorf("parse grammar %s: %w", path, err)
	}
	return g, nil
}

// ParseString parses grammar text held in memory.
func ParseString(text string, opts Options) (*Grammar, error) {
	return Parse(strings.NewReader(text), opts)
}

// #endregion load

// #region parse
// block tracks the competition currently being read.
type block struct {
	form     string
	line     int
	declared int // Praat's candidate count, -1 when absent
	cands    int
}

type parser struct {
	opts  Options
	g     *Grammar
	seen  map[string]bool
	cur   *block
	forms map[string]bool
}

// Parse reads Praat OTGrammar text and returns the grammar it describes.
// Lines that are neither constraint, input nor candidate declarations are
// ignored.
func Parse(r io.Reader, opts Options) (*Grammar, error) {
	p := &parser{
		opts: opts,
		g: &Grammar{
			RIP:     opts.RIP,
			Inputs:  newTableauSet(),
			inputOf: make(map[string]string),
		},
		seen:  make(map[string]bool),
		forms: make(map[string]bool),
	}
	if opts.RIP {
		p.g.Overts = newTableauSet()
		p.g.InputOverts = newTableauSet()
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := p.line(lineNo, sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read grammar: %w", err)
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	return p.g, nil
}

func (p *parser) line(n int, text string) error {
	if m := constraintLine.FindStringSubmatch(text); m != nil {
		return p.constraint(n, m[1], m[2])
	}
	if m := inputLine.FindStringSubmatch(text); m != nil {
		return p.input(n, m[1], m[2])
	}
	if m := candidateLine.FindStringSubmatch(text); m != nil {
		return p.candidate(n, m[1], m[2])
	}
	return nil
}

func (p *parser) constraint(n int, name, rest string) error {
	if p.g.Inputs.Len() > 0 || p.cur != nil {
		return formatErrorf(n, "constraint %q declared after the first input", name)
	}
	if p.seen[name] {
		return formatErrorf(n, "duplicate constraint %q", name)
	}
	p.seen[name] = true

	c := Constraint{Name: name}
	fields := strings.Fields(rest)
	switch {
	case len(fields) > 0:
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return formatErrorf(n, "constraint %q: bad ranking value %q", name, fields[0])
		}
		c.Value = v
	case p.opts.InitialValue == nil:
		return formatErrorf(n, "constraint %q has no ranking value", name)
	}
	if p.opts.InitialValue != nil {
		c.Value = *p.opts.InitialValue
	}
	p.g.Constraints = append(p.g.Constraints, c)
	return nil
}

func (p *parser) input(n int, form, rest string) error {
	if len(p.g.Constraints) == 0 {
		return formatErrorf(n, "input %q declared before any constraint", form)
	}
	if p.cur != nil {
		if p.cur.cands == 0 {
			return formatErrorf(n, "more than one input declaration in block: %q has no candidates before %q", p.cur.form, form)
		}
		if err := p.close(); err != nil {
			return err
		}
	}
	if p.forms[form] {
		return formatErrorf(n, "duplicate input %q", form)
	}
	p.forms[form] = true

	b := &block{form: form, line: n, declared: -1}
	if fields := strings.Fields(rest); len(fields) > 0 {
		if k, err := strconv.Atoi(fields[0]); err == nil {
			b.declared = k
		}
	}
	p.cur = b
	p.g.Inputs.tableau(form)
	if p.g.RIP {
		p.g.InputOverts.tableau(form)
	}
	return nil
}

func (p *parser) candidate(n int, desc, rest string) error {
	if p.cur == nil {
		return formatErrorf(n, "candidate %q has no input declaration", desc)
	}
	prof, err := p.profile(n, rest)
	if err != nil {
		return err
	}
	p.cur.cands++

	if !p.g.RIP {
		if err := p.g.Inputs.tableau(p.cur.form).add(Candidate{ID: desc, Profile: prof}); err != nil {
			return formatErrorf(n, "%v", err)
		}
		if _, ok := p.g.inputOf[desc]; !ok {
			p.g.inputOf[desc] = p.cur.form
		}
		return nil
	}

	m := ripDescription.FindStringSubmatch(desc)
	if m == nil {
		return formatErrorf(n, "candidate %q does not look like an RIP candidate ([overt] ... /parse/)", desc)
	}
	overt, parse := m[1], m[2]

	if err := p.g.Inputs.tableau(p.cur.form).add(Candidate{ID: parse, Overt: overt, Parse: parse, Profile: prof}); err != nil {
		return formatErrorf(n, "%v", err)
	}
	if err := p.g.Overts.tableau(overt).add(Candidate{ID: parse, Overt: overt, Parse: parse, Profile: prof}); err != nil {
		return formatErrorf(n, "%v", err)
	}
	pair := overt + " " + parse
	if err := p.g.InputOverts.tableau(p.cur.form).add(Candidate{ID: pair, Overt: overt, Parse: parse, Profile: prof}); err != nil {
		return formatErrorf(n, "%v", err)
	}
	if _, ok := p.g.inputOf[overt]; !ok {
		p.g.inputOf[overt] = p.cur.form
	}
	return nil
}

// profile parses the violation vector that follows a candidate description.
func (p *parser) profile(n int, rest string) (Profile, error) {
	fields := strings.Fields(rest)
	if len(fields) != len(p.g.Constraints) {
		return nil, formatErrorf(n, "violation vector has %d entries, grammar has %d constraints", len(fields), len(p.g.Constraints))
	}
	prof := make(Profile, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil || v < 0 {
			return nil, formatErrorf(n, "bad violation count %q for constraint %q", f, p.g.Constraints[i].Name)
		}
		prof[i] = v
	}
	return prof, nil
}

// close validates the current block against its declared candidate count.
func (p *parser) close() error {
	b := p.cur
	p.cur = nil
	if b.declared >= 0 && b.declared != b.cands {
		return formatErrorf(b.line, "input %q declares %d candidates, found %d", b.form, b.declared, b.cands)
	}
	return nil
}

func (p *parser) finish() error {
	if len(p.g.Constraints) == 0 {
		return formatErrorf(0, "grammar declares no constraints")
	}
	if p.cur == nil {
		return formatErrorf(0, "grammar declares no tableaux")
	}
	if p.cur.cands == 0 {
		return formatErrorf(p.cur.line, "input %q has no candidates", p.cur.form)
	}
	return p.close()
}

// #endregion parse
