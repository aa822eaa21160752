package grammar

import "fmt"

// #region constraint
// Constraint is a named OT constraint with its source ranking value.
type Constraint struct {
	Name  string
	Value float64
}

// #endregion constraint

// #region profile
// Profile is a violation vector in constraint declaration order.
type Profile []int

// Clone returns an independent copy of the profile.
func (p Profile) Clone() Profile {
	out := make(Profile, len(p))
	copy(out, p)
	return out
}

// #endregion profile

// #region candidate
// Candidate is one structural analysis competing within a tableau.
// ID is the key the candidate is looked up by; Overt and Parse are only
// populated for RIP grammars.
type Candidate struct {
	ID      string
	Overt   string
	Parse   string
	Profile Profile
}

// #endregion candidate

// #region tableau
// Tableau is the ordered competition for a single input or overt form.
type Tableau struct {
	Form       string
	Candidates []Candidate
	index      map[string]int
}

func newTableau(form string) *Tableau {
	return &Tableau{Form: form, index: make(map[string]int)}
}

// NewTableau builds a tableau from candidates listed in order.
func NewTableau(form string, cands ...Candidate) (*Tableau, error) {
	t := newTableau(form)
	for _, c := range cands {
		if err := t.add(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// add appends a candidate; ids are unique within a tableau.
func (t *Tableau) add(c Candidate) error {
	if _, dup := t.index[c.ID]; dup {
		return fmt.Errorf("duplicate candidate %q in tableau %q", c.ID, t.Form)
	}
	t.index[c.ID] = len(t.Candidates)
	t.Candidates = append(t.Candidates, c)
	return nil
}

// Lookup returns the candidate with the given id.
func (t *Tableau) Lookup(id string) (Candidate, bool) {
	i, ok := t.index[id]
	if !ok {
		return Candidate{}, false
	}
	return t.Candidates[i], true
}

// Len returns the number of competing candidates.
func (t *Tableau) Len() int {
	return len(t.Candidates)
}

// #endregion tableau

// #region tableau-set
// TableauSet is an ordered association from form to tableau.
type TableauSet struct {
	forms  []string
	byForm map[string]*Tableau
}

func newTableauSet() *TableauSet {
	return &TableauSet{byForm: make(map[string]*Tableau)}
}

// tableau returns the tableau for form, creating it on first use.
func (s *TableauSet) tableau(form string) *Tableau {
	t, ok := s.byForm[form]
	if !ok {
		t = newTableau(form)
		s.byForm[form] = t
		s.forms = append(s.forms, form)
	}
	return t
}

// Get returns the tableau for form or a *LookupError.
func (s *TableauSet) Get(form string) (*Tableau, error) {
	if s == nil {
		return nil, &LookupError{Form: form}
	}
	t, ok := s.byForm[form]
	if !ok {
		return nil, &LookupError{Form: form}
	}
	return t, nil
}

// Forms lists the forms in first-declaration order.
func (s *TableauSet) Forms() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.forms))
	copy(out, s.forms)
	return out
}

// Len returns the number of tableaux.
func (s *TableauSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.forms)
}

// #endregion tableau-set

// #region grammar
// Grammar is a parsed OT grammar. Direct grammars fill Inputs only; RIP
// grammars fill Inputs (input to parse), Overts (overt to parse) and
// InputOverts (input to overt+parse).
type Grammar struct {
	Constraints []Constraint
	RIP         bool

	Inputs      *TableauSet
	Overts      *TableauSet
	InputOverts *TableauSet

	inputOf map[string]string
}

// Names returns the constraint names in declaration order.
func (g *Grammar) Names() []string {
	names := make([]string, len(g.Constraints))
	for i, c := range g.Constraints {
		names[i] = c.Name
	}
	return names
}

// Values returns the initial ranking values in declaration order.
func (g *Grammar) Values() []float64 {
	vals := make([]float64, len(g.Constraints))
	for i, c := range g.Constraints {
		vals[i] = c.Value
	}
	return vals
}

// Index returns the declaration index of the named constraint, or -1.
func (g *Grammar) Index(name string) int {
	for i, c := range g.Constraints {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// InputOf returns the first input whose tableau lists overt as a candidate.
// Only meaningful for direct grammars, where candidates are overt forms.
func (g *Grammar) InputOf(overt string) (string, error) {
	inp, ok := g.inputOf[overt]
	if !ok {
		return "", &LookupError{Form: overt}
	}
	return inp, nil
}

// #endregion grammar
