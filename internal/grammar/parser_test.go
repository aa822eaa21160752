package grammar

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region fixtures
const directGrammar = `"ooTextFile"
"OTGrammar 2"
3 constraints
constraint [1]: "WSP" 100 100 ! WSP
constraint [2]: "FtBin" 95.5 95.5
constraint [3]: "Iambic" 90 90

0 fixed rankings

2 tableaus
input [1]: "|H L|" 2
	candidate [1]: "[H1 L]" 0 0 1
	candidate [2]: "[H L1]" 1 0 0
input [2]: "|L L|" 2
	candidate [1]: "[L1 L]" 0 0 1
	candidate [2]: "[L L1]" 0 1 0
`

const ripGrammar = `constraint [1]: "WSP" 100
constraint [2]: "FtBin" 100
constraint [3]: "Iambic" 100
input [1]: "|HL|" 3
	candidate [1]: "[H1 L] \-> /(H1) L/" 0 0 0
	candidate [2]: "[H1 L] \-> /(H1 L)/" 0 0 1
	candidate [3]: "[H L1] \-> /(H L1)/" 1 0 0
`

// #endregion fixtures

// #region direct-tests
func TestParseDirect(t *testing.T) {
	g, err := ParseString(directGrammar, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"WSP", "FtBin", "Iambic"}, g.Names())
	assert.Equal(t, []float64{100, 95.5, 90}, g.Values())
	assert.False(t, g.RIP)
	assert.Nil(t, g.Overts)
	assert.Equal(t, []string{"|H L|", "|L L|"}, g.Inputs.Forms())

	tab, err := g.Inputs.Get("|H L|")
	require.NoError(t, err)
	require.Equal(t, 2, tab.Len())
	c, ok := tab.Lookup("[H L1]")
	require.True(t, ok)
	assert.Equal(t, Profile{1, 0, 0}, c.Profile)
}

func TestParseProfilesMatchConstraintCount(t *testing.T) {
	for _, tc := range []struct {
		name string
		text string
		opts Options
	}{
		{"direct", directGrammar, Options{}},
		{"rip", ripGrammar, Options{RIP: true}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			g, err := ParseString(tc.text, tc.opts)
			require.NoError(t, err)
			sets := []*TableauSet{g.Inputs, g.Overts, g.InputOverts}
			for _, set := range sets {
				for _, form := range set.Forms() {
					tab, err := set.Get(form)
					require.NoError(t, err)
					for _, c := range tab.Candidates {
						assert.Len(t, c.Profile, len(g.Constraints), "candidate %s", c.ID)
					}
				}
			}
		})
	}
}

func TestParseInitialValue(t *testing.T) {
	g, err := ParseString(directGrammar, Options{InitialValue: InitialValue(50)})
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 50, 50}, g.Values())
}

func TestInputOf(t *testing.T) {
	g, err := ParseString(directGrammar, Options{})
	require.NoError(t, err)

	inp, err := g.InputOf("[L L1]")
	require.NoError(t, err)
	assert.Equal(t, "|L L|", inp)

	_, err = g.InputOf("[H H1]")
	var lookup *LookupError
	require.True(t, errors.As(err, &lookup))
	assert.Equal(t, "[H H1]", lookup.Form)
}

// #endregion direct-tests

// #region rip-tests
func TestParseRIP(t *testing.T) {
	g, err := ParseString(ripGrammar, Options{RIP: true})
	require.NoError(t, err)
	require.True(t, g.RIP)

	i2p, err := g.Inputs.Get("|HL|")
	require.NoError(t, err)
	assert.Equal(t, 3, i2p.Len())
	c, ok := i2p.Lookup("/(H1 L)/")
	require.True(t, ok)
	assert.Equal(t, "[H1 L]", c.Overt)

	o2p, err := g.Overts.Get("[H1 L]")
	require.NoError(t, err)
	assert.Equal(t, 2, o2p.Len())
	_, ok = o2p.Lookup("/(H L1)/")
	assert.False(t, ok)

	i2o, err := g.InputOverts.Get("|HL|")
	require.NoError(t, err)
	pair, ok := i2o.Lookup("[H L1] /(H L1)/")
	require.True(t, ok)
	assert.Equal(t, "/(H L1)/", pair.Parse)
	assert.Equal(t, Profile{1, 0, 0}, pair.Profile)
}

func TestParseRIPRejectsBareDescription(t *testing.T) {
	_, err := ParseString(directGrammar, Options{RIP: true})
	var fe *FormatError
	require.True(t, errors.As(err, &fe), "got %v", err)
	assert.Equal(t, 12, fe.Line)
}

// #endregion rip-tests

// #region error-tests
func TestParseFormatErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no constraints", `input [1]: "|a|"
candidate [1]: "A" 0`},
		{"candidate without input", `constraint [1]: "C1" 100
candidate [1]: "A" 0`},
		{"two inputs in one block", `constraint [1]: "C1" 100
input [1]: "|a|"
input [2]: "|b|"
candidate [1]: "A" 0`},
		{"input without candidates", `constraint [1]: "C1" 100
input [1]: "|a|"`},
		{"vector too short", `constraint [1]: "C1" 100
constraint [2]: "C2" 100
input [1]: "|a|"
candidate [1]: "A" 0`},
		{"vector too long", `constraint [1]: "C1" 100
input [1]: "|a|"
candidate [1]: "A" 0 1`},
		{"negative violation", `constraint [1]: "C1" 100
input [1]: "|a|"
candidate [1]: "A" -1`},
		{"declared count mismatch", `constraint [1]: "C1" 100
input [1]: "|a|" 3
candidate [1]: "A" 0
candidate [2]: "B" 1`},
		{"duplicate constraint", `constraint [1]: "C1" 100
constraint [2]: "C1" 90
input [1]: "|a|"
candidate [1]: "A" 0 0`},
		{"duplicate candidate", `constraint [1]: "C1" 100
input [1]: "|a|"
candidate [1]: "A" 0
candidate [2]: "A" 1`},
		{"missing ranking value", `constraint [1]: "C1"
input [1]: "|a|"
candidate [1]: "A" 0`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ParseString(tt.text, Options{})
			require.Error(t, err)
			assert.Nil(t, g)
			var fe *FormatError
			assert.True(t, errors.As(err, &fe), "expected *FormatError, got %T: %v", err, err)
		})
	}
}

func TestParseMissingValueAllowedWithInitialValue(t *testing.T) {
	g, err := ParseString(`constraint [1]: "C1"
input [1]: "|a|"
candidate [1]: "A" 0`, Options{InitialValue: InitialValue(100)})
	require.NoError(t, err)
	assert.Equal(t, []float64{100}, g.Values())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grammar.txt")
	require.NoError(t, os.WriteFile(path, []byte(directGrammar), 0o644))

	g, err := LoadFile(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, g.Inputs.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.txt"), Options{})
	assert.Error(t, err)
}

// #endregion error-tests
