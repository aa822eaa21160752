package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region fixture-tests

// TestFixtures runs every learning fixture under testdata/ and checks its
// expectations against the learned grammar.
func TestFixtures(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no fixtures found")

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			f, err := LoadFixture(path)
			require.NoError(t, err)
			sum, results, err := f.Run(context.Background())
			require.NoError(t, err)
			require.Len(t, results, sum.Trials)
			assert.Empty(t, f.Check(sum), f.Description)
		})
	}
}

func TestFixtureItemsExpandCounts(t *testing.T) {
	f := &Fixture{Corpus: []FixtureItem{{Form: "A", Count: 3}, {Form: "B"}}}
	assert.Equal(t, []string{"A", "A", "A", "B"}, f.Items())
}

func TestFixtureCheckReportsViolations(t *testing.T) {
	f := &Fixture{Expected: FixtureExpected{
		Dominates:  []string{"C2 >> C1", "nonsense"},
		MaxChanges: 1,
		Learned:    []string{"B"},
	}}
	sum := Summary{
		Constraints: []string{"C1", "C2"},
		Values:      []float64{102, 98},
		Changes:     2,
		Failed:      []string{"B"},
	}
	assert.Len(t, f.Check(sum), 4)
}

func TestFixtureConfigDefaults(t *testing.T) {
	var fc FixtureConfig
	cfg := fc.ToConfig()
	assert.Equal(t, 2.0, cfg.NoiseSigma)
	assert.Equal(t, 1, cfg.Passes)
	assert.Equal(t, 1.0, cfg.Update.Plasticity)

	zero := 0.0
	fc.NoiseSigma = &zero
	fc.Plasticity = &zero
	cfg = fc.ToConfig()
	assert.Zero(t, cfg.NoiseSigma, "explicit zero noise must be kept")
	assert.Zero(t, cfg.Update.Plasticity, "explicit zero plasticity must be kept")
}

func TestLoadFixtureMissing(t *testing.T) {
	_, err := LoadFixture(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)
}

// #endregion fixture-tests

// #region export-tests
func TestNewFixtureFoldsCorpusAndRanking(t *testing.T) {
	sum := Summary{
		Constraints: []string{"C1", "C2", "C3"},
		Values:      []float64{100, 104, 100},
		Changes:     3,
		Failed:      []string{"B"},
	}
	f := NewFixture("export", "direct", "grammar", nil, []string{"A", "A", "B", "A"}, DefaultSessionConfig(), 5, sum)

	assert.Equal(t, []FixtureItem{{Form: "A", Count: 2}, {Form: "B", Count: 1}, {Form: "A", Count: 1}}, f.Corpus)
	// C1 and C3 tie, so only C2 >> C1 is strict.
	assert.Equal(t, []string{"C2 >> C1"}, f.Expected.Dominates)
	assert.Equal(t, 3, f.Expected.MaxChanges)
	assert.Equal(t, []string{"A"}, f.Expected.Learned)
	require.NotNil(t, f.Config.NoiseSigma, "noise sigma must be written explicitly")
	assert.Equal(t, 2.0, *f.Config.NoiseSigma)
	require.NotNil(t, f.Config.Plasticity, "plasticity must be written explicitly")
	assert.Equal(t, 1.0, *f.Config.Plasticity)
}

// TestExportedFixtureReplays learns a fixture, exports the outcome and
// checks that the exported fixture reproduces it.
func TestExportedFixtureReplays(t *testing.T) {
	src, err := LoadFixture(filepath.Join("testdata", "direct_convergence.yaml"))
	require.NoError(t, err)
	sum, _, err := src.Run(context.Background())
	require.NoError(t, err)

	exported := NewFixture(src.Description, src.Mode, src.Grammar, src.InitialValue, src.Items(), src.Config.ToConfig(), src.Seed, sum)
	path := filepath.Join(t.TempDir(), "exported.yaml")
	require.NoError(t, WriteFixture(path, exported))

	f, err := LoadFixture(path)
	require.NoError(t, err)
	again, _, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.Check(again), "exported fixture does not replay")
	assert.Equal(t, sum.Changes, again.Changes)
}

// TestExportedZeroPlasticityReplaysUnchanged exports a session learned with
// plasticity 0 and checks that the replay keeps the initial values.
func TestExportedZeroPlasticityReplaysUnchanged(t *testing.T) {
	zero := 0.0
	src := &Fixture{
		Description: "frozen",
		Mode:        "direct",
		Grammar:     tiedDirect,
		Corpus:      []FixtureItem{{Form: "A", Count: 40}},
		Config:      FixtureConfig{Plasticity: &zero},
		Seed:        3,
	}
	sum, _, err := src.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []float64{100, 100}, sum.Values)

	path := filepath.Join(t.TempDir(), "frozen.yaml")
	require.NoError(t, WriteFixture(path, NewFixture(src.Description, src.Mode, src.Grammar, nil, src.Items(), src.Config.ToConfig(), src.Seed, sum)))

	f, err := LoadFixture(path)
	require.NoError(t, err)
	require.NotNil(t, f.Config.Plasticity, "plasticity 0 must survive the round trip")
	assert.Zero(t, *f.Config.Plasticity)
	assert.Zero(t, f.Config.ToConfig().Update.Plasticity)

	again, _, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 100}, again.Values)
	assert.Equal(t, sum.Changes, again.Changes)
	assert.Empty(t, f.Check(again))
}

// #endregion export-tests
