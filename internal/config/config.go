package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/otgla/internal/eval"
	"github.com/danielpatrickdp/otgla/internal/session"
	"github.com/danielpatrickdp/otgla/internal/update"
)

// #region types
// Config is the configuration shared by the binaries.
type Config struct {
	Grammar  GrammarConfig  `yaml:"grammar" json:"grammar"`
	Corpus   string         `yaml:"corpus" json:"corpus"`
	Learning LearningConfig `yaml:"learning" json:"learning"`
	Eval     EvalConfig     `yaml:"eval" json:"eval"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Report   ReportConfig   `yaml:"report" json:"report"`
	Server   ServerConfig   `yaml:"server" json:"server"`
}

// GrammarConfig says where the grammar comes from and how to read it.
type GrammarConfig struct {
	Path         string   `yaml:"path" json:"path"`
	RIP          bool     `yaml:"rip" json:"rip"`
	InitialValue *float64 `yaml:"initial_value,omitempty" json:"initial_value,omitempty"`
}

// LearningConfig holds the session parameters.
type LearningConfig struct {
	Plasticity  float64 `yaml:"plasticity" json:"plasticity"`
	Promote     string  `yaml:"promote" json:"promote"` // full, split
	NoiseSigma  float64 `yaml:"noise_sigma" json:"noise_sigma"`
	Passes      int     `yaml:"passes" json:"passes"`
	PrintCycle  int     `yaml:"print_cycle" json:"print_cycle"`
	SkipUnknown bool    `yaml:"skip_unknown" json:"skip_unknown"`
	Seed        uint64  `yaml:"seed" json:"seed"`
}

// EvalConfig holds held-out evaluation parameters.
type EvalConfig struct {
	Samples      int     `yaml:"samples" json:"samples"`
	NoiseSigma   float64 `yaml:"noise_sigma" json:"noise_sigma"`
	Workers      int     `yaml:"workers" json:"workers"`
	MaxErrorRate float64 `yaml:"max_error_rate" json:"max_error_rate"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	DBPath string `yaml:"db_path" json:"db_path"`
}

// ReportConfig controls where result reports go. An empty Dir disables
// report files.
type ReportConfig struct {
	Dir   string `yaml:"dir" json:"dir"`
	Label string `yaml:"label" json:"label"`
}

// ServerConfig holds the gRPC listen address.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// #endregion types

// #region defaults
// Default returns the configuration used when nothing is set.
func Default() *Config {
	u := update.DefaultUpdateConfig()
	s := session.DefaultSessionConfig()
	e := eval.DefaultEvalConfig()
	return &Config{
		Learning: LearningConfig{
			Plasticity: u.Plasticity,
			Promote:    string(u.Promote),
			NoiseSigma: s.NoiseSigma,
			Passes:     s.Passes,
			PrintCycle: s.PrintCycle,
			Seed:       1,
		},
		Eval: EvalConfig{
			Samples:      e.Samples,
			NoiseSigma:   e.NoiseSigma,
			Workers:      e.Workers,
			MaxErrorRate: e.MaxErrorRate,
		},
		Store:  StoreConfig{DBPath: "otgla.db"},
		Report: ReportConfig{Label: "results"},
		Server: ServerConfig{Addr: "localhost:50061"},
	}
}

// #endregion defaults

// #region load
// Load reads a YAML or JSON file over the defaults. Fields the file does
// not mention keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", filepath.Ext(path))
	}
	return cfg, nil
}

// ApplyEnv overrides fields from GLA_* variables looked up with getenv
// (normally os.Getenv).
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	var errs []error
	float := func(key string, dst *float64) {
		if v := getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("GLA_GRAMMAR", &c.Grammar.Path)
	str("GLA_CORPUS", &c.Corpus)
	str("GLA_DB", &c.Store.DBPath)
	str("GLA_REPORT_DIR", &c.Report.Dir)
	str("GLA_ADDR", &c.Server.Addr)
	str("GLA_PROMOTE", &c.Learning.Promote)
	float("GLA_PLASTICITY", &c.Learning.Plasticity)
	float("GLA_NOISE", &c.Learning.NoiseSigma)
	integer("GLA_PASSES", &c.Learning.Passes)
	integer("GLA_EVAL_SAMPLES", &c.Eval.Samples)
	integer("GLA_WORKERS", &c.Eval.Workers)
	if v := getenv("GLA_RIP"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("GLA_RIP: %w", err))
		} else {
			c.Grammar.RIP = b
		}
	}
	if v := getenv("GLA_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("GLA_SEED: %w", err))
		} else {
			c.Learning.Seed = n
		}
	}
	return errors.Join(errs...)
}

// #endregion load

// #region validate
// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Learning.Plasticity < 0 {
		errs = append(errs, errors.New("learning.plasticity must be >= 0"))
	}
	switch update.PromoteMode(c.Learning.Promote) {
	case update.PromoteFull, update.PromoteSplit:
	default:
		errs = append(errs, fmt.Errorf("learning.promote must be %q or %q, got %q", update.PromoteFull, update.PromoteSplit, c.Learning.Promote))
	}
	if c.Learning.NoiseSigma < 0 {
		errs = append(errs, errors.New("learning.noise_sigma must be >= 0"))
	}
	if c.Learning.Passes < 1 {
		errs = append(errs, errors.New("learning.passes must be >= 1"))
	}
	if c.Learning.PrintCycle < 0 {
		errs = append(errs, errors.New("learning.print_cycle must be >= 0"))
	}
	if c.Eval.Samples < 0 {
		errs = append(errs, errors.New("eval.samples must be >= 0"))
	}
	if c.Eval.NoiseSigma < 0 {
		errs = append(errs, errors.New("eval.noise_sigma must be >= 0"))
	}
	if c.Eval.MaxErrorRate < 0 || c.Eval.MaxErrorRate > 1 {
		errs = append(errs, errors.New("eval.max_error_rate must be within [0, 1]"))
	}
	return errors.Join(errs...)
}

// #endregion validate

// #region conversions
// SessionConfig converts the learning section to a session.Config.
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		Update: update.Config{
			Plasticity: c.Learning.Plasticity,
			Promote:    update.PromoteMode(c.Learning.Promote),
		},
		NoiseSigma:  c.Learning.NoiseSigma,
		Passes:      c.Learning.Passes,
		PrintCycle:  c.Learning.PrintCycle,
		SkipUnknown: c.Learning.SkipUnknown,
	}
}

// EvalConfig converts the eval section to an eval.EvalConfig.
func (c *Config) EvalConfig() eval.EvalConfig {
	return eval.EvalConfig{
		Samples:      c.Eval.Samples,
		NoiseSigma:   c.Eval.NoiseSigma,
		Workers:      c.Eval.Workers,
		Seed:         c.Learning.Seed,
		MaxErrorRate: c.Eval.MaxErrorRate,
	}
}

// JSON returns the configuration as compact JSON, as stored with sessions.
func (c *Config) JSON() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(data)
}

// #endregion conversions
