/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: config.go
Description: Engine configuration knobs, bound from CLI flags, a config
file, and the environment via viper, following the teacher's
cmd/fuzzer/main.go flag-and-viper wiring style.
*/

package fuzzconfig

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every tunable named in the engine's knob surface: sensor
// sizing, the favored-unit selection odds, per-variant feature scores,
// and where the corpus/logs live on disk.
type Config struct {
	MaxNumGuards uint32  `mapstructure:"max_num_guards"`
	FavoredOdds  float64 `mapstructure:"favored_selection_odds"`

	FeatureScoreEdge       float64 `mapstructure:"feature_score_edge"`
	FeatureScoreIndirect   float64 `mapstructure:"feature_score_indirect"`
	FeatureScoreComparison float64 `mapstructure:"feature_score_comparison"`

	Lanes int    `mapstructure:"lanes"`
	Seed  uint32 `mapstructure:"seed"`

	CorpusDir string `mapstructure:"corpus_dir"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogDir    string `mapstructure:"log_dir"`
	JSONLogs  bool   `mapstructure:"json_logs"`

	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Defaults returns the engine's built-in defaults, applied before any
// flag, config file, or environment variable override.
func Defaults() Config {
	return Config{
		MaxNumGuards:           1 << 21,
		FavoredOdds:            0.25,
		FeatureScoreEdge:       4.0,
		FeatureScoreIndirect:   4.0,
		FeatureScoreComparison: 1.0,
		Lanes:                  1,
		Seed:                   1,
		CorpusDir:              "./corpus",
		LogLevel:               "info",
		LogFormat:              "custom",
		LogDir:                 "./logs",
		MetricsAddr:            "",
	}
}

// BindFlags registers the engine's flags on fs and binds each one to v,
// mirroring the teacher's viper.BindPFlag-per-flag pattern in
// cmd/fuzzer/main.go.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	d := Defaults()

	fs.Uint32("max-num-guards", d.MaxNumGuards, "maximum instrumented edges before guard ids saturate")
	fs.Float64("favored-selection-odds", d.FavoredOdds, "probability of picking the favored unit when one is set")
	fs.Float64("feature-score-edge", d.FeatureScoreEdge, "fixed score budget for an edge feature")
	fs.Float64("feature-score-indirect", d.FeatureScoreIndirect, "fixed score budget for an indirect-call feature")
	fs.Float64("feature-score-comparison", d.FeatureScoreComparison, "fixed score budget for a comparison feature")
	fs.Int("lanes", d.Lanes, "number of independent fuzzing lanes to run concurrently")
	fs.Uint32("seed", d.Seed, "base PRNG seed; lane N uses seed+N")
	fs.String("corpus-dir", d.CorpusDir, "directory holding the on-disk output corpus")
	fs.String("log-level", d.LogLevel, "logging level (debug, info, warn, error)")
	fs.String("log-format", d.LogFormat, "log format (text, json, custom)")
	fs.String("log-dir", d.LogDir, "log output directory")
	fs.Bool("json-logs", false, "use JSON log format")
	fs.String("metrics-addr", d.MetricsAddr, "address to serve Prometheus metrics on, empty disables it")

	for _, flag := range []struct{ viperKey, flagName string }{
		{"max_num_guards", "max-num-guards"},
		{"favored_selection_odds", "favored-selection-odds"},
		{"feature_score_edge", "feature-score-edge"},
		{"feature_score_indirect", "feature-score-indirect"},
		{"feature_score_comparison", "feature-score-comparison"},
		{"lanes", "lanes"},
		{"seed", "seed"},
		{"corpus_dir", "corpus-dir"},
		{"log_level", "log-level"},
		{"log_format", "log-format"},
		{"log_dir", "log-dir"},
		{"json_logs", "json-logs"},
		{"metrics_addr", "metrics-addr"},
	} {
		if err := v.BindPFlag(flag.viperKey, fs.Lookup(flag.flagName)); err != nil {
			return fmt.Errorf("fuzzconfig: failed to bind flag %q: %w", flag.flagName, err)
		}
	}
	return nil
}

// Load reads a config file (if set), environment variables prefixed
// FUZZCORE_, and bound flags into a Config, in viper's usual precedence
// order (flag > env > config file > default).
func Load(v *viper.Viper, configFile string) (Config, error) {
	v.SetEnvPrefix("fuzzcore")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("fuzzconfig: failed to read config file: %w", err)
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("fuzzconfig: failed to unmarshal config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations that would violate an engine
// precondition (an empty favored odds range, a zero-size sensor table).
func (c Config) Validate() error {
	if c.FavoredOdds <= 0 || c.FavoredOdds > 1 {
		return fmt.Errorf("fuzzconfig: favored_selection_odds must be in (0, 1], got %v", c.FavoredOdds)
	}
	if c.MaxNumGuards == 0 {
		return fmt.Errorf("fuzzconfig: max_num_guards must be positive")
	}
	if c.Lanes <= 0 {
		return fmt.Errorf("fuzzconfig: lanes must be positive")
	}
	return nil
}
