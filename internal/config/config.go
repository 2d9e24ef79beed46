// Package config provides configuration loading and validation for the speaking coach engine.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
)

// Duration is a time.Duration that reads from JSON strings like "30s" or "1h".
type Duration time.Duration

// UnmarshalJSON accepts either a Go duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("duration must be a string or number of seconds: %w", err)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// MarshalJSON writes the duration in Go string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds the engine tunables. All fields are optional in the file;
// zero values are filled from Defaults by MergeWithDefaults.
type Config struct {
	// Interview
	MaxQuestions      int      `json:"max_questions,omitempty" validate:"gte=1,lte=20"`
	GenerationTimeout Duration `json:"generation_timeout,omitempty" validate:"gt=0"`

	// Session store
	SessionTTL  Duration `json:"session_ttl,omitempty" validate:"gt=0"`
	MaxSessions int      `json:"max_sessions,omitempty" validate:"gte=1"`

	// Profile aggregation
	RecentRecordsCap    int `json:"recent_records_cap,omitempty" validate:"gte=1"`
	TrendCap            int `json:"trend_cap,omitempty" validate:"gte=1"`
	PatternTopN         int `json:"pattern_top_n,omitempty" validate:"gte=1"`
	ImprovementMinCount int `json:"improvement_min_count,omitempty" validate:"gte=1"`
	PaceMinRecords      int `json:"pace_min_records,omitempty" validate:"gte=1"`

	// Evaluation
	SlideConcurrency int `json:"slide_concurrency,omitempty" validate:"gte=1,lte=32"`

	// Model
	Model string `json:"model,omitempty" validate:"required"`
}

// Defaults returns the reference values for every tunable.
func Defaults() Config {
	return Config{
		MaxQuestions:        4,
		GenerationTimeout:   Duration(120 * time.Second),
		SessionTTL:          Duration(60 * time.Minute),
		MaxSessions:         10000,
		RecentRecordsCap:    10,
		TrendCap:            20,
		PatternTopN:         5,
		ImprovementMinCount: 3,
		PaceMinRecords:      3,
		SlideConcurrency:    4,
		Model:               "gemini-2.5-flash",
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Load reads path when it is non-empty, fills defaults and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	merged := cfg.MergeWithDefaults(Defaults())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.TrendCap < 6 {
		// The trend remark compares two windows of three scores.
		return fmt.Errorf("config error: 'trend_cap' must be at least 6")
	}
	return nil
}

// MergeWithDefaults returns a new Config with zero fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.MaxQuestions == 0 {
		result.MaxQuestions = defaults.MaxQuestions
	}
	if result.GenerationTimeout == 0 {
		result.GenerationTimeout = defaults.GenerationTimeout
	}
	if result.SessionTTL == 0 {
		result.SessionTTL = defaults.SessionTTL
	}
	if result.MaxSessions == 0 {
		result.MaxSessions = defaults.MaxSessions
	}
	if result.RecentRecordsCap == 0 {
		result.RecentRecordsCap = defaults.RecentRecordsCap
	}
	if result.TrendCap == 0 {
		result.TrendCap = defaults.TrendCap
	}
	if result.PatternTopN == 0 {
		result.PatternTopN = defaults.PatternTopN
	}
	if result.ImprovementMinCount == 0 {
		result.ImprovementMinCount = defaults.ImprovementMinCount
	}
	if result.PaceMinRecords == 0 {
		result.PaceMinRecords = defaults.PaceMinRecords
	}
	if result.SlideConcurrency == 0 {
		result.SlideConcurrency = defaults.SlideConcurrency
	}
	if result.Model == "" {
		result.Model = defaults.Model
	}

	return result
}
