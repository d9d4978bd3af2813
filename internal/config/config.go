// Package config loads application settings from viper and turns them into
// the policies used by the engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/balance"
	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/engine"
	"github.com/Veraticus/the-books-must-balance/internal/matching"
	"github.com/Veraticus/the-books-must-balance/internal/pattern"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// DefaultDatabasePath is used when database.path is not configured.
const DefaultDatabasePath = "$HOME/.local/share/books/books.db"

// Config is the full application configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	User       UserConfig       `mapstructure:"user"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Matching   MatchingConfig   `mapstructure:"matching"`
	Learning   LearningConfig   `mapstructure:"learning"`
	Validation ValidationConfig `mapstructure:"validation"`
	Engine     EngineConfig     `mapstructure:"engine"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// UserConfig names the default user for commands that take --user.
type UserConfig struct {
	ID string `mapstructure:"id"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MatchingConfig holds the match scoring policy.
type MatchingConfig struct {
	ToleranceDays     int     `mapstructure:"tolerance_days"`
	AmountWeight      float64 `mapstructure:"amount_weight"`
	DateWeight        float64 `mapstructure:"date_weight"`
	DescriptionWeight float64 `mapstructure:"description_weight"`
	BulkThreshold     float64 `mapstructure:"bulk_threshold"`
	SuggestionLimit   int     `mapstructure:"suggestion_limit"`
}

// LearningConfig holds the categorization learning policy.
type LearningConfig struct {
	BaselineConfidence float64 `mapstructure:"baseline_confidence"`
	ReinforceWeight    float64 `mapstructure:"reinforce_weight"`
	FallbackConfidence float64 `mapstructure:"fallback_confidence"`
	UsageDecayDivisor  float64 `mapstructure:"usage_decay_divisor"`
	VendorTokens       int     `mapstructure:"vendor_tokens"`
}

// ValidationConfig holds the trial balance tolerance.
type ValidationConfig struct {
	MinEpsilon       string `mapstructure:"min_epsilon"`
	VolumeRatio      string `mapstructure:"volume_ratio"`
	TimingWindowDays int    `mapstructure:"timing_window_days"`
}

// EngineConfig holds batching and parallelism limits.
type EngineConfig struct {
	BatchSize   int `mapstructure:"batch_size"`
	Parallelism int `mapstructure:"parallelism"`
}

// SetDefaults registers every default on v so config files only need to
// name what they change.
func SetDefaults(v *viper.Viper) {
	m := matching.DefaultConfig()
	l := pattern.DefaultConfig()
	b := balance.DefaultConfig()
	e := engine.DefaultConfig()

	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("user.id", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("matching.tolerance_days", m.ToleranceDays)
	v.SetDefault("matching.amount_weight", m.AmountWeight)
	v.SetDefault("matching.date_weight", m.DateWeight)
	v.SetDefault("matching.description_weight", m.DescriptionWeight)
	v.SetDefault("matching.bulk_threshold", m.BulkThreshold)
	v.SetDefault("matching.suggestion_limit", m.SuggestionLimit)

	v.SetDefault("learning.baseline_confidence", l.BaselineConfidence)
	v.SetDefault("learning.reinforce_weight", l.ReinforceWeight)
	v.SetDefault("learning.fallback_confidence", l.FallbackConfidence)
	v.SetDefault("learning.usage_decay_divisor", l.UsageDecayDivisor)
	v.SetDefault("learning.vendor_tokens", l.VendorTokens)

	v.SetDefault("validation.min_epsilon", b.MinEpsilon.String())
	v.SetDefault("validation.volume_ratio", b.VolumeRatio.String())
	v.SetDefault("validation.timing_window_days", b.TimingWindowDays)

	v.SetDefault("engine.batch_size", e.BatchSize)
	v.SetDefault("engine.parallelism", e.Parallelism)
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	cfg.Database.Path = ExpandPath(cfg.Database.Path)

	if _, err := cfg.EngineConfig(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EngineConfig converts the settings into engine policy and validates it.
func (c *Config) EngineConfig() (engine.Config, error) {
	minEpsilon, err := parseDecimal("validation.min_epsilon", c.Validation.MinEpsilon)
	if err != nil {
		return engine.Config{}, err
	}
	volumeRatio, err := parseDecimal("validation.volume_ratio", c.Validation.VolumeRatio)
	if err != nil {
		return engine.Config{}, err
	}

	cfg := engine.Config{
		Matching: matching.Config{
			ToleranceDays:     c.Matching.ToleranceDays,
			AmountWeight:      c.Matching.AmountWeight,
			DateWeight:        c.Matching.DateWeight,
			DescriptionWeight: c.Matching.DescriptionWeight,
			BulkThreshold:     c.Matching.BulkThreshold,
			SuggestionLimit:   c.Matching.SuggestionLimit,
		},
		Learning: pattern.Config{
			BaselineConfidence: c.Learning.BaselineConfidence,
			ReinforceWeight:    c.Learning.ReinforceWeight,
			FallbackConfidence: c.Learning.FallbackConfidence,
			UsageDecayDivisor:  c.Learning.UsageDecayDivisor,
			VendorTokens:       c.Learning.VendorTokens,
		},
		Balance: balance.Config{
			MinEpsilon:       minEpsilon,
			VolumeRatio:      volumeRatio,
			TimingWindowDays: c.Validation.TimingWindowDays,
		},
		BatchSize:   c.Engine.BatchSize,
		Parallelism: c.Engine.Parallelism,
	}
	if err := cfg.Validate(); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}

func parseDecimal(key, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q is not a number", common.ErrInvalidConfig, key, value)
	}
	return d, nil
}

// ExpandPath expands a leading ~ and any $VAR references in a file path.
// ":memory:" is returned untouched.
func ExpandPath(path string) string {
	if path == "" || path == ":memory:" {
		return path
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return os.ExpandEnv(path)
}
