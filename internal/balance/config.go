package balance

import (
	"fmt"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/shopspring/decimal"
)

// Config holds the validator policy knobs.
type Config struct {
	MinEpsilon       decimal.Decimal // Smallest tolerated imbalance
	VolumeRatio      decimal.Decimal // Tolerance as a share of period volume
	TimingWindowDays int             // Days around a period boundary that count as timing
}

// DefaultConfig returns epsilon = max(0.01, 0.0001 × volume) and a ±3 day
// timing window.
func DefaultConfig() Config {
	return Config{
		MinEpsilon:       decimal.New(1, -2),
		VolumeRatio:      decimal.New(1, -4),
		TimingWindowDays: 3,
	}
}

// Validate checks the knobs are within range.
func (c Config) Validate() error {
	if c.MinEpsilon.IsNegative() {
		return fmt.Errorf("%w: min_epsilon must not be negative", common.ErrInvalidConfig)
	}
	if c.VolumeRatio.IsNegative() {
		return fmt.Errorf("%w: volume_ratio must not be negative", common.ErrInvalidConfig)
	}
	if c.TimingWindowDays < 0 {
		return fmt.Errorf("%w: timing_window_days must not be negative", common.ErrInvalidConfig)
	}
	return nil
}

// Epsilon returns the tolerance for a period with the given volume.
func (c Config) Epsilon(volume decimal.Decimal) decimal.Decimal {
	return decimal.Max(c.MinEpsilon, c.VolumeRatio.Mul(volume.Abs()))
}
