// Package matching pairs PaidOut and PaidIn transactions that describe the same
// movement of money seen from two statements.
//
// All functions are pure over the transactions they are given. Mutations are
// applied to an Index and returned as model.MatchMutation values; persisting
// them is the caller's job.
package matching

import (
	"fmt"

	"github.com/Veraticus/the-books-must-balance/internal/common"
)

// Config holds the matching policy knobs.
type Config struct {
	ToleranceDays     int
	AmountWeight      float64
	DateWeight        float64
	DescriptionWeight float64
	BulkThreshold     float64
	SuggestionLimit   int
}

// DefaultConfig returns the default matching policy.
func DefaultConfig() Config {
	return Config{
		ToleranceDays:     2,
		AmountWeight:      60,
		DateWeight:        30,
		DescriptionWeight: 10,
		BulkThreshold:     80,
		SuggestionLimit:   10,
	}
}

// Validate checks that the knobs describe a usable scoring function.
func (c Config) Validate() error {
	if c.ToleranceDays < 0 {
		return fmt.Errorf("%w: tolerance_days must not be negative", common.ErrInvalidConfig)
	}
	if c.AmountWeight < 0 || c.DateWeight < 0 || c.DescriptionWeight < 0 {
		return fmt.Errorf("%w: score weights must not be negative", common.ErrInvalidConfig)
	}
	if c.AmountWeight+c.DateWeight+c.DescriptionWeight == 0 {
		return fmt.Errorf("%w: at least one score weight must be positive", common.ErrInvalidConfig)
	}
	if c.BulkThreshold < 0 || c.BulkThreshold > 100 {
		return fmt.Errorf("%w: bulk_threshold must be between 0 and 100", common.ErrInvalidConfig)
	}
	if c.SuggestionLimit < 0 {
		return fmt.Errorf("%w: suggestion_limit must not be negative", common.ErrInvalidConfig)
	}
	return nil
}
