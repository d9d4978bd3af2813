// Package pattern learns per-user categorization rules from confirmed
// assignments and uses them to suggest categories for new transactions.
//
// Patterns live in a Store that the caller passes into every call; the
// package keeps no state of its own, so different users can be served in
// parallel without coordination.
package pattern

import (
	"context"
	"fmt"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// Store holds learned patterns and the categories they reference, keyed by user.
type Store interface {
	// ListPatterns returns the user's patterns of one type, or all types when patternType is empty.
	ListPatterns(ctx context.Context, userID string, patternType model.PatternType) ([]model.LearningPattern, error)
	// FindPattern returns the pattern for (user, type, value) or an error wrapping common.ErrNotFound.
	FindPattern(ctx context.Context, userID string, patternType model.PatternType, value string) (*model.LearningPattern, error)
	// SavePattern inserts or updates the pattern keyed by (user, type, value).
	SavePattern(ctx context.Context, p *model.LearningPattern) error
	// GetCategory returns one of the user's categories or an error wrapping common.ErrNotFound.
	GetCategory(ctx context.Context, userID, categoryID string) (*model.Category, error)
}

// Suggestion is an alias to the model type for convenience.
type Suggestion = model.CategorySuggestion

// Config holds the learning policy knobs.
type Config struct {
	BaselineConfidence float64 // New and overridden patterns start here
	ReinforceWeight    float64 // Share of the gap to 100 closed on each agreeing assignment
	FallbackConfidence float64 // Fixed confidence for the frequency fallback
	UsageDecayDivisor  float64
	VendorTokens       int // Leading significant tokens kept in a vendor signature
}

// DefaultConfig returns the default learning policy.
func DefaultConfig() Config {
	return Config{
		BaselineConfidence: 50,
		ReinforceWeight:    0.3,
		FallbackConfidence: 20,
		UsageDecayDivisor:  10,
		VendorTokens:       2,
	}
}

// Validate checks the knobs are within range.
func (c Config) Validate() error {
	if c.BaselineConfidence <= 0 || c.BaselineConfidence > 100 {
		return fmt.Errorf("%w: baseline_confidence must be in (0,100]", common.ErrInvalidConfig)
	}
	if c.ReinforceWeight <= 0 || c.ReinforceWeight > 1 {
		return fmt.Errorf("%w: reinforce_weight must be in (0,1]", common.ErrInvalidConfig)
	}
	if c.FallbackConfidence < 0 || c.FallbackConfidence > 100 {
		return fmt.Errorf("%w: fallback_confidence must be in [0,100]", common.ErrInvalidConfig)
	}
	if c.UsageDecayDivisor <= 0 {
		return fmt.Errorf("%w: usage_decay_divisor must be positive", common.ErrInvalidConfig)
	}
	if c.VendorTokens < 1 {
		return fmt.Errorf("%w: vendor_tokens must be at least 1", common.ErrInvalidConfig)
	}
	return nil
}
