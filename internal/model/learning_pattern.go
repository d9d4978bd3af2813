// Package model defines the core data structures for the books application.
package model

import (
	"time"
)

// PatternType is the kind of signature a learning pattern matches on.
type PatternType string

// Pattern type constants.
const (
	PatternVendor      PatternType = "vendor"
	PatternKeyword     PatternType = "keyword"
	PatternAmountRange PatternType = "amount_range"

	// PatternFrequency marks suggestions from the per-user frequency fallback.
	// It is never stored.
	PatternFrequency PatternType = "frequency"
)

// Valid reports whether p is a known pattern type.
func (p PatternType) Valid() bool {
	switch p {
	case PatternVendor, PatternKeyword, PatternAmountRange:
		return true
	}
	return false
}

// LearningPattern maps a normalized signature to a category for one user.
// At most one pattern exists per (UserID, Type, Value).
type LearningPattern struct {
	LastUsed   time.Time   `json:"last_used"`
	CreatedAt  time.Time   `json:"created_at"`
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	Type       PatternType `json:"pattern_type"`
	Value      string      `json:"pattern_value"`
	CategoryID string      `json:"category_id"`
	Confidence float64     `json:"confidence"`
	UsageCount int         `json:"usage_count"`
}

// CategorySuggestion is one ranked answer from the learning engine.
type CategorySuggestion struct {
	Category   Category
	PatternID  string // Empty for the frequency fallback
	Source     PatternType
	Reason     string
	Confidence float64
}

// CategoryAssignment records a category change on one transaction.
// ExpectedVersion is the token observed when the transaction was read.
type CategoryAssignment struct {
	Transaction     Transaction
	ExpectedVersion int64
}
