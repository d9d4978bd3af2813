// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate     *time.Time
	EndDate       *time.Time
	AccountName   string
	Status        model.MatchStatus // Empty matches every status
	Limit         int
	Offset        int
	Uncategorized bool
}

// Writer holds the mutations that may run inside a Transaction. Every record
// update is a compare-and-swap on the version the caller observed and fails
// with common.ErrStaleState when the stored version has moved on.
type Writer interface {
	ApplyMatch(ctx context.Context, mutation model.MatchMutation) error
	ApplyAssignment(ctx context.Context, assignment model.CategoryAssignment) error
	SaveSuppression(ctx context.Context, suppression model.MatchSuppression) error
	SavePattern(ctx context.Context, pattern *model.LearningPattern) error
}

// Storage defines the contract for our persistence layer. Every read and
// write is scoped to one user.
type Storage interface {
	Writer

	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
	GetTransactionByID(ctx context.Context, userID, id string) (*model.Transaction, error)
	GetTransactions(ctx context.Context, userID string, filter TransactionFilter) ([]model.Transaction, error)
	GetUsers(ctx context.Context) ([]string, error)

	// Category operations
	CreateCategory(ctx context.Context, category *model.Category) error
	GetCategory(ctx context.Context, userID, categoryID string) (*model.Category, error)
	GetCategoryByName(ctx context.Context, userID, name string) (*model.Category, error)
	GetCategories(ctx context.Context, userID string) ([]model.Category, error)

	// Learning pattern operations
	ListPatterns(ctx context.Context, userID string, patternType model.PatternType) ([]model.LearningPattern, error)
	FindPattern(ctx context.Context, userID string, patternType model.PatternType, value string) (*model.LearningPattern, error)

	// Match suppression operations
	GetSuppressions(ctx context.Context, userID string) ([]model.MatchSuppression, error)
	ClearSuppressions(ctx context.Context, userID string) (int, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Writer
	Commit() error
	Rollback() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
