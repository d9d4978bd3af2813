package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// Validation errors. Each wraps common.ErrValidation.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = fmt.Errorf("%w: string parameter cannot be empty", common.ErrValidation)
	ErrNilParameter       = fmt.Errorf("%w: parameter cannot be nil", common.ErrValidation)
	ErrEmptySlice         = fmt.Errorf("%w: slice cannot be empty", common.ErrValidation)
	ErrInvalidTransaction = fmt.Errorf("%w: invalid transaction", common.ErrValidation)
	ErrInvalidCategory    = fmt.Errorf("%w: invalid category", common.ErrValidation)
	ErrInvalidPattern     = fmt.Errorf("%w: invalid learning pattern", common.ErrValidation)
	ErrInvalidMutation    = fmt.Errorf("%w: invalid mutation", common.ErrValidation)
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i, txn := range transactions {
		if err := validateTransaction(&txn); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if strings.TrimSpace(txn.Description) == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidTransaction)
	}
	if !txn.Type.Valid() {
		return fmt.Errorf("%w: type %q must be %s or %s", ErrInvalidTransaction, txn.Type, model.PaidIn, model.PaidOut)
	}
	if !txn.Amount.Equal(txn.Amount.Round(2)) {
		return fmt.Errorf("%w: amount %s has more than 2 decimal places", ErrInvalidTransaction, txn.Amount)
	}
	if txn.Type == model.PaidOut && txn.Amount.IsPositive() || txn.Type == model.PaidIn && txn.Amount.IsNegative() {
		return fmt.Errorf("%w: amount %s does not agree with type %s", ErrInvalidTransaction, txn.Amount, txn.Type)
	}
	if txn.MatchConfidence != nil && (*txn.MatchConfidence < 0 || *txn.MatchConfidence > 100) {
		return fmt.Errorf("%w: match confidence %.2f outside [0,100]", ErrInvalidTransaction, *txn.MatchConfidence)
	}
	return nil
}

// validateCategory validates a category before it is stored.
func validateCategory(category *model.Category) error {
	if category == nil {
		return fmt.Errorf("%w: category", ErrNilParameter)
	}
	if category.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidCategory)
	}
	if strings.TrimSpace(category.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCategory)
	}
	if !category.Component.Valid() {
		return fmt.Errorf("%w: unknown component %q", ErrInvalidCategory, category.Component)
	}
	return nil
}

// validatePattern validates a learning pattern.
func validatePattern(p *model.LearningPattern) error {
	if p == nil {
		return fmt.Errorf("%w: pattern", ErrNilParameter)
	}
	if p.ID == "" || p.UserID == "" || p.Value == "" || p.CategoryID == "" {
		return fmt.Errorf("%w: id, user, value and category are required", ErrInvalidPattern)
	}
	if !p.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidPattern, p.Type)
	}
	if p.Confidence < 0 || p.Confidence > 100 {
		return fmt.Errorf("%w: confidence %.2f outside [0,100]", ErrInvalidPattern, p.Confidence)
	}
	if p.UsageCount < 1 {
		return fmt.Errorf("%w: usage count must be at least 1", ErrInvalidPattern)
	}
	return nil
}

// validateMatchMutation checks both sides of a pair update belong together.
func validateMatchMutation(m model.MatchMutation) error {
	if m.A.ID == "" || m.B.ID == "" {
		return fmt.Errorf("%w: both transaction ids are required", ErrInvalidMutation)
	}
	if m.A.UserID != m.B.UserID {
		return fmt.Errorf("%w: transactions belong to different users", ErrInvalidMutation)
	}
	if m.A.PartnerID() != "" && (m.A.PartnerID() != m.B.ID || m.B.PartnerID() != m.A.ID) {
		return fmt.Errorf("%w: %s and %s do not point at each other", ErrInvalidMutation, m.A.ID, m.B.ID)
	}
	if m.A.PartnerID() == "" && m.B.PartnerID() != "" {
		return fmt.Errorf("%w: only one side of %s/%s is linked", ErrInvalidMutation, m.A.ID, m.B.ID)
	}
	return nil
}

// validateAssignment checks a category assignment.
func validateAssignment(a model.CategoryAssignment) error {
	if a.Transaction.ID == "" || a.Transaction.UserID == "" {
		return fmt.Errorf("%w: transaction id and user are required", ErrInvalidMutation)
	}
	if a.Transaction.Category != nil && a.Transaction.Category.ID == "" {
		return fmt.Errorf("%w: category reference without id", ErrInvalidMutation)
	}
	return nil
}

// validateSuppression checks a suppression entry.
func validateSuppression(s model.MatchSuppression) error {
	if s.UserID == "" || s.PaidOutID == "" || s.PaidInID == "" {
		return fmt.Errorf("%w: suppression needs user and both transaction ids", ErrInvalidMutation)
	}
	return nil
}
