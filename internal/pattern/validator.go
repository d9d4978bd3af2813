package pattern

import (
	"fmt"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// validateUser ensures the caller named a user and the transaction, when it
// carries an owner, belongs to that user.
func validateUser(userID string, txns ...model.Transaction) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", common.ErrValidation)
	}
	for _, txn := range txns {
		if txn.UserID != "" && txn.UserID != userID {
			return fmt.Errorf("%w: transaction %s belongs to a different user", common.ErrValidation, txn.ID)
		}
	}
	return nil
}

// normalizeValue returns the stored form of a pattern value for its type.
func (l *Learner) normalizeValue(patternType model.PatternType, value string) (string, error) {
	var normalized string
	switch patternType {
	case model.PatternVendor:
		normalized = NormalizeVendor(value, l.cfg.VendorTokens)
	case model.PatternKeyword:
		normalized = NormalizeKeyword(value)
	case model.PatternAmountRange:
		r, err := ParseAmountRange(value)
		if err != nil {
			return "", err
		}
		normalized = r.String()
	default:
		return "", fmt.Errorf("%w: unknown pattern type %q", common.ErrValidation, patternType)
	}

	if normalized == "" {
		return "", fmt.Errorf("%w: %s pattern %q has no usable tokens", common.ErrValidation, patternType, value)
	}
	return normalized, nil
}

// ValidatePattern checks a pattern is structurally sound before it is stored.
func ValidatePattern(p *model.LearningPattern) error {
	if p == nil {
		return fmt.Errorf("%w: pattern is nil", common.ErrValidation)
	}
	if p.UserID == "" {
		return fmt.Errorf("%w: pattern user id is required", common.ErrValidation)
	}
	if !p.Type.Valid() {
		return fmt.Errorf("%w: unknown pattern type %q", common.ErrValidation, p.Type)
	}
	if p.Value == "" {
		return fmt.Errorf("%w: pattern value is required", common.ErrValidation)
	}
	if p.CategoryID == "" {
		return fmt.Errorf("%w: pattern category is required", common.ErrValidation)
	}
	if p.Confidence < 0 || p.Confidence > 100 {
		return fmt.Errorf("%w: pattern confidence %.2f outside [0,100]", common.ErrValidation, p.Confidence)
	}
	if p.UsageCount < 1 {
		return fmt.Errorf("%w: pattern usage count must be at least 1", common.ErrValidation)
	}
	return nil
}
