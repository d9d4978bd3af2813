package pattern

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/google/uuid"
)

// Learner suggests categories and updates patterns from assignments.
type Learner struct {
	now   func() time.Time
	newID func() string
	cfg   Config
}

// NewLearner creates a learner with the given policy.
func NewLearner(cfg Config) *Learner {
	return &Learner{
		cfg:   cfg,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// WithClock replaces the time source used for last_used and created_at.
func (l *Learner) WithClock(now func() time.Time) *Learner {
	l.now = now
	return l
}

// Config returns the policy in use.
func (l *Learner) Config() Config {
	return l.cfg
}

// Signature returns the vendor signature learned for a description.
func (l *Learner) Signature(description string) string {
	return NormalizeVendor(description, l.cfg.VendorTokens)
}

// Learn records that txn was assigned categoryID. Agreement with the stored
// vendor pattern moves its confidence toward 100; disagreement switches the
// pattern to the new category at baseline confidence.
func (l *Learner) Learn(ctx context.Context, store Store, userID string, txn model.Transaction, categoryID string) (*model.LearningPattern, error) {
	if err := validateUser(userID, txn); err != nil {
		return nil, err
	}
	signature := l.Signature(txn.Description)
	if signature == "" {
		return nil, fmt.Errorf("%w: transaction %s has no description to learn from", common.ErrValidation, txn.ID)
	}
	category, err := l.category(ctx, store, userID, categoryID)
	if err != nil {
		return nil, err
	}
	return l.learnSignature(ctx, store, userID, signature, category)
}

// LearnSignature reinforces an already normalized vendor signature.
func (l *Learner) LearnSignature(ctx context.Context, store Store, userID, signature, categoryID string) (*model.LearningPattern, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	if signature == "" {
		return nil, fmt.Errorf("%w: vendor signature is required", common.ErrValidation)
	}
	category, err := l.category(ctx, store, userID, categoryID)
	if err != nil {
		return nil, err
	}
	return l.learnSignature(ctx, store, userID, signature, category)
}

func (l *Learner) learnSignature(ctx context.Context, store Store, userID, signature string, category *model.Category) (*model.LearningPattern, error) {
	now := l.now()

	existing, err := store.FindPattern(ctx, userID, model.PatternVendor, signature)
	switch {
	case errors.Is(err, common.ErrNotFound):
		p := &model.LearningPattern{
			ID:         l.newID(),
			UserID:     userID,
			Type:       model.PatternVendor,
			Value:      signature,
			CategoryID: category.ID,
			Confidence: l.cfg.BaselineConfidence,
			UsageCount: 1,
			LastUsed:   now,
			CreatedAt:  now,
		}
		if err := store.SavePattern(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to save vendor pattern %q: %w", signature, err)
		}
		return p, nil
	case err != nil:
		return nil, fmt.Errorf("failed to look up vendor pattern %q: %w", signature, err)
	}

	existing.UsageCount++
	existing.LastUsed = now
	if existing.CategoryID == category.ID {
		w := l.cfg.ReinforceWeight
		existing.Confidence = round2((1-w)*existing.Confidence + w*100)
	} else {
		common.LogDebug("vendor pattern overridden", common.Fields{
			"user_id":      userID,
			"signature":    signature,
			"old_category": existing.CategoryID,
			"new_category": category.ID,
		})
		existing.CategoryID = category.ID
		existing.Confidence = l.cfg.BaselineConfidence
	}

	if err := store.SavePattern(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to save vendor pattern %q: %w", signature, err)
	}
	return existing, nil
}

// Define creates or replaces an explicit rule. A zero confidence means the
// baseline.
func (l *Learner) Define(
	ctx context.Context,
	store Store,
	userID string,
	patternType model.PatternType,
	value, categoryID string,
	confidence float64,
) (*model.LearningPattern, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	normalized, err := l.normalizeValue(patternType, value)
	if err != nil {
		return nil, err
	}
	if confidence == 0 {
		confidence = l.cfg.BaselineConfidence
	}
	if confidence < 0 || confidence > 100 {
		return nil, fmt.Errorf("%w: confidence %.2f outside [0,100]", common.ErrValidation, confidence)
	}
	category, err := l.category(ctx, store, userID, categoryID)
	if err != nil {
		return nil, err
	}

	now := l.now()
	p, err := store.FindPattern(ctx, userID, patternType, normalized)
	switch {
	case errors.Is(err, common.ErrNotFound):
		p = &model.LearningPattern{
			ID:         l.newID(),
			UserID:     userID,
			Type:       patternType,
			Value:      normalized,
			UsageCount: 1,
			CreatedAt:  now,
		}
	case err != nil:
		return nil, fmt.Errorf("failed to look up %s pattern %q: %w", patternType, normalized, err)
	default:
		p.UsageCount++
	}

	p.CategoryID = category.ID
	p.Confidence = confidence
	p.LastUsed = now

	if err := ValidatePattern(p); err != nil {
		return nil, err
	}
	if err := store.SavePattern(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save %s pattern %q: %w", patternType, normalized, err)
	}
	return p, nil
}

// Assign sets the category on txn and learns from it. The returned assignment
// carries the version txn had before the change.
func (l *Learner) Assign(ctx context.Context, store Store, userID string, txn model.Transaction, categoryID string) (*model.CategoryAssignment, error) {
	assignment, err := l.PrepareAssign(ctx, store, userID, txn, categoryID)
	if err != nil {
		return nil, err
	}

	if signature := l.Signature(txn.Description); signature != "" {
		if _, err := l.LearnSignature(ctx, store, userID, signature, categoryID); err != nil {
			return nil, err
		}
	}
	return assignment, nil
}

// PrepareAssign builds the category change for txn without learning from it.
// Callers that persist the change first learn with Learn once it is stored.
func (l *Learner) PrepareAssign(ctx context.Context, store Store, userID string, txn model.Transaction, categoryID string) (*model.CategoryAssignment, error) {
	if err := validateUser(userID, txn); err != nil {
		return nil, err
	}
	if txn.ID == "" {
		return nil, fmt.Errorf("%w: transaction id is required", common.ErrValidation)
	}
	category, err := l.category(ctx, store, userID, categoryID)
	if err != nil {
		return nil, err
	}

	assignment := l.apply(txn, category)
	return &assignment, nil
}

// BulkAssignment is the plan for assigning one category across many
// transactions.
type BulkAssignment struct {
	Category    model.Category
	Assignments []model.CategoryAssignment
	Signatures  []string // Distinct vendor signatures, in first-seen order
	Unchanged   int      // Already carried the category
}

// PlanBulkAssign picks every transaction whose description contains vendor as
// a phrase and prepares its category change. Nothing is learned or stored.
func (l *Learner) PlanBulkAssign(
	ctx context.Context,
	store Store,
	userID, vendor, categoryID string,
	txns []model.Transaction,
) (*BulkAssignment, error) {
	if err := validateUser(userID, txns...); err != nil {
		return nil, err
	}
	needle := NormalizeKeyword(vendor)
	if needle == "" {
		return nil, fmt.Errorf("%w: vendor pattern %q has no usable tokens", common.ErrValidation, vendor)
	}
	category, err := l.category(ctx, store, userID, categoryID)
	if err != nil {
		return nil, err
	}

	plan := &BulkAssignment{Category: *category}
	seen := make(map[string]bool)

	for _, txn := range txns {
		if !containsPhrase(txn.Description, needle) {
			continue
		}
		if txn.Category != nil && txn.Category.ID == category.ID {
			plan.Unchanged++
			continue
		}
		plan.Assignments = append(plan.Assignments, l.apply(txn, category))

		signature := l.Signature(txn.Description)
		if signature != "" && !seen[signature] {
			seen[signature] = true
			plan.Signatures = append(plan.Signatures, signature)
		}
	}

	return plan, nil
}

// BulkAssignByVendor plans the assignment and learns once per distinct vendor
// signature in the affected set, however many transactions share it.
func (l *Learner) BulkAssignByVendor(
	ctx context.Context,
	store Store,
	userID, vendor, categoryID string,
	txns []model.Transaction,
) (*BulkAssignment, error) {
	plan, err := l.PlanBulkAssign(ctx, store, userID, vendor, categoryID, txns)
	if err != nil {
		return nil, err
	}
	for _, signature := range plan.Signatures {
		if _, err := l.learnSignature(ctx, store, userID, signature, &plan.Category); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// LearnFromMatch uses a confirmed pair as training data. A categorized leg
// reinforces its own vendor; an uncategorized leg learns its vendor toward the
// partner's category. Transactions are not modified.
func (l *Learner) LearnFromMatch(ctx context.Context, store Store, userID string, a, b model.Transaction) ([]model.LearningPattern, error) {
	if err := validateUser(userID, a, b); err != nil {
		return nil, err
	}

	var learned []model.LearningPattern
	for _, pair := range [][2]model.Transaction{{a, b}, {b, a}} {
		self, partner := pair[0], pair[1]

		categoryID := ""
		switch {
		case self.IsCategorized():
			categoryID = self.Category.ID
		case partner.IsCategorized():
			categoryID = partner.Category.ID
		}
		signature := l.Signature(self.Description)
		if categoryID == "" || signature == "" {
			continue
		}

		p, err := l.LearnSignature(ctx, store, userID, signature, categoryID)
		if errors.Is(err, common.ErrNotFound) {
			// Category was removed since it was assigned.
			continue
		}
		if err != nil {
			return nil, err
		}
		learned = append(learned, *p)
	}
	return learned, nil
}

func (l *Learner) apply(txn model.Transaction, category *model.Category) model.CategoryAssignment {
	updated := txn.Clone()
	updated.Category = category.Ref()
	updated.Version++
	updated.UpdatedAt = l.now()
	return model.CategoryAssignment{
		Transaction:     updated,
		ExpectedVersion: txn.Version,
	}
}

func (l *Learner) category(ctx context.Context, store Store, userID, categoryID string) (*model.Category, error) {
	if categoryID == "" {
		return nil, fmt.Errorf("%w: category id is required", common.ErrValidation)
	}
	category, err := store.GetCategory(ctx, userID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load category %s: %w", categoryID, err)
	}
	return category, nil
}

func containsPhrase(text, phrase string) bool {
	words := Words(text)
	if len(words) == 0 {
		return false
	}
	return strings.Contains(" "+strings.Join(words, " ")+" ", " "+phrase+" ")
}
