package engine

import (
	"context"
	"log/slog"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/pattern"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// BulkAssignReport summarizes a vendor-wide category assignment.
type BulkAssignReport struct {
	Category  model.Category
	Assigned  []model.CategoryAssignment
	Conflicts map[string]error // Keyed by transaction id
	Unchanged int
	Learned   int // Distinct vendor signatures reinforced
}

// SuggestCategory ranks likely categories for one stored transaction.
func (e *Engine) SuggestCategory(ctx context.Context, userID, txnID string) ([]pattern.Suggestion, error) {
	txn, err := e.storage.GetTransactionByID(ctx, userID, txnID)
	if err != nil {
		return nil, err
	}
	return e.learner.Suggest(ctx, e.storage, userID, *txn)
}

// AssignCategory sets the category on one transaction and, once the change is
// stored, learns the transaction's vendor toward it. It fails with
// ErrStaleState when the record is no longer at the version the caller read.
func (e *Engine) AssignCategory(ctx context.Context, userID string, ref model.TransactionRef, categoryID string) (*model.CategoryAssignment, error) {
	txn, err := e.observe(ctx, userID, ref)
	if err != nil {
		return nil, err
	}
	assignment, err := e.learner.PrepareAssign(ctx, e.storage, userID, *txn, categoryID)
	if err != nil {
		return nil, err
	}
	if err := e.storage.ApplyAssignment(ctx, *assignment); err != nil {
		return nil, err
	}

	if signature := e.learner.Signature(txn.Description); signature != "" {
		if _, err := e.learner.LearnSignature(ctx, e.storage, userID, signature, categoryID); err != nil {
			return assignment, err
		}
	}

	slog.Info("Assigned category",
		"user_id", userID,
		"transaction_id", ref.ID,
		"category", assignment.Transaction.Category.Name)
	return assignment, nil
}

// BulkAssignByVendor assigns categoryID to every transaction whose
// description contains vendor. Changes are committed in batches and each
// distinct vendor signature is learned once, after the batch that first
// stores it.
func (e *Engine) BulkAssignByVendor(
	ctx context.Context,
	userID, vendor, categoryID string,
	progress ProgressFunc,
) (*BulkAssignReport, error) {
	txns, err := e.storage.GetTransactions(ctx, userID, service.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	plan, err := e.learner.PlanBulkAssign(ctx, e.storage, userID, vendor, categoryID, txns)
	if err != nil {
		return nil, err
	}

	report := &BulkAssignReport{
		Category:  plan.Category,
		Conflicts: make(map[string]error),
		Unchanged: plan.Unchanged,
	}
	learned := make(map[string]bool)

	outcome, err := e.commitInBatches(ctx, len(plan.Assignments),
		func(w service.Writer, i int) error {
			return w.ApplyAssignment(ctx, plan.Assignments[i])
		},
		func(committed []int) error {
			for _, i := range committed {
				signature := e.learner.Signature(plan.Assignments[i].Transaction.Description)
				if signature == "" || learned[signature] {
					continue
				}
				learned[signature] = true
				if _, err := e.learner.LearnSignature(ctx, e.storage, userID, signature, categoryID); err != nil {
					return err
				}
				report.Learned++
			}
			return nil
		},
		progress,
	)

	for _, i := range outcome.committed {
		report.Assigned = append(report.Assigned, plan.Assignments[i])
	}
	for i, conflictErr := range outcome.conflicts {
		report.Conflicts[plan.Assignments[i].Transaction.ID] = conflictErr
	}

	if err == nil {
		slog.Info("Bulk assigned category",
			"user_id", userID,
			"vendor", vendor,
			"category", plan.Category.Name,
			"assigned", len(report.Assigned),
			"unchanged", report.Unchanged,
			"conflicts", len(report.Conflicts))
	}
	return report, err
}

// DefinePattern creates or replaces an explicit keyword, vendor or amount
// range rule.
func (e *Engine) DefinePattern(
	ctx context.Context,
	userID string,
	patternType model.PatternType,
	value, categoryID string,
	confidence float64,
) (*model.LearningPattern, error) {
	p, err := e.learner.Define(ctx, e.storage, userID, patternType, value, categoryID, confidence)
	if err != nil {
		return nil, err
	}
	common.LogInfo("Defined pattern", common.Fields{
		"user_id":    userID,
		"type":       p.Type,
		"value":      p.Value,
		"confidence": p.Confidence,
	})
	return p, nil
}

// ListPatterns returns the user's patterns, optionally of one type.
func (e *Engine) ListPatterns(ctx context.Context, userID string, patternType model.PatternType) ([]model.LearningPattern, error) {
	return e.storage.ListPatterns(ctx, userID, patternType)
}
