package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/matching"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// BulkMatchReport summarizes a bulk confirm or auto-propose run.
type BulkMatchReport struct {
	Committed      []model.MatchMutation
	Voided         []model.MatchCandidate // A leg was taken by a better pair
	Conflicts      []matching.BulkConflict
	BelowThreshold int
	Learned        int // Patterns reinforced from confirmed pairs
}

// loadWorkspace reads the user's transactions and active rejections.
func (e *Engine) loadWorkspace(ctx context.Context, userID string) (*matching.Index, *matching.Suppressions, error) {
	txns, err := e.storage.GetTransactions(ctx, userID, service.TransactionFilter{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	suppressions, err := e.storage.GetSuppressions(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load rejected pairs: %w", err)
	}
	return matching.NewIndex(txns), matching.NewSuppressions(suppressions...), nil
}

// observe reads a transaction and checks that it still carries the version
// token the caller saw.
func (e *Engine) observe(ctx context.Context, userID string, ref model.TransactionRef) (*model.Transaction, error) {
	if ref.Version < 1 {
		return nil, fmt.Errorf("%w: transaction %s needs the version it was read at", common.ErrValidation, ref.ID)
	}
	txn, err := e.storage.GetTransactionByID(ctx, userID, ref.ID)
	if err != nil {
		return nil, err
	}
	if txn.Version != ref.Version {
		return nil, fmt.Errorf("%w: transaction %s is at version %d, caller read version %d",
			common.ErrStaleState, ref.ID, txn.Version, ref.Version)
	}
	return txn, nil
}

// loadPair reads two transactions as the caller observed them. The resulting
// mutation expects those same versions when it is written.
func (e *Engine) loadPair(ctx context.Context, userID string, a, b model.TransactionRef) (*matching.Index, error) {
	if a.ID == b.ID {
		return nil, fmt.Errorf("%w: cannot match transaction %s with itself", common.ErrInvalidPair, a.ID)
	}
	txns := make([]model.Transaction, 0, 2)
	for _, ref := range []model.TransactionRef{a, b} {
		txn, err := e.observe(ctx, userID, ref)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	return matching.NewIndex(txns), nil
}

// FindCandidates lists every eligible pairing among the user's unmatched
// transactions, best first.
func (e *Engine) FindCandidates(ctx context.Context, userID string) ([]model.MatchCandidate, error) {
	idx, suppressed, err := e.loadWorkspace(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.matcher.FindCandidates(idx.Transactions(), suppressed), nil
}

// SuggestMatches lists the best partners for one transaction. A limit of zero
// uses the configured suggestion limit.
func (e *Engine) SuggestMatches(ctx context.Context, userID, txnID string, limit int) ([]model.MatchCandidate, error) {
	idx, suppressed, err := e.loadWorkspace(ctx, userID)
	if err != nil {
		return nil, err
	}
	target, ok := idx.Get(txnID)
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, txnID)
	}
	if limit <= 0 {
		limit = e.cfg.Matching.SuggestionLimit
	}
	return e.matcher.SuggestFor(target, idx.Transactions(), suppressed, limit), nil
}

// ConfirmMatch links two transactions as a confirmed pair and learns from the
// pair once it is stored. It fails with ErrStaleState when either record is
// no longer at the version the caller read.
func (e *Engine) ConfirmMatch(ctx context.Context, userID string, a, b model.TransactionRef) (*model.MatchMutation, error) {
	idx, err := e.loadPair(ctx, userID, a, b)
	if err != nil {
		return nil, err
	}
	mutation, err := e.matcher.Confirm(idx, a.ID, b.ID)
	if err != nil {
		return nil, err
	}
	if mutation.NoOp {
		return mutation, nil
	}
	if err := e.storage.ApplyMatch(ctx, *mutation); err != nil {
		return nil, err
	}

	slog.Info("Confirmed match", "user_id", userID, "a", a.ID, "b", b.ID, "score", mutation.Score)
	e.learnFromMatches(ctx, userID, []model.MatchMutation{*mutation})
	return mutation, nil
}

// ProposeMatch links two transactions for review without confirming them.
func (e *Engine) ProposeMatch(ctx context.Context, userID string, a, b model.TransactionRef) (*model.MatchMutation, error) {
	idx, err := e.loadPair(ctx, userID, a, b)
	if err != nil {
		return nil, err
	}
	mutation, err := e.matcher.Propose(idx, a.ID, b.ID)
	if err != nil {
		return nil, err
	}
	if mutation.NoOp {
		return mutation, nil
	}
	if err := e.storage.ApplyMatch(ctx, *mutation); err != nil {
		return nil, err
	}
	return mutation, nil
}

// Unmatch clears the link between two transactions that point at each other.
func (e *Engine) Unmatch(ctx context.Context, userID string, a, b model.TransactionRef) (*model.MatchMutation, error) {
	idx, err := e.loadPair(ctx, userID, a, b)
	if err != nil {
		return nil, err
	}
	mutation, err := e.matcher.Unmatch(idx, a.ID, b.ID)
	if err != nil {
		return nil, err
	}
	if err := e.storage.ApplyMatch(ctx, *mutation); err != nil {
		return nil, err
	}
	slog.Info("Cleared match", "user_id", userID, "a", a.ID, "b", b.ID)
	return mutation, nil
}

// RejectMatch stops the pair from being proposed again until either
// transaction's underlying data changes. The rejection records the
// fingerprints of the versions the caller read.
func (e *Engine) RejectMatch(ctx context.Context, userID string, a, b model.TransactionRef) (model.MatchSuppression, error) {
	idx, err := e.loadPair(ctx, userID, a, b)
	if err != nil {
		return model.MatchSuppression{}, err
	}
	suppression, err := e.matcher.Reject(idx, matching.NewSuppressions(), a.ID, b.ID)
	if err != nil {
		return model.MatchSuppression{}, err
	}
	if err := e.storage.SaveSuppression(ctx, suppression); err != nil {
		return model.MatchSuppression{}, err
	}
	return suppression, nil
}

// ClearRejections forgets every rejected pair for the user.
func (e *Engine) ClearRejections(ctx context.Context, userID string) (int, error) {
	return e.storage.ClearSuppressions(ctx, userID)
}

// BulkConfirm confirms every candidate scoring at least threshold, best first,
// never using a transaction twice. A threshold of zero uses the configured
// bulk threshold.
func (e *Engine) BulkConfirm(ctx context.Context, userID string, threshold float64, progress ProgressFunc) (*BulkMatchReport, error) {
	return e.bulkMatch(ctx, userID, threshold, true, progress)
}

// AutoPropose runs the same pass as BulkConfirm but leaves pairs pending review.
func (e *Engine) AutoPropose(ctx context.Context, userID string, threshold float64, progress ProgressFunc) (*BulkMatchReport, error) {
	return e.bulkMatch(ctx, userID, threshold, false, progress)
}

func (e *Engine) bulkMatch(ctx context.Context, userID string, threshold float64, confirm bool, progress ProgressFunc) (*BulkMatchReport, error) {
	if threshold <= 0 {
		threshold = e.cfg.Matching.BulkThreshold
	}
	idx, suppressed, err := e.loadWorkspace(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidates := e.matcher.FindCandidates(idx.Transactions(), suppressed)
	var plan matching.BulkResult
	if confirm {
		plan = e.matcher.BulkConfirm(idx, candidates, threshold)
	} else {
		plan = e.matcher.AutoPropose(idx, candidates, threshold)
	}

	report := &BulkMatchReport{
		Voided:         plan.Voided,
		Conflicts:      plan.Conflicts,
		BelowThreshold: plan.BelowThreshold,
	}

	slog.Info("Planned bulk match",
		"user_id", userID,
		"candidates", len(candidates),
		"planned", len(plan.Applied),
		"threshold", threshold,
		"confirm", confirm)

	outcome, err := e.commitInBatches(ctx, len(plan.Applied),
		func(w service.Writer, i int) error {
			return w.ApplyMatch(ctx, plan.Applied[i])
		},
		func(committed []int) error {
			if !confirm {
				return nil
			}
			batch := make([]model.MatchMutation, 0, len(committed))
			for _, i := range committed {
				batch = append(batch, plan.Applied[i])
			}
			report.Learned += e.learnFromMatches(ctx, userID, batch)
			return nil
		},
		progress,
	)

	for _, i := range outcome.committed {
		report.Committed = append(report.Committed, plan.Applied[i])
	}
	for i, m := range plan.Applied {
		conflictErr, ok := outcome.conflicts[i]
		if !ok {
			continue
		}
		report.Conflicts = append(report.Conflicts, matching.BulkConflict{
			Err: conflictErr,
			Candidate: model.MatchCandidate{
				PaidOutID: m.A.ID,
				PaidInID:  m.B.ID,
				Amount:    m.A.Amount.Abs(),
				Score:     m.Score,
			},
		})
	}
	return report, err
}

// learnFromMatches feeds stored pairs to the learner. The pairs are already
// committed, so failures are logged rather than returned.
func (e *Engine) learnFromMatches(ctx context.Context, userID string, mutations []model.MatchMutation) int {
	learned := 0
	for _, m := range mutations {
		if !m.A.IsConfirmed {
			continue
		}
		patterns, err := e.learner.LearnFromMatch(ctx, e.storage, userID, m.A, m.B)
		if err != nil {
			common.LogError(err, "Failed to learn from match", common.Fields{
				"user_id": userID,
				"a":       m.A.ID,
				"b":       m.B.ID,
			})
			continue
		}
		learned += len(patterns)
	}
	return learned
}
