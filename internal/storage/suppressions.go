package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// GetSuppressions returns the user's rejected pairs.
func (s *SQLiteStorage) GetSuppressions(ctx context.Context, userID string) ([]model.MatchSuppression, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, paid_out_id, paid_in_id, paid_out_fingerprint, paid_in_fingerprint, created_at
		FROM match_suppressions
		WHERE user_id = ?
		ORDER BY paid_out_id, paid_in_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query suppressions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var suppressions []model.MatchSuppression
	for rows.Next() {
		var sup model.MatchSuppression
		if err := rows.Scan(&sup.UserID, &sup.PaidOutID, &sup.PaidInID,
			&sup.PaidOutFingerprint, &sup.PaidInFingerprint, &sup.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan suppression: %w", err)
		}
		suppressions = append(suppressions, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suppressions: %w", err)
	}
	return suppressions, nil
}

// SaveSuppression records a rejected pair, replacing an earlier rejection of
// the same pair.
func (s *SQLiteStorage) SaveSuppression(ctx context.Context, suppression model.MatchSuppression) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSuppression(suppression); err != nil {
		return err
	}
	return s.saveSuppressionTx(ctx, s.db, suppression)
}

func (s *SQLiteStorage) saveSuppressionTx(ctx context.Context, q queryable, sup model.MatchSuppression) error {
	_, err := q.ExecContext(ctx, `
		INSERT OR REPLACE INTO match_suppressions (
			user_id, paid_out_id, paid_in_id, paid_out_fingerprint, paid_in_fingerprint, created_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		sup.UserID, sup.PaidOutID, sup.PaidInID,
		sup.PaidOutFingerprint, sup.PaidInFingerprint, sup.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save suppression: %w", err)
	}
	return nil
}

// ClearSuppressions drops every rejected pair for the user and returns how
// many were removed.
func (s *SQLiteStorage) ClearSuppressions(ctx context.Context, userID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM match_suppressions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear suppressions: %w", err)
	}
	n, _ := result.RowsAffected()

	slog.Info("cleared match suppressions", "user_id", userID, "count", n)
	return int(n), nil
}
