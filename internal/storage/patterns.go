package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
)

const patternColumns = `id, user_id, pattern_type, pattern_value, category_id, confidence, usage_count, last_used, created_at`

// ListPatterns returns the user's learning patterns, optionally of one type.
func (s *SQLiteStorage) ListPatterns(ctx context.Context, userID string, patternType model.PatternType) ([]model.LearningPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	query := `SELECT ` + patternColumns + ` FROM learning_patterns WHERE user_id = ?`
	args := []any{userID}
	if patternType != "" {
		query += ` AND pattern_type = ?`
		args = append(args, string(patternType))
	}
	query += ` ORDER BY pattern_type, pattern_value`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query learning patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	patterns := []model.LearningPattern{}
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating learning patterns: %w", err)
	}
	return patterns, nil
}

// FindPattern returns the pattern for (user, type, value).
func (s *SQLiteStorage) FindPattern(ctx context.Context, userID string, patternType model.PatternType, value string) (*model.LearningPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+patternColumns+`
		FROM learning_patterns
		WHERE user_id = ? AND pattern_type = ? AND pattern_value = ?`,
		userID, string(patternType), value)

	p, err := scanPattern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s pattern %q", common.ErrNotFound, patternType, value)
	}
	return p, err
}

// SavePattern inserts or updates the pattern keyed by (user, type, value).
// An existing row keeps its id and creation time.
func (s *SQLiteStorage) SavePattern(ctx context.Context, pattern *model.LearningPattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePattern(pattern); err != nil {
		return err
	}
	return s.savePatternTx(ctx, s.db, pattern)
}

func (s *SQLiteStorage) savePatternTx(ctx context.Context, q queryable, p *model.LearningPattern) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO learning_patterns (`+patternColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, pattern_type, pattern_value) DO UPDATE SET
			category_id = excluded.category_id,
			confidence = excluded.confidence,
			usage_count = excluded.usage_count,
			last_used = excluded.last_used`,
		p.ID, p.UserID, string(p.Type), p.Value, p.CategoryID,
		p.Confidence, p.UsageCount, p.LastUsed, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save learning pattern: %w", err)
	}
	return nil
}

func scanPattern(row scanner) (*model.LearningPattern, error) {
	var (
		p           model.LearningPattern
		patternType string
	)
	err := row.Scan(&p.ID, &p.UserID, &patternType, &p.Value, &p.CategoryID,
		&p.Confidence, &p.UsageCount, &p.LastUsed, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan learning pattern: %w", err)
	}
	p.Type = model.PatternType(patternType)
	return &p, nil
}
