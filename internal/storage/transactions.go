package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

const transactionColumns = `
	t.id, t.user_id, t.date, t.amount, t.description, t.type, t.account_name,
	t.balance, t.category_id, c.name, c.component, c.subcategory,
	t.matched_transaction_id, t.match_confidence, t.is_confirmed, t.version, t.updated_at`

const transactionFrom = `
	FROM transactions t
	LEFT JOIN categories c ON c.id = t.category_id`

// SaveTransactions inserts new transactions. Records whose id already exists
// are left untouched. It returns how many rows were inserted.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateTransactions(transactions); err != nil {
		return 0, err
	}

	var inserted int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		inserted, err = s.saveTransactionsTx(ctx, tx, transactions)
		return err
	})
	if err != nil {
		return 0, err
	}

	slog.Debug("saved transactions", "received", len(transactions), "inserted", inserted)
	return inserted, nil
}

func (s *SQLiteStorage) saveTransactionsTx(ctx context.Context, tx *sql.Tx, transactions []model.Transaction) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			id, user_id, date, amount, description, type, account_name,
			balance, category_id, matched_transaction_id, match_confidence,
			is_confirmed, version, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	var inserted int
	for _, txn := range transactions {
		version := txn.Version
		if version < 1 {
			version = 1
		}
		updatedAt := txn.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}

		var balance, categoryID sql.NullString
		if txn.Balance != nil {
			balance = sql.NullString{String: txn.Balance.StringFixed(2), Valid: true}
		}
		if txn.IsCategorized() {
			categoryID = sql.NullString{String: txn.Category.ID, Valid: true}
		}

		result, err := stmt.ExecContext(ctx,
			txn.ID, txn.UserID, txn.Date.Format(dateLayout), txn.Amount.StringFixed(2),
			txn.Description, string(txn.Type), txn.AccountName,
			balance, categoryID, nullString(txn.MatchedTransactionID), nullFloat(txn.MatchConfidence),
			txn.IsConfirmed, version, updatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
		n, _ := result.RowsAffected()
		inserted += int(n)
	}

	return inserted, nil
}

// GetTransactionByID returns one of the user's transactions.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, userID, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getTransactionByIDTx(ctx, s.db, userID, id)
}

func (s *SQLiteStorage) getTransactionByIDTx(ctx context.Context, q queryable, userID, id string) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+transactionFrom+` WHERE t.user_id = ? AND t.id = ?`,
		userID, id)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// GetTransactions returns the user's transactions ordered by date then id.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, userID string, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	var query strings.Builder
	query.WriteString(`SELECT ` + transactionColumns + transactionFrom + ` WHERE t.user_id = ?`)
	args := []any{userID}

	if filter.StartDate != nil {
		query.WriteString(` AND t.date >= ?`)
		args = append(args, filter.StartDate.Format(dateLayout))
	}
	if filter.EndDate != nil {
		query.WriteString(` AND t.date <= ?`)
		args = append(args, filter.EndDate.Format(dateLayout))
	}
	if filter.AccountName != "" {
		query.WriteString(` AND t.account_name = ?`)
		args = append(args, filter.AccountName)
	}
	if filter.Uncategorized {
		query.WriteString(` AND t.category_id IS NULL`)
	}
	switch filter.Status {
	case "":
	case model.MatchStatusUnmatched:
		query.WriteString(` AND t.matched_transaction_id IS NULL`)
	case model.MatchStatusPendingReview:
		query.WriteString(` AND t.matched_transaction_id IS NOT NULL AND t.is_confirmed = 0`)
	case model.MatchStatusMatched:
		query.WriteString(` AND t.matched_transaction_id IS NOT NULL AND t.is_confirmed = 1`)
	default:
		return nil, fmt.Errorf("%w: unknown match status %q", common.ErrValidation, filter.Status)
	}

	query.WriteString(` ORDER BY t.date, t.id`)
	if filter.Limit > 0 {
		query.WriteString(` LIMIT ? OFFSET ?`)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// GetUsers returns every user that owns at least one transaction.
func (s *SQLiteStorage) GetUsers(ctx context.Context) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM transactions ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// ApplyMatch writes both sides of a match mutation atomically.
func (s *SQLiteStorage) ApplyMatch(ctx context.Context, mutation model.MatchMutation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMatchMutation(mutation); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.applyMatchTx(ctx, tx, mutation)
	})
}

func (s *SQLiteStorage) applyMatchTx(ctx context.Context, q queryable, mutation model.MatchMutation) error {
	if mutation.NoOp {
		return nil
	}

	sides := []struct {
		txn      model.Transaction
		expected int64
	}{
		{mutation.A, mutation.ExpectedVersionA},
		{mutation.B, mutation.ExpectedVersionB},
	}

	for _, side := range sides {
		result, err := q.ExecContext(ctx, `
			UPDATE transactions
			SET matched_transaction_id = ?, match_confidence = ?, is_confirmed = ?,
			    version = ?, updated_at = ?
			WHERE user_id = ? AND id = ? AND version = ?`,
			nullString(side.txn.MatchedTransactionID), nullFloat(side.txn.MatchConfidence), side.txn.IsConfirmed,
			side.txn.Version, side.txn.UpdatedAt,
			side.txn.UserID, side.txn.ID, side.expected,
		)
		if err != nil {
			return fmt.Errorf("failed to update match on %s: %w", side.txn.ID, retryable(err))
		}
		if err := checkSwapped(ctx, q, result, side.txn.UserID, side.txn.ID, side.expected); err != nil {
			return err
		}
	}

	return nil
}

// ApplyAssignment writes a category change.
func (s *SQLiteStorage) ApplyAssignment(ctx context.Context, assignment model.CategoryAssignment) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAssignment(assignment); err != nil {
		return err
	}
	return s.applyAssignmentTx(ctx, s.db, assignment)
}

func (s *SQLiteStorage) applyAssignmentTx(ctx context.Context, q queryable, assignment model.CategoryAssignment) error {
	txn := assignment.Transaction

	var categoryID sql.NullString
	if txn.IsCategorized() {
		categoryID = sql.NullString{String: txn.Category.ID, Valid: true}
	}

	result, err := q.ExecContext(ctx, `
		UPDATE transactions
		SET category_id = ?, version = ?, updated_at = ?
		WHERE user_id = ? AND id = ? AND version = ?`,
		categoryID, txn.Version, txn.UpdatedAt,
		txn.UserID, txn.ID, assignment.ExpectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update category on %s: %w", txn.ID, retryable(err))
	}
	return checkSwapped(ctx, q, result, txn.UserID, txn.ID, assignment.ExpectedVersion)
}

// checkSwapped turns a zero-row compare-and-swap into NotFound or StaleState.
func checkSwapped(ctx context.Context, q queryable, result sql.Result, userID, id string, expected int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 1 {
		return nil
	}

	var current int64
	err = q.QueryRowContext(ctx, `SELECT version FROM transactions WHERE user_id = ? AND id = ?`, userID, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to read version of %s: %w", id, err)
	}
	return fmt.Errorf("%w: transaction %s is at version %d, expected %d", common.ErrStaleState, id, current, expected)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*model.Transaction, error) {
	var (
		txn                                  model.Transaction
		date, amount, typ                    string
		balance, categoryID, matched         sql.NullString
		categoryName, component, subcategory sql.NullString
		confidence                           sql.NullFloat64
	)

	err := row.Scan(
		&txn.ID, &txn.UserID, &date, &amount, &txn.Description, &typ, &txn.AccountName,
		&balance, &categoryID, &categoryName, &component, &subcategory,
		&matched, &confidence, &txn.IsConfirmed, &txn.Version, &txn.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	if txn.Date, err = time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("transaction %s has invalid date %q: %w", txn.ID, date, err)
	}
	if txn.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("transaction %s has invalid amount %q: %w", txn.ID, amount, err)
	}
	txn.Type = model.TransactionType(typ)

	if balance.Valid {
		b, err := decimal.NewFromString(balance.String)
		if err != nil {
			return nil, fmt.Errorf("transaction %s has invalid balance %q: %w", txn.ID, balance.String, err)
		}
		txn.Balance = &b
	}
	if categoryID.Valid {
		txn.Category = &model.CategoryRef{
			ID:          categoryID.String,
			Name:        categoryName.String,
			Component:   model.FinancialComponent(component.String),
			Subcategory: subcategory.String,
		}
	}
	if matched.Valid {
		id := matched.String
		txn.MatchedTransactionID = &id
	}
	if confidence.Valid {
		c := confidence.Float64
		txn.MatchConfidence = &c
	}

	return &txn, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// queryable is satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
