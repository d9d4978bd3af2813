// Package storage provides the data persistence layer for the books application.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/mattn/go-sqlite3"
)

var _ service.Storage = (*SQLiteStorage)(nil)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dsn := ":memory:"
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// inTx runs fn inside its own transaction, committing on success.
func (s *SQLiteStorage) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", retryable(err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", retryable(err))
	}
	return nil
}

// retryable marks lock contention so common.WithRetry tries again once the
// busy timeout has been exhausted.
func retryable(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
		return &common.RetryableError{Err: err, Retryable: true}
	}
	return err
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to the main storage with the transaction.
func (t *sqliteTransaction) ApplyMatch(ctx context.Context, mutation model.MatchMutation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMatchMutation(mutation); err != nil {
		return err
	}
	// Both sides land or neither does, even when the caller keeps the
	// surrounding transaction after a stale side.
	if _, err := t.tx.ExecContext(ctx, `SAVEPOINT apply_match`); err != nil {
		return fmt.Errorf("failed to open savepoint: %w", err)
	}
	if err := t.storage.applyMatchTx(ctx, t.tx, mutation); err != nil {
		_, _ = t.tx.ExecContext(ctx, `ROLLBACK TO apply_match`)
		_, _ = t.tx.ExecContext(ctx, `RELEASE apply_match`)
		return err
	}
	if _, err := t.tx.ExecContext(ctx, `RELEASE apply_match`); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

func (t *sqliteTransaction) ApplyAssignment(ctx context.Context, assignment model.CategoryAssignment) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAssignment(assignment); err != nil {
		return err
	}
	return t.storage.applyAssignmentTx(ctx, t.tx, assignment)
}

func (t *sqliteTransaction) SaveSuppression(ctx context.Context, suppression model.MatchSuppression) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSuppression(suppression); err != nil {
		return err
	}
	return t.storage.saveSuppressionTx(ctx, t.tx, suppression)
}

func (t *sqliteTransaction) SavePattern(ctx context.Context, pattern *model.LearningPattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePattern(pattern); err != nil {
		return err
	}
	return t.storage.savePatternTx(ctx, t.tx, pattern)
}
