package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Categories and transactions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS categories (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					component TEXT NOT NULL CHECK (component IN ('Asset', 'Liability', 'Equity', 'Income', 'Expense')),
					subcategory TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (user_id, name)
				)`,
				`CREATE INDEX idx_categories_user ON categories(user_id)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					date TEXT NOT NULL,
					amount TEXT NOT NULL,
					description TEXT NOT NULL,
					type TEXT NOT NULL CHECK (type IN ('PAID_IN', 'PAID_OUT')),
					account_name TEXT NOT NULL DEFAULT '',
					balance TEXT,
					category_id TEXT REFERENCES categories(id),
					matched_transaction_id TEXT,
					match_confidence REAL CHECK (match_confidence IS NULL OR (match_confidence >= 0 AND match_confidence <= 100)),
					is_confirmed INTEGER NOT NULL DEFAULT 0,
					version INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_user_date ON transactions(user_id, date)`,
				`CREATE INDEX idx_transactions_matched ON transactions(matched_transaction_id)`,
				`CREATE INDEX idx_transactions_category ON transactions(category_id)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Learning patterns",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS learning_patterns (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					pattern_type TEXT NOT NULL CHECK (pattern_type IN ('vendor', 'keyword', 'amount_range')),
					pattern_value TEXT NOT NULL,
					category_id TEXT NOT NULL REFERENCES categories(id),
					confidence REAL NOT NULL CHECK (confidence >= 0 AND confidence <= 100),
					usage_count INTEGER NOT NULL DEFAULT 1 CHECK (usage_count >= 1),
					last_used DATETIME NOT NULL,
					created_at DATETIME NOT NULL,
					UNIQUE (user_id, pattern_type, pattern_value)
				)`,
				`CREATE INDEX idx_learning_patterns_user_type ON learning_patterns(user_id, pattern_type)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Rejected match suppressions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS match_suppressions (
					user_id TEXT NOT NULL,
					paid_out_id TEXT NOT NULL,
					paid_in_id TEXT NOT NULL,
					paid_out_fingerprint TEXT NOT NULL,
					paid_in_fingerprint TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					PRIMARY KEY (user_id, paid_out_id, paid_in_id)
				)`,
			)
		},
	},
	{
		Version:     4,
		Description: "Key transactions by user and rename direction values",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE transactions_new (
					id TEXT NOT NULL,
					user_id TEXT NOT NULL,
					date TEXT NOT NULL,
					amount TEXT NOT NULL,
					description TEXT NOT NULL,
					type TEXT NOT NULL CHECK (type IN ('PaidIn', 'PaidOut')),
					account_name TEXT NOT NULL DEFAULT '',
					balance TEXT,
					category_id TEXT REFERENCES categories(id),
					matched_transaction_id TEXT,
					match_confidence REAL CHECK (match_confidence IS NULL OR (match_confidence >= 0 AND match_confidence <= 100)),
					is_confirmed INTEGER NOT NULL DEFAULT 0,
					version INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (user_id, id)
				)`,
				`INSERT INTO transactions_new
				SELECT id, user_id, date, amount, description,
					CASE type WHEN 'PAID_IN' THEN 'PaidIn' ELSE 'PaidOut' END,
					account_name, balance, category_id, matched_transaction_id, match_confidence,
					is_confirmed, version, created_at, updated_at
				FROM transactions`,
				`DROP TABLE transactions`,
				`ALTER TABLE transactions_new RENAME TO transactions`,
				`CREATE INDEX idx_transactions_user_date ON transactions(user_id, date)`,
				`CREATE INDEX idx_transactions_matched ON transactions(user_id, matched_transaction_id)`,
				`CREATE INDEX idx_transactions_category ON transactions(category_id)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Migrate runs all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the schema version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
