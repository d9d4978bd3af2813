// Package testutil provides database and fixture helpers shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/Veraticus/the-books-must-balance/internal/storage"
	"github.com/Veraticus/the-books-must-balance/internal/testutil/categories"
)

// DefaultUserID owns the data seeded by SetupTestDB.
const DefaultUserID = "test-user"

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage    service.Storage
	t          *testing.T
	UserID     string
	Categories categories.Categories
}

// SetupTestDB creates a migrated in-memory database seeded with the fixture's
// categories for DefaultUserID.
//
// Example:
//
//	db := testutil.SetupTestDB(t, categories.FixtureChartOfAccounts)
func SetupTestDB(t *testing.T, fixture categories.Fixture) *TestDB {
	t.Helper()
	return SetupTestDBWithBuilder(t, func(b categories.Builder) categories.Builder {
		return b.WithFixture(fixture)
	})
}

// SetupTestDBWithBuilder creates a test database using a category builder.
func SetupTestDBWithBuilder(t *testing.T, configure func(categories.Builder) categories.Builder) *TestDB {
	t.Helper()

	builder := categories.NewBuilder(t)
	if configure != nil {
		builder = configure(builder)
	}

	store := newMigratedStorage(t)

	cats, err := builder.Build(context.Background(), store, DefaultUserID)
	if err != nil {
		t.Fatalf("failed to build categories: %v", err)
	}

	return &TestDB{
		Storage:    store,
		Categories: cats,
		UserID:     DefaultUserID,
		t:          t,
	}
}

func newMigratedStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return store
}

// Category returns the seeded category with the given name or fails the test.
func (db *TestDB) Category(name categories.CategoryName) model.Category {
	db.t.Helper()
	return db.Categories.MustFind(db.t, name)
}

// Seed stores the transactions, filling in the test user where it is missing.
func (db *TestDB) Seed(txns ...model.Transaction) {
	db.t.Helper()

	for i := range txns {
		if txns[i].UserID == "" {
			txns[i].UserID = db.UserID
		}
	}
	if _, err := db.Storage.SaveTransactions(context.Background(), txns); err != nil {
		db.t.Fatalf("failed to seed transactions: %v", err)
	}
}

// MustGet reloads a transaction or fails the test.
func (db *TestDB) MustGet(id string) model.Transaction {
	db.t.Helper()

	txn, err := db.Storage.GetTransactionByID(context.Background(), db.UserID, id)
	if err != nil {
		db.t.Fatalf("failed to load transaction %s: %v", id, err)
	}
	return *txn
}

// Ref reads a transaction and returns it with its current version token.
func (db *TestDB) Ref(id string) model.TransactionRef {
	db.t.Helper()
	return db.MustGet(id).Ref()
}

// WithTransaction executes fn within a database transaction that is always
// rolled back afterwards.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	ctx := context.Background()
	tx, err := db.Storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}
