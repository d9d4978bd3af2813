package main

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/engine"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *session {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))

	eng, err := engine.NewWithConfig(store, engine.DefaultConfig())
	require.NoError(t, err)

	_, err = store.SaveTransactions(ctx, []model.Transaction{{
		ID:          "o1",
		UserID:      "u1",
		Date:        time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("-12.00"),
		Description: "TESCO STORES 2231",
		Type:        model.PaidOut,
		AccountName: "Current",
	}})
	require.NoError(t, err)

	return &session{store: store, engine: eng, userID: "u1"}
}

func TestSessionMutate(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	groceries := &model.Category{UserID: "u1", Name: "Groceries", Component: model.ComponentExpense}
	require.NoError(t, s.store.CreateCategory(ctx, groceries))

	assign := func(refs []model.TransactionRef) error {
		_, err := s.engine.AssignCategory(ctx, s.userID, refs[0], groceries.ID)
		return err
	}

	// A bare id is read at its current version.
	require.NoError(t, s.mutate(ctx, "assign", []model.TransactionRef{{ID: "o1"}}, assign))

	// A pinned version the record has moved past is reported, not retried.
	calls := 0
	err := s.mutate(ctx, "assign", []model.TransactionRef{{ID: "o1", Version: 1}}, func(refs []model.TransactionRef) error {
		calls++
		return assign(refs)
	})
	assert.ErrorIs(t, err, common.ErrStaleState)
	assert.Equal(t, 1, calls)

	require.NoError(t, s.mutate(ctx, "assign", []model.TransactionRef{{ID: "o1", Version: 2}}, assign))

	stored, err := s.store.GetTransactionByID(ctx, "u1", "o1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.Version)
}
