package matching

import (
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirm_Errors(t *testing.T) {
	m := New(DefaultConfig())

	tests := []struct {
		wantErr error
		name    string
		a, b    string
	}{
		{name: "same id", a: "o1", b: "o1", wantErr: common.ErrInvalidPair},
		{name: "same type", a: "o1", b: "o2", wantErr: common.ErrInvalidPair},
		{name: "missing", a: "o1", b: "nope", wantErr: common.ErrNotFound},
		{name: "blank id", a: "", b: "i1", wantErr: common.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := NewIndex([]model.Transaction{
				txn("o1", model.PaidOut, "-5.00", day(1), "x"),
				txn("o2", model.PaidOut, "-5.00", day(1), "x"),
				txn("i1", model.PaidIn, "5.00", day(1), "x"),
			})
			_, err := m.Confirm(idx, tt.a, tt.b)
			require.ErrorIs(t, err, tt.wantErr)

			// Fail fast: nothing changed.
			for _, got := range idx.Transactions() {
				assert.Equal(t, int64(1), got.Version)
				assert.Nil(t, got.MatchedTransactionID)
			}
		})
	}
}

func TestConfirm_ConflictWithOtherPartner(t *testing.T) {
	m := New(DefaultConfig())
	idx := NewIndex([]model.Transaction{
		txn("o1", model.PaidOut, "-5.00", day(1), "x"),
		txn("i1", model.PaidIn, "5.00", day(1), "x"),
		txn("i2", model.PaidIn, "5.00", day(1), "x"),
	})

	_, err := m.Confirm(idx, "o1", "i1")
	require.NoError(t, err)

	_, err = m.Confirm(idx, "o1", "i2")
	require.ErrorIs(t, err, common.ErrConflict)

	i2, _ := idx.Get("i2")
	assert.Equal(t, model.MatchStatusUnmatched, i2.MatchStatus())
	assert.Equal(t, int64(1), i2.Version)
}

func TestConfirm_Idempotent(t *testing.T) {
	m := New(DefaultConfig())
	idx := NewIndex([]model.Transaction{
		txn("o1", model.PaidOut, "-5.00", day(1), "x"),
		txn("i1", model.PaidIn, "5.00", day(1), "x"),
	})

	first, err := m.Confirm(idx, "o1", "i1")
	require.NoError(t, err)
	assert.False(t, first.NoOp)

	second, err := m.Confirm(idx, "i1", "o1")
	require.NoError(t, err)
	assert.True(t, second.NoOp)

	o1, _ := idx.Get("o1")
	assert.Equal(t, int64(2), o1.Version)
}

func TestPropose_ThenConfirm(t *testing.T) {
	m := New(DefaultConfig()).WithClock(func() time.Time { return day(20) })
	idx := NewIndex([]model.Transaction{
		txn("o1", model.PaidOut, "-5.00", day(1), "x"),
		txn("i1", model.PaidIn, "5.00", day(1), "x"),
		txn("i2", model.PaidIn, "5.00", day(1), "x"),
	})

	_, err := m.Propose(idx, "o1", "i1")
	require.NoError(t, err)
	o1, _ := idx.Get("o1")
	assert.Equal(t, model.MatchStatusPendingReview, o1.MatchStatus())
	assert.Equal(t, day(20), o1.UpdatedAt)

	// A pending link still blocks a different partner.
	_, err = m.Confirm(idx, "o1", "i2")
	require.ErrorIs(t, err, common.ErrConflict)

	mutation, err := m.Confirm(idx, "o1", "i1")
	require.NoError(t, err)
	assert.False(t, mutation.NoOp)
	assert.Equal(t, int64(2), mutation.ExpectedVersionA)
	assert.Equal(t, model.MatchStatusMatched, mutation.A.MatchStatus())
	assert.Equal(t, model.MatchStatusMatched, mutation.B.MatchStatus())
}

func TestUnmatch(t *testing.T) {
	m := New(DefaultConfig())
	idx := NewIndex([]model.Transaction{
		txn("o1", model.PaidOut, "-5.00", day(1), "x"),
		txn("i1", model.PaidIn, "5.00", day(1), "x"),
		txn("i2", model.PaidIn, "5.00", day(1), "x"),
	})

	_, err := m.Unmatch(idx, "o1", "i1")
	require.ErrorIs(t, err, common.ErrInvalidPair)

	_, err = m.Confirm(idx, "o1", "i1")
	require.NoError(t, err)

	mutation, err := m.Unmatch(idx, "i1", "o1")
	require.NoError(t, err)
	assert.Nil(t, mutation.A.MatchedTransactionID)
	assert.Nil(t, mutation.B.MatchConfidence)
	assert.False(t, mutation.B.IsConfirmed)

	// Free again, so a different partner is fine now.
	_, err = m.Confirm(idx, "o1", "i2")
	assert.NoError(t, err)
}

func TestBulkConfirm_Greedy(t *testing.T) {
	m := New(DefaultConfig())
	txns := []model.Transaction{
		txn("o1", model.PaidOut, "-30.00", day(5), "rent flat"),
		txn("o2", model.PaidOut, "-30.00", day(6), "rent"),
		txn("i1", model.PaidIn, "30.00", day(5), "rent flat"),
		txn("i2", model.PaidIn, "30.00", day(7), "misc"),
		txn("o3", model.PaidOut, "-9.99", day(1), "coffee"),
		txn("i3", model.PaidIn, "9.99", day(3), "unrelated"),
	}
	idx := NewIndex(txns)
	candidates := m.FindCandidates(txns, nil)

	result := m.BulkConfirm(idx, candidates, 80)

	seen := make(map[string]string)
	for _, mutation := range result.Applied {
		assert.GreaterOrEqual(t, mutation.Score, 80.0)
		for _, pair := range [][2]string{{mutation.A.ID, mutation.B.ID}, {mutation.B.ID, mutation.A.ID}} {
			if prev, ok := seen[pair[0]]; ok {
				t.Fatalf("%s assigned to both %s and %s", pair[0], prev, pair[1])
			}
			seen[pair[0]] = pair[1]
		}
	}

	require.Len(t, result.Applied, 2)
	assert.Equal(t, "i1", seen["o1"])
	assert.Equal(t, "i2", seen["o2"])
	assert.NotEmpty(t, result.Voided)
	assert.Equal(t, 2, result.BelowThreshold)

	for _, c := range candidates {
		if c.Score >= 80 {
			continue
		}
		out, _ := idx.Get(c.PaidOutID)
		if out.PartnerID() == c.PaidInID {
			t.Fatalf("candidate below threshold was confirmed: %+v", c)
		}
	}

	// Every confirmed record points back at its partner.
	for _, got := range idx.Transactions() {
		if got.MatchStatus() != model.MatchStatusMatched {
			continue
		}
		partner, ok := idx.Get(got.PartnerID())
		require.True(t, ok)
		assert.Equal(t, got.ID, partner.PartnerID())
		assert.NotEqual(t, got.Type, partner.Type)
	}
}

func TestBulkConfirm_RecordsConflicts(t *testing.T) {
	m := New(DefaultConfig())
	partner := "elsewhere"
	taken := txn("i1", model.PaidIn, "5.00", day(1), "x")
	taken.MatchedTransactionID = &partner
	taken.IsConfirmed = true

	idx := NewIndex([]model.Transaction{txn("o1", model.PaidOut, "-5.00", day(1), "x"), taken})
	stale := []model.MatchCandidate{{PaidOutID: "o1", PaidInID: "i1", Score: 100}}

	result := m.BulkConfirm(idx, stale, 80)

	assert.Empty(t, result.Applied)
	require.Len(t, result.Conflicts, 1)
	assert.ErrorIs(t, result.Conflicts[0].Err, common.ErrConflict)
}

func TestAutoPropose(t *testing.T) {
	m := New(DefaultConfig())
	txns := []model.Transaction{
		txn("o1", model.PaidOut, "-5.00", day(1), "x"),
		txn("i1", model.PaidIn, "5.00", day(1), "x"),
	}
	idx := NewIndex(txns)

	result := m.AutoPropose(idx, m.FindCandidates(txns, nil), 50)
	require.Len(t, result.Applied, 1)
	assert.Equal(t, model.MatchStatusPendingReview, result.Applied[0].A.MatchStatus())
}

func TestNewIndex_Copies(t *testing.T) {
	source := []model.Transaction{txn("o1", model.PaidOut, "-5.00", day(1), "x")}
	idx := NewIndex(source)
	source[0].Description = "changed"

	got, ok := idx.Get("o1")
	require.True(t, ok)
	assert.Equal(t, "x", got.Description)
	assert.Equal(t, 1, idx.Len())
}
