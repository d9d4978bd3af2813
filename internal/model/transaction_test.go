package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransaction_MatchStatus(t *testing.T) {
	partner := "p1"

	tests := []struct {
		name      string
		matchedID *string
		want      MatchStatus
		confirmed bool
	}{
		{name: "no partner", want: MatchStatusUnmatched},
		{name: "no partner ignores stale flag", confirmed: true, want: MatchStatusUnmatched},
		{name: "proposed", matchedID: &partner, want: MatchStatusPendingReview},
		{name: "confirmed", matchedID: &partner, confirmed: true, want: MatchStatusMatched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := Transaction{MatchedTransactionID: tt.matchedID, IsConfirmed: tt.confirmed}
			assert.Equal(t, tt.want, txn.MatchStatus())
		})
	}
}

func TestTransaction_Fingerprint(t *testing.T) {
	base := Transaction{
		ID:          "t1",
		Date:        time.Date(2024, time.March, 4, 15, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("-12.5"),
		Description: "TFL TRAVEL",
		Version:     1,
	}

	same := base
	same.ID = "t2"
	same.Version = 7
	same.Amount = decimal.RequireFromString("-12.50")
	same.Date = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, base.Fingerprint(), same.Fingerprint(), "id, version and time of day do not identify the line")

	changed := base
	changed.Description = "TFL TRAVEL CH"
	assert.NotEqual(t, base.Fingerprint(), changed.Fingerprint())

	moved := base
	moved.Amount = decimal.RequireFromString("-12.51")
	assert.NotEqual(t, base.Fingerprint(), moved.Fingerprint())
}

func TestTransaction_Clone(t *testing.T) {
	partner := "p1"
	confidence := 91.5
	bal := decimal.RequireFromString("100")

	orig := Transaction{
		ID:                   "t1",
		Balance:              &bal,
		Category:             &CategoryRef{ID: "c1", Name: "Groceries", Component: ComponentExpense},
		MatchedTransactionID: &partner,
		MatchConfidence:      &confidence,
	}

	clone := orig.Clone()
	*clone.MatchedTransactionID = "p2"
	*clone.MatchConfidence = 10
	clone.Category.Name = "Dining"
	*clone.Balance = decimal.Zero

	require.NotNil(t, orig.MatchedTransactionID)
	assert.Equal(t, "p1", *orig.MatchedTransactionID)
	assert.Equal(t, 91.5, *orig.MatchConfidence)
	assert.Equal(t, "Groceries", orig.Category.Name)
	assert.True(t, orig.Balance.Equal(bal))
}

func TestTypeAndComponentValidity(t *testing.T) {
	assert.True(t, PaidIn.Valid())
	assert.False(t, TransactionType("TRANSFER").Valid())
	assert.Equal(t, PaidIn, PaidOut.Opposite())

	for _, c := range Components {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, FinancialComponent("Revenue").Valid())

	assert.True(t, PatternAmountRange.Valid())
	assert.False(t, PatternFrequency.Valid(), "frequency suggestions are never stored")
}
