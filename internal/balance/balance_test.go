package balance

import (
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func jan(day int) time.Time {
	return time.Date(2024, time.January, day, 0, 0, 0, 0, time.UTC)
}

func categorized(id string, component model.FinancialComponent, amount string, date time.Time) model.Transaction {
	typ := model.PaidIn
	if d(amount).IsNegative() {
		typ = model.PaidOut
	}
	return model.Transaction{
		ID:          id,
		UserID:      "u1",
		Date:        date,
		Amount:      d(amount),
		Type:        typ,
		AccountName: "Current",
		Category:    &model.CategoryRef{ID: string(component), Name: string(component), Component: component},
		Version:     1,
	}
}

func componentTotals(asset, expense, liability, equity, income string) *Totals {
	return NewTotals(map[model.FinancialComponent]decimal.Decimal{
		model.ComponentAsset:     d(asset),
		model.ComponentExpense:   d(expense),
		model.ComponentLiability: d(liability),
		model.ComponentEquity:    d(equity),
		model.ComponentIncome:    d(income),
	})
}

func TestValidate_Balanced(t *testing.T) {
	result, err := Validate(componentTotals("100", "20", "30", "50", "40"), DefaultConfig())
	require.NoError(t, err)

	assert.True(t, result.Balanced)
	assert.True(t, result.Imbalance.IsZero())
	assert.True(t, result.LeftSide.Equal(d("120")))
	assert.True(t, result.RightSide.Equal(d("120")))
	assert.Equal(t, 0.0, result.DiscrepancyPercentage)
}

func TestValidate_ReducedIncome(t *testing.T) {
	result, err := Validate(componentTotals("100", "20", "30", "50", "30"), DefaultConfig())
	require.NoError(t, err)

	assert.False(t, result.Balanced)
	assert.True(t, result.Imbalance.Abs().Equal(d("10")), "imbalance %s", result.Imbalance)
	assert.True(t, result.Imbalance.Equal(d("10")))
	assert.InDelta(t, 4.3478, result.DiscrepancyPercentage, 0.0001)
}

func TestValidate_Epsilon(t *testing.T) {
	tests := []struct {
		name     string
		totals   *Totals
		epsilon  string
		balanced bool
	}{
		{
			name:     "rounding penny on small volume",
			totals:   componentTotals("10.01", "0", "0", "0", "10"),
			epsilon:  "0.01",
			balanced: true,
		},
		{
			name:     "two pennies on small volume",
			totals:   componentTotals("10.02", "0", "0", "0", "10"),
			epsilon:  "0.01",
			balanced: false,
		},
		{
			name:     "volume scaled tolerance",
			totals:   componentTotals("500000.40", "0", "0", "0", "500000"),
			epsilon:  "100.00004",
			balanced: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Validate(tt.totals, DefaultConfig())
			require.NoError(t, err)
			assert.True(t, result.Epsilon.Equal(d(tt.epsilon)), "epsilon %s", result.Epsilon)
			assert.Equal(t, tt.balanced, result.Balanced)
		})
	}
}

func TestValidate_Overflow(t *testing.T) {
	_, err := Validate(componentTotals("10000000000000", "0", "0", "0", "0"), DefaultConfig())
	assert.ErrorIs(t, err, common.ErrComputation)

	_, err = Validate(nil, DefaultConfig())
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestCompute(t *testing.T) {
	uncategorized := categorized("u", model.ComponentExpense, "-7.50", jan(10))
	uncategorized.Category = nil

	txns := []model.Transaction{
		categorized("a", model.ComponentAsset, "100.00", jan(2)),
		categorized("e", model.ComponentExpense, "-20.00", jan(3)),
		categorized("e2", model.ComponentExpense, "-5.00", jan(4)),
		categorized("i", model.ComponentIncome, "40.00", jan(5)),
		categorized("late", model.ComponentIncome, "999.00", time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)),
		uncategorized,
	}

	totals, err := Compute(txns, NewPeriod(jan(1), jan(31)))
	require.NoError(t, err)

	assert.True(t, totals.Get(model.ComponentAsset).Equal(d("100")))
	assert.True(t, totals.Get(model.ComponentExpense).Equal(d("-25")))
	assert.True(t, totals.Get(model.ComponentIncome).Equal(d("40")))
	assert.True(t, totals.Get(model.ComponentLiability).IsZero())
	assert.Equal(t, 5, totals.Count)
	assert.Equal(t, 1, totals.UncategorizedCount)
	assert.True(t, totals.UncategorizedVolume.Equal(d("7.5")))
	assert.True(t, totals.Volume.Equal(d("172.5")))
}

func TestCompute_Errors(t *testing.T) {
	precise := categorized("p", model.ComponentAsset, "1.005", jan(2))
	_, err := Compute([]model.Transaction{precise}, Period{})
	assert.ErrorIs(t, err, common.ErrValidation)

	trailingZero := categorized("z", model.ComponentAsset, "1.500", jan(2))
	_, err = Compute([]model.Transaction{trailingZero}, Period{})
	assert.NoError(t, err)

	unknown := categorized("x", model.FinancialComponent("Mystery"), "1.00", jan(2))
	_, err = Compute([]model.Transaction{unknown}, Period{})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestDiagnose_Ranking(t *testing.T) {
	partner := "i"
	matched := categorized("o", model.ComponentAsset, "-30.00", jan(6))
	matched.MatchedTransactionID = &partner
	matched.IsConfirmed = true

	loose := categorized("loose", model.ComponentExpense, "-12.00", jan(7))
	bare := categorized("bare", model.ComponentExpense, "-8.00", jan(8))
	bare.Category = nil

	got, err := Diagnose([]model.Transaction{matched, loose, bare}, NewPeriod(jan(1), jan(31)), d("-10"), DiagnoseOptions{})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, CodeUnmatchedVolume, got[0].Code)
	assert.Equal(t, 2, got[0].AffectedCount)
	assert.True(t, got[0].Magnitude.Equal(d("20")))

	assert.Equal(t, CodeUncategorized, got[1].Code)
	assert.Equal(t, 1, got[1].AffectedCount)

	assert.Equal(t, CodeRightSideHigh, got[2].Code)
	assert.True(t, got[2].Magnitude.Equal(d("10")))
}

func TestDiagnose_AccountReconciliation(t *testing.T) {
	withBalance := func(txn model.Transaction, bal string) model.Transaction {
		b := d(bal)
		txn.Balance = &b
		return txn
	}
	opts := DiagnoseOptions{
		OpeningBalances:  map[string]decimal.Decimal{"Current": d("1000")},
		TimingWindowDays: 3,
	}

	tests := []struct {
		name string
		txns []model.Transaction
		want DiagnosticCode
	}{
		{
			name: "delta equal to a boundary transaction is timing",
			txns: []model.Transaction{
				withBalance(categorized("a", model.ComponentExpense, "-100.00", jan(5)), "900"),
				withBalance(categorized("b", model.ComponentExpense, "-50.00", jan(30)), "900"),
			},
			want: CodeTimingDifference,
		},
		{
			name: "mid-period delta is a reconciliation gap",
			txns: []model.Transaction{
				withBalance(categorized("a", model.ComponentExpense, "-100.00", jan(5)), "900"),
				withBalance(categorized("b", model.ComponentExpense, "-50.00", jan(15)), "900"),
			},
			want: CodeReconciliationDelta,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Diagnose(tt.txns, NewPeriod(jan(1), jan(31)), decimal.Zero, opts)
			require.NoError(t, err)

			var account *Diagnostic
			for i := range got {
				if got[i].Account == "Current" {
					account = &got[i]
				}
			}
			require.NotNil(t, account)
			assert.Equal(t, tt.want, account.Code)
			assert.True(t, account.Magnitude.Equal(d("50")))
		})
	}
}

func TestDiagnose_DerivedOpeningReconciles(t *testing.T) {
	b1, b2 := d("900"), d("850")
	first := categorized("a", model.ComponentExpense, "-100.00", jan(5))
	first.Balance = &b1
	second := categorized("b", model.ComponentExpense, "-50.00", jan(15))
	second.Balance = &b2

	got, err := Diagnose([]model.Transaction{first, second}, NewPeriod(jan(1), jan(31)), decimal.Zero, DiagnoseOptions{TimingWindowDays: 3})
	require.NoError(t, err)
	for _, diag := range got {
		assert.Empty(t, diag.Account, "consistent statement balances produce no account finding")
	}
}

func TestPeriod(t *testing.T) {
	p, err := ParsePeriod("2024-01-31", "2024-01-01")
	require.NoError(t, err)
	assert.True(t, p.Contains(time.Date(2024, time.January, 31, 18, 30, 0, 0, time.UTC)))
	assert.False(t, p.Contains(jan(1).AddDate(0, 0, -1)))

	open := Period{}
	assert.True(t, open.Contains(jan(1)))

	_, err = ParsePeriod("yesterday", "")
	assert.ErrorIs(t, err, common.ErrValidation)
}
