package balance

import (
	"fmt"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

// maxMagnitude is the first value that no longer fits DECIMAL(15,2).
var maxMagnitude = decimal.New(1, 13)

// Totals are the signed per-component sums for one period.
type Totals struct {
	Components          map[model.FinancialComponent]decimal.Decimal
	Volume              decimal.Decimal // Σ|amount| over every in-period transaction
	UncategorizedVolume decimal.Decimal
	Count               int
	UncategorizedCount  int
}

// NewTotals builds totals from known component sums, for callers that already
// aggregated elsewhere. Volume is the sum of absolute component values.
func NewTotals(components map[model.FinancialComponent]decimal.Decimal) *Totals {
	t := &Totals{Components: make(map[model.FinancialComponent]decimal.Decimal, len(model.Components))}
	for _, c := range model.Components {
		v := components[c]
		t.Components[c] = v
		t.Volume = t.Volume.Add(v.Abs())
	}
	return t
}

// Get returns the total for one component, zero when absent.
func (t *Totals) Get(c model.FinancialComponent) decimal.Decimal {
	return t.Components[c]
}

// LeftSide is Asset + Expense.
func (t *Totals) LeftSide() decimal.Decimal {
	return t.Get(model.ComponentAsset).Add(t.Get(model.ComponentExpense))
}

// RightSide is Liability + Equity + Income.
func (t *Totals) RightSide() decimal.Decimal {
	return t.Get(model.ComponentLiability).
		Add(t.Get(model.ComponentEquity)).
		Add(t.Get(model.ComponentIncome))
}

// Compute sums the signed amounts of categorized transactions in the period by
// the category's component. Uncategorized transactions are counted but not
// totalled.
func Compute(txns []model.Transaction, period Period) (*Totals, error) {
	totals := NewTotals(nil)

	for _, txn := range txns {
		if !period.Contains(txn.Date) {
			continue
		}
		if err := validateAmount(txn); err != nil {
			return nil, err
		}

		totals.Count++
		totals.Volume = totals.Volume.Add(txn.Amount.Abs())

		if !txn.IsCategorized() {
			totals.UncategorizedCount++
			totals.UncategorizedVolume = totals.UncategorizedVolume.Add(txn.Amount.Abs())
			continue
		}

		component := txn.Category.Component
		if !component.Valid() {
			return nil, fmt.Errorf("%w: transaction %s has category %q with unknown component %q",
				common.ErrValidation, txn.ID, txn.Category.Name, component)
		}
		totals.Components[component] = totals.Components[component].Add(txn.Amount)
	}

	if err := checkMagnitude(totals.Volume, "period volume"); err != nil {
		return nil, err
	}
	return totals, nil
}

// Result is the outcome of checking the accounting identity.
type Result struct {
	Totals                *Totals
	Imbalance             decimal.Decimal // (Asset+Expense) − (Liability+Equity+Income)
	Epsilon               decimal.Decimal
	LeftSide              decimal.Decimal
	RightSide             decimal.Decimal
	DiscrepancyPercentage float64
	Balanced              bool
}

// Validate checks Asset + Expense = Liability + Equity + Income within epsilon.
func Validate(totals *Totals, cfg Config) (*Result, error) {
	if totals == nil {
		return nil, fmt.Errorf("%w: totals are required", common.ErrValidation)
	}
	for _, c := range model.Components {
		if err := checkMagnitude(totals.Get(c), string(c)+" total"); err != nil {
			return nil, err
		}
	}

	left, right := totals.LeftSide(), totals.RightSide()
	imbalance := left.Sub(right)
	epsilon := cfg.Epsilon(totals.Volume)

	result := &Result{
		Totals:    totals,
		Imbalance: imbalance,
		Epsilon:   epsilon,
		LeftSide:  left,
		RightSide: right,
		Balanced:  imbalance.Abs().LessThanOrEqual(epsilon),
	}

	if sum := left.Abs().Add(right.Abs()); sum.IsPositive() {
		result.DiscrepancyPercentage = imbalance.Abs().Div(sum).Mul(decimal.NewFromInt(100)).Round(4).InexactFloat64()
	}
	return result, nil
}

func validateAmount(txn model.Transaction) error {
	if !txn.Amount.Equal(txn.Amount.Round(2)) {
		return fmt.Errorf("%w: transaction %s amount %s has more than 2 decimal places",
			common.ErrValidation, txn.ID, txn.Amount.String())
	}
	return checkMagnitude(txn.Amount, "transaction "+txn.ID+" amount")
}

func checkMagnitude(v decimal.Decimal, what string) error {
	if v.Abs().GreaterThanOrEqual(maxMagnitude) {
		return fmt.Errorf("%w: %s %s exceeds supported precision", common.ErrComputation, what, v.String())
	}
	return nil
}
