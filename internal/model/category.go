package model

import "time"

// FinancialComponent is one of the five top-level accounting categories.
type FinancialComponent string

const (
	// ComponentAsset covers things the user owns.
	ComponentAsset FinancialComponent = "Asset"
	// ComponentLiability covers amounts the user owes.
	ComponentLiability FinancialComponent = "Liability"
	// ComponentEquity covers owner contributions and retained funds.
	ComponentEquity FinancialComponent = "Equity"
	// ComponentIncome covers money earned.
	ComponentIncome FinancialComponent = "Income"
	// ComponentExpense covers money spent.
	ComponentExpense FinancialComponent = "Expense"
)

// Components lists every financial component in reporting order.
var Components = []FinancialComponent{
	ComponentAsset,
	ComponentLiability,
	ComponentEquity,
	ComponentIncome,
	ComponentExpense,
}

// Valid reports whether c is a known component.
func (c FinancialComponent) Valid() bool {
	for _, known := range Components {
		if c == known {
			return true
		}
	}
	return false
}

// Category is a user-owned label that rolls up into a financial component.
type Category struct {
	CreatedAt   time.Time
	ID          string
	UserID      string
	Name        string
	Component   FinancialComponent
	Subcategory string
}

// Ref returns the denormalized form stored on transactions.
func (c *Category) Ref() *CategoryRef {
	return &CategoryRef{
		ID:          c.ID,
		Name:        c.Name,
		Component:   c.Component,
		Subcategory: c.Subcategory,
	}
}
