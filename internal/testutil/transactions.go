package testutil

import (
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

// Day returns midnight UTC on the given day of January 2024.
func Day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

// PaidOut builds an outgoing transaction. The amount is given as a positive
// string and stored negated.
func PaidOut(id, amount string, date time.Time, description string) model.Transaction {
	return model.Transaction{
		ID:          id,
		Date:        date,
		Amount:      decimal.RequireFromString(amount).Abs().Neg(),
		Description: description,
		Type:        model.PaidOut,
		AccountName: "Current",
	}
}

// PaidIn builds an incoming transaction.
func PaidIn(id, amount string, date time.Time, description string) model.Transaction {
	return model.Transaction{
		ID:          id,
		Date:        date,
		Amount:      decimal.RequireFromString(amount).Abs(),
		Description: description,
		Type:        model.PaidIn,
		AccountName: "Current",
	}
}

// Categorized returns a copy of txn carrying the category.
func Categorized(txn model.Transaction, cat model.Category) model.Transaction {
	txn.Category = cat.Ref()
	return txn
}
