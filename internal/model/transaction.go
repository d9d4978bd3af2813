package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of money movement as reported on the statement.
type TransactionType string

const (
	// PaidIn is money arriving in the account.
	PaidIn TransactionType = "PaidIn"
	// PaidOut is money leaving the account.
	PaidOut TransactionType = "PaidOut"
)

// Valid reports whether the type is one of the known directions.
func (t TransactionType) Valid() bool {
	return t == PaidIn || t == PaidOut
}

// Opposite returns the other direction.
func (t TransactionType) Opposite() TransactionType {
	if t == PaidIn {
		return PaidOut
	}
	return PaidIn
}

// MatchStatus summarizes where a transaction is in the matching workflow.
type MatchStatus string

const (
	// MatchStatusUnmatched has no recorded partner.
	MatchStatusUnmatched MatchStatus = "Unmatched"
	// MatchStatusPendingReview has a recorded partner that nobody confirmed yet.
	MatchStatusPendingReview MatchStatus = "PendingReview"
	// MatchStatusMatched has a confirmed partner.
	MatchStatusMatched MatchStatus = "Matched"
)

// CategoryRef is the denormalized category attached to a transaction.
type CategoryRef struct {
	ID          string
	Name        string
	Component   FinancialComponent
	Subcategory string
}

// Transaction represents one normalized ledger entry handed over by the parser.
type Transaction struct {
	Date                 time.Time
	UpdatedAt            time.Time
	Balance              *decimal.Decimal // Statement balance snapshot, if the statement had one
	Category             *CategoryRef
	MatchedTransactionID *string
	MatchConfidence      *float64
	ID                   string
	UserID               string
	Description          string
	AccountName          string
	Type                 TransactionType
	Amount               decimal.Decimal // Negative for PaidOut, positive for PaidIn
	Version              int64
	IsConfirmed          bool
}

// TransactionRef names a transaction together with the version token the
// caller saw when it read the record. Mutations fail with ErrStaleState once
// the stored token has moved on.
type TransactionRef struct {
	ID      string
	Version int64
}

func (r TransactionRef) String() string {
	return fmt.Sprintf("%s@%d", r.ID, r.Version)
}

// Ref returns the id and current version token.
func (t Transaction) Ref() TransactionRef {
	return TransactionRef{ID: t.ID, Version: t.Version}
}

// MatchStatus derives the workflow status from the match fields.
func (t Transaction) MatchStatus() MatchStatus {
	switch {
	case t.MatchedTransactionID == nil:
		return MatchStatusUnmatched
	case t.IsConfirmed:
		return MatchStatusMatched
	default:
		return MatchStatusPendingReview
	}
}

// PartnerID returns the matched partner, or "" when there is none.
func (t Transaction) PartnerID() string {
	if t.MatchedTransactionID == nil {
		return ""
	}
	return *t.MatchedTransactionID
}

// IsCategorized reports whether a category has been assigned.
func (t Transaction) IsCategorized() bool {
	return t.Category != nil && t.Category.ID != ""
}

// Fingerprint hashes the fields that identify the underlying statement line.
// A changed fingerprint means the data a decision was based on has changed.
func (t Transaction) Fingerprint() string {
	data := fmt.Sprintf("%s:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount.StringFixed(2),
		t.Description)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// Clone returns a deep copy so callers can mutate without aliasing pointers.
func (t Transaction) Clone() Transaction {
	if t.Balance != nil {
		b := *t.Balance
		t.Balance = &b
	}
	if t.Category != nil {
		c := *t.Category
		t.Category = &c
	}
	if t.MatchedTransactionID != nil {
		id := *t.MatchedTransactionID
		t.MatchedTransactionID = &id
	}
	if t.MatchConfidence != nil {
		mc := *t.MatchConfidence
		t.MatchConfidence = &mc
	}
	return t
}
