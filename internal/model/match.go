package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchCandidate is a proposed PaidOut/PaidIn pairing produced by one matching pass.
// Candidates are never persisted.
type MatchCandidate struct {
	PaidOutID             string
	PaidInID              string
	Amount                decimal.Decimal // Absolute amount shared by both legs
	Score                 float64
	DescriptionSimilarity float64
	DateDiffDays          int
}

// Involves reports whether the candidate references the transaction id.
func (c MatchCandidate) Involves(id string) bool {
	return c.PaidOutID == id || c.PaidInID == id
}

// MatchMutation is the result of confirming, proposing or clearing a pair.
// A and B hold the records after the change; the expected versions are the
// tokens the records carried before it.
type MatchMutation struct {
	A                Transaction
	B                Transaction
	ExpectedVersionA int64
	ExpectedVersionB int64
	Score            float64
	NoOp             bool // The pair was already in the requested state
}

// MatchSuppression is a rejected pair with the fingerprints both legs had when
// it was rejected. It stops applying once either fingerprint changes.
type MatchSuppression struct {
	CreatedAt          time.Time
	UserID             string
	PaidOutID          string
	PaidInID           string
	PaidOutFingerprint string
	PaidInFingerprint  string
}
