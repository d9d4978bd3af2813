package balance

import (
	"sort"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

// DiagnosticCode identifies a likely cause of an imbalance.
type DiagnosticCode string

// Diagnostic codes, in ranking order.
const (
	CodeUnmatchedVolume     DiagnosticCode = "unmatched_volume"
	CodeUncategorized       DiagnosticCode = "uncategorized"
	CodeTimingDifference    DiagnosticCode = "timing_difference"
	CodeReconciliationDelta DiagnosticCode = "reconciliation_delta"
	CodeLeftSideHigh        DiagnosticCode = "left_side_high"
	CodeRightSideHigh       DiagnosticCode = "right_side_high"
)

// Diagnostic is one advisory finding. Magnitude is always non-negative.
type Diagnostic struct {
	Code          DiagnosticCode
	Account       string // Set for per-account codes
	Magnitude     decimal.Decimal
	AffectedCount int
}

// DiagnoseOptions tunes per-account reconciliation.
type DiagnoseOptions struct {
	// OpeningBalances by account name. Accounts without one derive it from
	// their first in-period statement balance.
	OpeningBalances  map[string]decimal.Decimal
	TimingWindowDays int
}

// Diagnose ranks likely causes of an imbalance: unconfirmed matches, then
// uncategorized transactions, then per-account reconciliation deltas, and
// finally which side of the identity is heavy. Nothing is corrected.
func Diagnose(txns []model.Transaction, period Period, imbalance decimal.Decimal, opts DiagnoseOptions) ([]Diagnostic, error) {
	var diagnostics []Diagnostic

	var unmatched, uncategorized Diagnostic
	unmatched.Code = CodeUnmatchedVolume
	uncategorized.Code = CodeUncategorized

	for _, txn := range txns {
		if !period.Contains(txn.Date) {
			continue
		}
		if err := validateAmount(txn); err != nil {
			return nil, err
		}
		if txn.MatchStatus() != model.MatchStatusMatched {
			unmatched.AffectedCount++
			unmatched.Magnitude = unmatched.Magnitude.Add(txn.Amount.Abs())
		}
		if !txn.IsCategorized() {
			uncategorized.AffectedCount++
			uncategorized.Magnitude = uncategorized.Magnitude.Add(txn.Amount.Abs())
		}
	}

	for _, d := range []Diagnostic{unmatched, uncategorized} {
		if d.AffectedCount > 0 {
			diagnostics = append(diagnostics, d)
		}
	}

	diagnostics = append(diagnostics, reconcileAccounts(txns, period, opts)...)

	switch {
	case imbalance.IsPositive():
		diagnostics = append(diagnostics, Diagnostic{Code: CodeLeftSideHigh, Magnitude: imbalance})
	case imbalance.IsNegative():
		diagnostics = append(diagnostics, Diagnostic{Code: CodeRightSideHigh, Magnitude: imbalance.Abs()})
	}

	return diagnostics, nil
}

// reconcileAccounts compares each account's expected balance with its most
// recent statement balance in the period.
func reconcileAccounts(txns []model.Transaction, period Period, opts DiagnoseOptions) []Diagnostic {
	byAccount := make(map[string][]model.Transaction)
	for _, txn := range txns {
		byAccount[txn.AccountName] = append(byAccount[txn.AccountName], txn)
	}

	var found []Diagnostic
	for account, all := range byAccount {
		sortByDate(all)

		var inPeriod []model.Transaction
		for _, txn := range all {
			if period.Contains(txn.Date) {
				inPeriod = append(inPeriod, txn)
			}
		}
		if len(inPeriod) == 0 {
			continue
		}

		delta, ok := accountDelta(account, inPeriod, opts)
		if !ok || delta.IsZero() {
			continue
		}

		code := CodeReconciliationDelta
		if boundaryMatch(all, inPeriod, period, delta, opts.TimingWindowDays) {
			code = CodeTimingDifference
		}
		found = append(found, Diagnostic{
			Code:          code,
			Account:       account,
			Magnitude:     delta.Abs(),
			AffectedCount: len(inPeriod),
		})
	}

	sort.Slice(found, func(i, j int) bool {
		if !found[i].Magnitude.Equal(found[j].Magnitude) {
			return found[i].Magnitude.GreaterThan(found[j].Magnitude)
		}
		return found[i].Account < found[j].Account
	})
	return found
}

// accountDelta returns statement − expected at the last in-period statement
// balance, where expected = opening + Σ amounts up to that transaction.
func accountDelta(account string, inPeriod []model.Transaction, opts DiagnoseOptions) (decimal.Decimal, bool) {
	last := -1
	first := -1
	for i, txn := range inPeriod {
		if txn.Balance == nil {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if last < 0 {
		return decimal.Zero, false
	}

	opening, ok := opts.OpeningBalances[account]
	if !ok {
		// Statement balances are taken after the line they sit on.
		opening = *inPeriod[first].Balance
		for _, txn := range inPeriod[:first+1] {
			opening = opening.Sub(txn.Amount)
		}
	}

	expected := opening
	for _, txn := range inPeriod[:last+1] {
		expected = expected.Add(txn.Amount)
	}
	return inPeriod[last].Balance.Sub(expected), true
}

// boundaryMatch reports whether a single transaction dated within the window
// of either period boundary accounts for the whole delta.
func boundaryMatch(all, inPeriod []model.Transaction, period Period, delta decimal.Decimal, windowDays int) bool {
	start, end := period.From, period.To
	if start.IsZero() {
		start = truncateDay(inPeriod[0].Date)
	}
	if end.IsZero() {
		end = truncateDay(inPeriod[len(inPeriod)-1].Date)
	}
	window := time.Duration(windowDays) * 24 * time.Hour

	for _, txn := range all {
		if !txn.Amount.Abs().Equal(delta.Abs()) {
			continue
		}
		day := truncateDay(txn.Date)
		if within(day, start, window) || within(day, end, window) {
			return true
		}
	}
	return false
}

func within(day, boundary time.Time, window time.Duration) bool {
	diff := day.Sub(boundary)
	if diff < 0 {
		diff = -diff
	}
	return diff <= window
}

func sortByDate(txns []model.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		if !txns[i].Date.Equal(txns[j].Date) {
			return txns[i].Date.Before(txns[j].Date)
		}
		return txns[i].ID < txns[j].ID
	})
}
