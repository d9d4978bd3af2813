package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-books-must-balance/internal/balance"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/shopspring/decimal"
)

// BalanceReport is the trial balance for one user and period.
type BalanceReport struct {
	*balance.Result
	Period      balance.Period
	Diagnostics []balance.Diagnostic // Only populated when out of balance
}

// TrialBalance checks the accounting identity over the user's transactions in
// period and, when it does not hold, ranks likely causes. openingBalances
// may be nil.
func (e *Engine) TrialBalance(
	ctx context.Context,
	userID string,
	period balance.Period,
	openingBalances map[string]decimal.Decimal,
) (*BalanceReport, error) {
	// Diagnostics look past the period edges for timing differences, so load
	// everything and let Compute filter.
	txns, err := e.storage.GetTransactions(ctx, userID, service.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	totals, err := balance.Compute(txns, period)
	if err != nil {
		return nil, err
	}
	result, err := balance.Validate(totals, e.cfg.Balance)
	if err != nil {
		return nil, err
	}

	report := &BalanceReport{Result: result, Period: period}
	if !result.Balanced {
		report.Diagnostics, err = balance.Diagnose(txns, period, result.Imbalance, balance.DiagnoseOptions{
			OpeningBalances:  openingBalances,
			TimingWindowDays: e.cfg.Balance.TimingWindowDays,
		})
		if err != nil {
			return nil, err
		}
	}

	slog.Info("Trial balance computed",
		"user_id", userID,
		"period", period.String(),
		"balanced", result.Balanced,
		"imbalance", result.Imbalance.StringFixed(2),
		"diagnostics", len(report.Diagnostics))
	return report, nil
}
