package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/balance"
	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func balanceCmd() *cobra.Command {
	var (
		from    string
		to      string
		opening []string
	)

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Check the trial balance for a period",
		Long: `Sum categorized transactions per financial component and check that
Asset + Expense = Liability + Equity + Income within tolerance. When the
books do not balance, likely causes are listed most likely first.`,
		Example: `  books balance --from 2024-01-01 --to 2024-01-31
  books balance --from 2024-01-01 --to 2024-01-31 --opening Current=1520.33`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			period, err := balance.ParsePeriod(from, to)
			if err != nil {
				return err
			}
			openingBalances, err := parseOpening(opening)
			if err != nil {
				return err
			}

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			report, err := s.engine.TrialBalance(ctx, s.userID, period, openingBalances)
			if err != nil {
				return common.Opaque(err, "trial balance")
			}
			return cli.RenderBalance(os.Stdout, report)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day of the period (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day of the period (YYYY-MM-DD)")
	cmd.Flags().StringArrayVar(&opening, "opening", nil, "opening statement balance as account=amount (repeatable)")

	return cmd
}

// parseOpening turns account=amount pairs into opening balances.
func parseOpening(values []string) (map[string]decimal.Decimal, error) {
	if len(values) == 0 {
		return nil, nil
	}
	balances := make(map[string]decimal.Decimal, len(values))
	for _, v := range values {
		account, amount, ok := strings.Cut(v, "=")
		account = strings.TrimSpace(account)
		if !ok || account == "" {
			return nil, fmt.Errorf("%w: opening balance %q must be account=amount", common.ErrValidation, v)
		}
		d, err := decimal.NewFromString(strings.TrimSpace(amount))
		if err != nil {
			return nil, fmt.Errorf("%w: opening balance for %s: %q is not a number", common.ErrValidation, account, amount)
		}
		balances[account] = d
	}
	return balances, nil
}
