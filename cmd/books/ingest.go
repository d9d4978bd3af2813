package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// ingestRecord is one normalized statement line as produced by the parser.
type ingestRecord struct {
	Balance     *decimal.Decimal `json:"balance,omitempty"`
	ID          string           `json:"id"`
	Date        string           `json:"date"`
	Description string           `json:"description"`
	Type        string           `json:"type"`
	AccountName string           `json:"account_name"`
	Amount      decimal.Decimal  `json:"amount"`
}

// toTransaction validates the record and signs the amount by direction.
func (r ingestRecord) toTransaction(userID string) (model.Transaction, error) {
	date, err := time.Parse(time.DateOnly, strings.TrimSpace(r.Date))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("%w: record %s: invalid date %q", common.ErrValidation, r.ID, r.Date)
	}

	typ, ok := parseDirection(r.Type)
	if !ok {
		return model.Transaction{}, fmt.Errorf("%w: record %s: type %q must be %s or %s",
			common.ErrValidation, r.ID, r.Type, model.PaidIn, model.PaidOut)
	}

	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = uuid.NewString()
	}

	amount := r.Amount.Abs()
	if typ == model.PaidOut {
		amount = amount.Neg()
	}

	return model.Transaction{
		ID:          id,
		UserID:      userID,
		Date:        date,
		Amount:      amount,
		Description: strings.TrimSpace(r.Description),
		Type:        typ,
		AccountName: strings.TrimSpace(r.AccountName),
		Balance:     r.Balance,
		Version:     1,
	}, nil
}

// parseDirection accepts PaidIn and PaidOut in any case, with or without a
// space or underscore between the words.
func parseDirection(value string) (model.TransactionType, bool) {
	key := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(value)))
	switch key {
	case "paidin":
		return model.PaidIn, true
	case "paidout":
		return model.PaidOut, true
	}
	return "", false
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.json>",
		Short: "Load normalized transactions",
		Long: `Load a JSON array of normalized transaction records into the database.

Each record needs date (YYYY-MM-DD), amount, description, type
(PaidIn or PaidOut) and account_name; id and balance are optional. A record
without an id gets a generated one. Records whose id is already stored for
the user are skipped, so re-ingesting a file is safe.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			var records []ingestRecord
			if err := json.Unmarshal(data, &records); err != nil {
				return common.NewUserError("input must be a JSON array of transaction records", err)
			}
			if len(records) == 0 {
				fmt.Println(cli.FormatInfo("No records to ingest"))
				return nil
			}

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			txns := make([]model.Transaction, 0, len(records))
			for _, r := range records {
				txn, err := r.toTransaction(s.userID)
				if err != nil {
					return err
				}
				txns = append(txns, txn)
			}

			inserted, err := s.store.SaveTransactions(ctx, txns)
			if err != nil {
				return common.Opaque(err, "ingest")
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Ingested %d new transactions (%d already present)",
				inserted, len(txns)-inserted)))
			return nil
		},
	}
}
