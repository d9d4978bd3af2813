package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/engine"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/spf13/cobra"
)

func matchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Pair transfers between your own accounts",
		Long: `Find, confirm and reject PaidOut/PaidIn pairs that are the two legs of one
transfer. A pair needs the same absolute amount and dates within the
configured tolerance.`,
	}

	cmd.AddCommand(listMatchesCmd())
	cmd.AddCommand(suggestMatchesCmd())
	cmd.AddCommand(pairCmd("confirm", "Confirm two transactions as one transfer", (*engine.Engine).ConfirmMatch))
	cmd.AddCommand(pairCmd("propose", "Link two transactions for later review", (*engine.Engine).ProposeMatch))
	cmd.AddCommand(pairCmd("unmatch", "Clear the link between two transactions", (*engine.Engine).Unmatch))
	cmd.AddCommand(rejectMatchCmd())
	cmd.AddCommand(bulkMatchCmd("bulk", true))
	cmd.AddCommand(bulkMatchCmd("auto", false))
	cmd.AddCommand(clearRejectionsCmd())

	return cmd
}

func listMatchesCmd() *cobra.Command {
	var pending bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List match candidates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			if pending {
				txns, err := s.store.GetTransactions(ctx, s.userID, service.TransactionFilter{
					Status: model.MatchStatusPendingReview,
				})
				if err != nil {
					return fmt.Errorf("failed to get transactions: %w", err)
				}
				if len(txns) == 0 {
					fmt.Println(cli.FormatInfo("Nothing is waiting for review"))
					return nil
				}
				return cli.RenderTransactions(os.Stdout, txns)
			}

			candidates, err := s.engine.FindCandidates(ctx, s.userID)
			if err != nil {
				return err
			}
			return cli.RenderCandidates(os.Stdout, candidates)
		},
	}

	cmd.Flags().BoolVar(&pending, "pending", false, "list transactions proposed but not yet confirmed")

	return cmd
}

func suggestMatchesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "suggest <transaction-id>",
		Short: "Rank partners for one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			candidates, err := s.engine.SuggestMatches(ctx, s.userID, args[0], limit)
			if err != nil {
				return err
			}
			return cli.RenderCandidates(os.Stdout, candidates)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum suggestions (default: matching.suggestion_limit)")

	return cmd
}

type pairFunc func(e *engine.Engine, ctx context.Context, userID string, a, b model.TransactionRef) (*model.MatchMutation, error)

// pairArgs parses the two transaction arguments of a pair command.
func pairArgs(args []string) ([]model.TransactionRef, error) {
	refs := make([]model.TransactionRef, 0, len(args))
	for _, arg := range args {
		ref, err := parseRef(arg)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// pairCmd builds a command that mutates one pair. Ids given as id@version are
// checked against the stored version; bare ids are read fresh and retried if
// either record changes underneath the command.
func pairCmd(use, short string, fn pairFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>[@version] <id>[@version]",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			refs, err := pairArgs(args)
			if err != nil {
				return err
			}

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			var mutation *model.MatchMutation
			err = s.mutate(ctx, "match "+use, refs, func(observed []model.TransactionRef) error {
				var err error
				mutation, err = fn(s.engine, ctx, s.userID, observed[0], observed[1])
				return err
			})
			if err != nil {
				return err
			}

			if mutation.NoOp {
				fmt.Println(cli.FormatInfo("Pair already in that state"))
				return nil
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s ↔ %s: %s",
				mutation.A.Ref(), mutation.B.Ref(), cli.FormatStatus(mutation.A.MatchStatus()))))
			return nil
		},
	}
}

func rejectMatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <id>[@version] <id>[@version]",
		Short: "Stop suggesting a pair until either transaction changes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			refs, err := pairArgs(args)
			if err != nil {
				return err
			}

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			var suppression model.MatchSuppression
			err = s.mutate(ctx, "match reject", refs, func(observed []model.TransactionRef) error {
				var err error
				suppression, err = s.engine.RejectMatch(ctx, s.userID, observed[0], observed[1])
				return err
			})
			if err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Rejected %s ↔ %s", suppression.PaidOutID, suppression.PaidInID)))
			return nil
		},
	}
}

func clearRejectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-rejections",
		Short: "Forget every rejected pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			n, err := s.engine.ClearRejections(ctx, s.userID)
			if err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Cleared %d rejections", n)))
			return nil
		},
	}
}

func bulkMatchCmd(use string, confirm bool) *cobra.Command {
	var threshold float64

	short := "Confirm every candidate above the threshold"
	if !confirm {
		short = "Propose every candidate above the threshold for review"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			handler := cli.NewInterruptHandler(os.Stdout, "Bulk match", "books match "+use)
			ctx := handler.HandleInterrupts(cmd.Context())

			run := s.engine.AutoPropose
			description := "Proposing"
			if confirm {
				run = s.engine.BulkConfirm
				description = "Confirming"
			}

			report, err := run(ctx, s.userID, threshold, cli.NewProgress(os.Stderr, description))
			if report != nil {
				if renderErr := cli.RenderBulkMatchReport(os.Stdout, report, confirm); renderErr != nil {
					return renderErr
				}
			}
			if handler.WasInterrupted() && errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum score (default: matching.bulk_threshold)")

	return cmd
}
