package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/spf13/cobra"
)

func categorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Assign categories and teach the learning engine",
		Long: `Suggest and assign categories. Every assignment teaches the learning
engine the transaction's vendor, so later suggestions improve.`,
	}

	cmd.AddCommand(suggestCategoryCmd())
	cmd.AddCommand(assignCategoryCmd())
	cmd.AddCommand(bulkAssignCmd())
	cmd.AddCommand(uncategorizedCmd())

	return cmd
}

func suggestCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <transaction-id>",
		Short: "Rank likely categories for a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			suggestions, err := s.engine.SuggestCategory(ctx, s.userID, args[0])
			if err != nil {
				return err
			}
			return cli.RenderSuggestions(os.Stdout, suggestions)
		},
	}
}

func assignCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <transaction-id>[@version] <category>",
		Short: "Set a transaction's category",
		Long: `Set a transaction's category. Append @version to the id to refuse the
change if the transaction was modified after you listed it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ref, err := parseRef(args[0])
			if err != nil {
				return err
			}

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			category, err := s.resolveCategory(ctx, args[1])
			if err != nil {
				return err
			}

			var assignment *model.CategoryAssignment
			err = s.mutate(ctx, "assign category", []model.TransactionRef{ref}, func(refs []model.TransactionRef) error {
				var err error
				assignment, err = s.engine.AssignCategory(ctx, s.userID, refs[0], category.ID)
				return err
			})
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s → %s",
				assignment.Transaction.Description, assignment.Transaction.Category.Name)))
			return nil
		},
	}
}

func bulkAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bulk <vendor> <category>",
		Short: "Assign a category to every transaction from a vendor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			category, err := s.resolveCategory(cmd.Context(), args[1])
			if err != nil {
				return err
			}

			handler := cli.NewInterruptHandler(os.Stdout, "Bulk categorize",
				fmt.Sprintf("books categorize bulk %q %q", args[0], args[1]))
			ctx := handler.HandleInterrupts(cmd.Context())

			report, err := s.engine.BulkAssignByVendor(ctx, s.userID, args[0], category.ID,
				cli.NewProgress(os.Stderr, "Categorizing"))
			if report != nil {
				if renderErr := cli.RenderBulkAssignReport(os.Stdout, report); renderErr != nil {
					return renderErr
				}
			}
			if handler.WasInterrupted() && errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func uncategorizedCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List transactions without a category",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			txns, err := s.store.GetTransactions(ctx, s.userID, service.TransactionFilter{
				Uncategorized: true,
				Limit:         limit,
			})
			if err != nil {
				return fmt.Errorf("failed to get transactions: %w", err)
			}
			if len(txns) == 0 {
				fmt.Println(cli.FormatSuccess("Every transaction has a category"))
				return nil
			}
			return cli.RenderTransactions(os.Stdout, txns)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum transactions to list")

	return cmd
}
