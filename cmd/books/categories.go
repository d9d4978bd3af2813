package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/spf13/cobra"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage categories",
		Long:  `List and create the categories transactions are assigned to. Every category rolls up into one financial component.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(createCategoryCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			categories, err := s.store.GetCategories(ctx, s.userID)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			if len(categories) == 0 {
				fmt.Println(cli.InfoStyle.Render("No categories found. Use 'books categories create' to add one."))
				return nil
			}

			return cli.RenderCategories(os.Stdout, categories)
		},
	}
}

func createCategoryCmd() *cobra.Command {
	var (
		component   string
		subcategory string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			comp, err := parseComponent(component)
			if err != nil {
				return err
			}

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			category := &model.Category{
				UserID:      s.userID,
				Name:        strings.TrimSpace(args[0]),
				Component:   comp,
				Subcategory: strings.TrimSpace(subcategory),
			}
			if err := s.store.CreateCategory(ctx, category); err != nil {
				return common.Opaque(err, "create category")
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created %s (%s)", category.Name, category.Component)))
			return nil
		},
	}

	cmd.Flags().StringVar(&component, "component", string(model.ComponentExpense), "financial component (Asset, Liability, Equity, Income, Expense)")
	cmd.Flags().StringVar(&subcategory, "subcategory", "", "optional subcategory label")

	return cmd
}

// parseComponent accepts component names in any case.
func parseComponent(value string) (model.FinancialComponent, error) {
	for _, c := range model.Components {
		if strings.EqualFold(string(c), strings.TrimSpace(value)) {
			return c, nil
		}
	}
	return "", common.NewUserError(
		fmt.Sprintf("unknown component %q", value),
		fmt.Errorf("%w: component must be one of Asset, Liability, Equity, Income, Expense", common.ErrValidation),
	)
}
