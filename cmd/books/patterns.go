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

func patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect and define categorization patterns",
		Long: `Patterns map a vendor signature, keyword or amount range to a category.
Vendor patterns are learned from your assignments; keyword and amount range
patterns are defined here.`,
	}

	cmd.AddCommand(listPatternsCmd())
	cmd.AddCommand(addPatternCmd())

	return cmd
}

func listPatternsCmd() *cobra.Command {
	var patternType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List learned and defined patterns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			typ, err := parsePatternType(patternType, true)
			if err != nil {
				return err
			}

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			patterns, err := s.engine.ListPatterns(ctx, s.userID, typ)
			if err != nil {
				return err
			}
			categories, err := s.categoryIndex(ctx)
			if err != nil {
				return err
			}
			return cli.RenderPatterns(os.Stdout, patterns, categories)
		},
	}

	cmd.Flags().StringVar(&patternType, "type", "", "only list one type (vendor, keyword, amount_range)")

	return cmd
}

func addPatternCmd() *cobra.Command {
	var (
		patternType string
		confidence  float64
	)

	cmd := &cobra.Command{
		Use:   "add <value> <category>",
		Short: "Define a pattern",
		Long: `Define a pattern. Amount ranges are written as min:max, for example
"900.00:1200.00"; either side may be left empty.`,
		Example: `  books patterns add "council tax" Utilities --type keyword
  books patterns add 900:1200 Rent --type amount_range --confidence 70`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			typ, err := parsePatternType(patternType, false)
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

			p, err := s.engine.DefinePattern(ctx, s.userID, typ, args[0], category.ID, confidence)
			if err != nil {
				return common.Opaque(err, "define pattern")
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s %q → %s (%.0f)", p.Type, p.Value, category.Name, p.Confidence)))
			return nil
		},
	}

	cmd.Flags().StringVar(&patternType, "type", string(model.PatternKeyword), "pattern type (vendor, keyword, amount_range)")
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "confidence 0-100 (default: learning.baseline_confidence)")

	return cmd
}

func parsePatternType(value string, allowEmpty bool) (model.PatternType, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" && allowEmpty {
		return "", nil
	}
	typ := model.PatternType(value)
	if !typ.Valid() {
		return "", common.NewUserError(
			fmt.Sprintf("unknown pattern type %q", value),
			fmt.Errorf("%w: type must be vendor, keyword or amount_range", common.ErrValidation),
		)
	}
	return typ, nil
}
