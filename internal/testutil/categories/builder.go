// Package categories seeds chart-of-accounts categories for tests. Every name
// carries the financial component it rolls up into, so seeded data can feed
// trial balance checks directly.
//
// Example usage:
//
//	db := testutil.SetupTestDBWithBuilder(t, func(b categories.Builder) categories.Builder {
//		return b.WithBasicCategories().WithCategory(categories.Salary)
//	})
package categories

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// Builder provides a fluent interface for constructing test categories.
type Builder interface {
	// WithCategory adds a single category to the builder.
	WithCategory(name CategoryName) Builder

	// WithCategories adds multiple categories to the builder.
	WithCategories(names ...CategoryName) Builder

	// WithBasicCategories adds the minimal set of categories commonly used in tests.
	WithBasicCategories() Builder

	// WithFixture adds categories from a predefined fixture.
	WithFixture(fixture Fixture) Builder

	// Build creates the categories for the user and returns them.
	Build(ctx context.Context, storage service.Storage, userID string) (Categories, error)

	// BuildMap creates categories and returns them keyed by name.
	BuildMap(ctx context.Context, storage service.Storage, userID string) (CategoryMap, error)
}

// CategoryName represents a strongly-typed category name.
type CategoryName string

// String returns the string representation of the category name.
func (c CategoryName) String() string {
	return string(c)
}

// Component returns the financial component the name rolls up into.
// Names outside the known set are treated as expenses.
func (c CategoryName) Component() model.FinancialComponent {
	if component, ok := components[c]; ok {
		return component
	}
	return model.ComponentExpense
}

// Common category names used across tests.
const (
	Groceries     CategoryName = "Groceries"
	Dining        CategoryName = "Food & Dining"
	Subscriptions CategoryName = "Subscription Services"
	Utilities     CategoryName = "Utilities"
	Rent          CategoryName = "Rent"
	BankingFees   CategoryName = "Banking & Fees"
	Salary        CategoryName = "Salary"
	Interest      CategoryName = "Interest"
	Savings       CategoryName = "Savings"
	Transfers     CategoryName = "Transfers"
	CreditCard    CategoryName = "Credit Card"
	Mortgage      CategoryName = "Mortgage"
	OpeningEquity CategoryName = "Opening Equity"
)

var components = map[CategoryName]model.FinancialComponent{
	Salary:        model.ComponentIncome,
	Interest:      model.ComponentIncome,
	Savings:       model.ComponentAsset,
	Transfers:     model.ComponentAsset,
	CreditCard:    model.ComponentLiability,
	Mortgage:      model.ComponentLiability,
	OpeningEquity: model.ComponentEquity,
}

// Categories represents a collection of created test categories.
type Categories []model.Category

// Find returns the category with the given name, or nil if not found.
func (c Categories) Find(name CategoryName) *model.Category {
	for i := range c {
		if c[i].Name == name.String() {
			return &c[i]
		}
	}
	return nil
}

// MustFind returns the category with the given name, or fails the test if not found.
func (c Categories) MustFind(t *testing.T, name CategoryName) model.Category {
	t.Helper()
	cat := c.Find(name)
	if cat == nil {
		t.Fatalf("category %q not found in test data", name)
	}
	return *cat
}

// Names returns all category names as a slice of strings.
func (c Categories) Names() []string {
	names := make([]string, len(c))
	for i, cat := range c {
		names[i] = cat.Name
	}
	return names
}

// CategoryMap provides O(1) lookup for categories by name.
type CategoryMap map[CategoryName]model.Category

// MustGet returns the category for the given name or fails the test.
func (m CategoryMap) MustGet(t *testing.T, name CategoryName) model.Category {
	t.Helper()
	cat, ok := m[name]
	if !ok {
		t.Fatalf("category %q not found in test data", name)
	}
	return cat
}

type categoryBuilder struct {
	t          *testing.T
	categories map[CategoryName]struct{}
}

// NewBuilder creates a new category builder for the given test.
func NewBuilder(t *testing.T) Builder {
	t.Helper()
	return &categoryBuilder{
		t:          t,
		categories: make(map[CategoryName]struct{}),
	}
}

func (b *categoryBuilder) WithCategory(name CategoryName) Builder {
	b.categories[name] = struct{}{}
	return b
}

func (b *categoryBuilder) WithCategories(names ...CategoryName) Builder {
	for _, name := range names {
		b.categories[name] = struct{}{}
	}
	return b
}

func (b *categoryBuilder) WithBasicCategories() Builder {
	return b.WithCategories(Groceries, Dining, Subscriptions, Utilities, Salary, Transfers)
}

func (b *categoryBuilder) WithFixture(fixture Fixture) Builder {
	return b.WithCategories(fixture.Categories...)
}

func (b *categoryBuilder) Build(ctx context.Context, storage service.Storage, userID string) (Categories, error) {
	b.t.Helper()

	names := make([]CategoryName, 0, len(b.categories))
	for name := range b.categories {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	result := make(Categories, 0, len(names))
	for _, name := range names {
		cat := &model.Category{
			UserID:    userID,
			Name:      name.String(),
			Component: name.Component(),
		}
		if err := storage.CreateCategory(ctx, cat); err != nil {
			return nil, fmt.Errorf("failed to create category %q: %w", name, err)
		}
		result = append(result, *cat)
	}
	return result, nil
}

func (b *categoryBuilder) BuildMap(ctx context.Context, storage service.Storage, userID string) (CategoryMap, error) {
	categories, err := b.Build(ctx, storage, userID)
	if err != nil {
		return nil, err
	}

	m := make(CategoryMap, len(categories))
	for _, cat := range categories {
		m[CategoryName(cat.Name)] = cat
	}
	return m, nil
}
