package categories_test

import (
	"context"
	"testing"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/testutil"
	"github.com/Veraticus/the-books-must-balance/internal/testutil/categories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_WithCategory(t *testing.T) {
	db := testutil.SetupTestDBWithBuilder(t, func(b categories.Builder) categories.Builder {
		return b.WithCategory(categories.Groceries)
	})

	cat, err := db.Storage.GetCategoryByName(context.Background(), db.UserID, "Groceries")
	require.NoError(t, err)
	assert.Equal(t, model.ComponentExpense, cat.Component)
}

func TestBuilder_ComponentsFollowNames(t *testing.T) {
	db := testutil.SetupTestDBWithBuilder(t, func(b categories.Builder) categories.Builder {
		return b.WithFixture(categories.FixtureChartOfAccounts)
	})

	seen := make(map[model.FinancialComponent]bool)
	for _, cat := range db.Categories {
		seen[cat.Component] = true
	}
	for _, component := range model.Components {
		assert.True(t, seen[component], "fixture should cover %s", component)
	}

	assert.Equal(t, model.ComponentLiability, db.Categories.MustFind(t, categories.CreditCard).Component)
	assert.Nil(t, db.Categories.Find("Nonexistent"))
}

func TestBuilder_DuplicatesCollapse(t *testing.T) {
	db := testutil.SetupTestDBWithBuilder(t, func(b categories.Builder) categories.Builder {
		return b.WithBasicCategories().WithCategory(categories.Groceries)
	})

	cats, err := db.Storage.GetCategories(context.Background(), db.UserID)
	require.NoError(t, err)
	assert.Len(t, cats, len(db.Categories))
}
