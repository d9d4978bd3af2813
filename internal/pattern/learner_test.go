package pattern

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func newTestStore() *MemoryStore {
	store := NewMemoryStore()
	for _, c := range []model.Category{
		{ID: "groceries", UserID: "u1", Name: "Groceries", Component: model.ComponentExpense},
		{ID: "dining", UserID: "u1", Name: "Dining", Component: model.ComponentExpense},
		{ID: "coffee", UserID: "u1", Name: "Coffee", Component: model.ComponentExpense},
		{ID: "salary", UserID: "u1", Name: "Salary", Component: model.ComponentIncome},
		{ID: "groceries", UserID: "u2", Name: "Groceries", Component: model.ComponentExpense},
	} {
		store.AddCategory(c)
	}
	return store
}

func newTestLearner() *Learner {
	return NewLearner(DefaultConfig()).WithClock(func() time.Time { return testNow })
}

func tx(id, desc, amount string) model.Transaction {
	return model.Transaction{
		ID:          id,
		UserID:      "u1",
		Description: desc,
		Amount:      decimal.RequireFromString(amount),
		Type:        model.PaidOut,
		Date:        testNow,
		Version:     1,
	}
}

func TestLearn_TescoThenSuggest(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	l := newTestLearner()

	_, err := l.Learn(ctx, store, "u1", tx("t1", "Tesco", "-12.00"), "groceries")
	require.NoError(t, err)

	suggestions, err := l.Suggest(ctx, store, "u1", tx("t2", "TESCO STORES 2231", "-40.00"))
	require.NoError(t, err)
	require.NotEmpty(t, suggestions)

	top := suggestions[0]
	assert.Equal(t, "groceries", top.Category.ID)
	assert.Equal(t, model.PatternVendor, top.Source)
	assert.Greater(t, top.Confidence, DefaultConfig().BaselineConfidence)
	assert.NotEmpty(t, top.Reason)
}

func TestLearn_ReinforceAndOverride(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	l := newTestLearner()
	coffee := tx("t1", "CARD PAYMENT Pret A Manger 0142", "-3.20")

	p, err := l.Learn(ctx, store, "u1", coffee, "coffee")
	require.NoError(t, err)
	assert.Equal(t, "pret manger", p.Value)
	assert.Equal(t, 50.0, p.Confidence)
	assert.Equal(t, 1, p.UsageCount)

	p, err = l.Learn(ctx, store, "u1", coffee, "coffee")
	require.NoError(t, err)
	assert.Equal(t, 65.0, p.Confidence)
	assert.Equal(t, 2, p.UsageCount)

	// A different category is a user override: switch and reset.
	p, err = l.Learn(ctx, store, "u1", coffee, "dining")
	require.NoError(t, err)
	assert.Equal(t, "dining", p.CategoryID)
	assert.Equal(t, 50.0, p.Confidence)
	assert.Equal(t, 3, p.UsageCount)
	assert.Equal(t, testNow, p.LastUsed)

	all, err := store.ListPatterns(ctx, "u1", model.PatternVendor)
	require.NoError(t, err)
	assert.Len(t, all, 1, "repeat decisions update, never duplicate")
}

func TestLearn_Errors(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	l := newTestLearner()

	tests := []struct {
		wantErr  error
		name     string
		user     string
		category string
		txn      model.Transaction
	}{
		{name: "missing user", user: "", category: "coffee", txn: tx("t1", "pret", "-1.00"), wantErr: common.ErrValidation},
		{name: "missing description", user: "u1", category: "coffee", txn: tx("t1", "  1234 ", "-1.00"), wantErr: common.ErrValidation},
		{name: "missing category id", user: "u1", category: "", txn: tx("t1", "pret", "-1.00"), wantErr: common.ErrValidation},
		{name: "unknown category", user: "u1", category: "nope", txn: tx("t1", "pret", "-1.00"), wantErr: common.ErrNotFound},
		{name: "other user's transaction", user: "u2", category: "groceries", txn: tx("t1", "pret", "-1.00"), wantErr: common.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Learn(ctx, store, tt.user, tt.txn, tt.category)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSuggest_NoPatternsIsEmpty(t *testing.T) {
	suggestions, err := newTestLearner().Suggest(context.Background(), newTestStore(), "u1", tx("t1", "Anything", "-1.00"))
	require.NoError(t, err)
	assert.Empty(t, suggestions)

	_, err = newTestLearner().Suggest(context.Background(), newTestStore(), "", tx("t1", "Anything", "-1.00"))
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestSuggest_Tiers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	l := newTestLearner()

	_, err := l.Learn(ctx, store, "u1", tx("v1", "Tesco", "-10.00"), "groceries")
	require.NoError(t, err)
	_, err = l.Learn(ctx, store, "u1", tx("v2", "Tesco", "-10.00"), "groceries")
	require.NoError(t, err)
	_, err = l.Define(ctx, store, "u1", model.PatternKeyword, "Salary", "salary", 90)
	require.NoError(t, err)
	_, err = l.Define(ctx, store, "u1", model.PatternAmountRange, "0:5", "coffee", 40)
	require.NoError(t, err)

	tests := []struct {
		name         string
		txn          model.Transaction
		wantCategory string
		wantSource   model.PatternType
		wantConf     float64
	}{
		{
			name:         "vendor wins over keyword and amount",
			txn:          tx("a", "Tesco salary refund", "-2.00"),
			wantCategory: "groceries",
			wantSource:   model.PatternVendor,
		},
		{
			name:         "keyword phrase",
			txn:          tx("b", "ACME LTD SALARY MAR", "2500.00"),
			wantCategory: "salary",
			wantSource:   model.PatternKeyword,
		},
		{
			name:         "amount range",
			txn:          tx("c", "Kiosk", "-4.99"),
			wantCategory: "coffee",
			wantSource:   model.PatternAmountRange,
		},
		{
			name:         "frequency fallback",
			txn:          tx("d", "Unknown merchant", "-250.00"),
			wantCategory: "groceries",
			wantSource:   model.PatternFrequency,
			wantConf:     20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.Suggest(ctx, store, "u1", tt.txn)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantCategory, got[0].Category.ID)
			assert.Equal(t, tt.wantSource, got[0].Source)
			if tt.wantConf != 0 {
				assert.Equal(t, tt.wantConf, got[0].Confidence)
			}
		})
	}
}

func TestSuggest_RanksAndDedupes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	l := newTestLearner()

	_, err := l.Define(ctx, store, "u1", model.PatternKeyword, "coffee", "coffee", 60)
	require.NoError(t, err)
	_, err = l.Define(ctx, store, "u1", model.PatternKeyword, "beans", "coffee", 30)
	require.NoError(t, err)
	_, err = l.Define(ctx, store, "u1", model.PatternKeyword, "market", "groceries", 45)
	require.NoError(t, err)

	got, err := l.Suggest(ctx, store, "u1", tx("a", "Coffee beans market", "-9.00"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "coffee", got[0].Category.ID)
	assert.Equal(t, "groceries", got[1].Category.ID)
	assert.Greater(t, got[0].Confidence, got[1].Confidence)
}

func TestSuggest_UsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	l := newTestLearner()

	_, err := l.Learn(ctx, store, "u1", tx("t1", "Tesco", "-1.00"), "groceries")
	require.NoError(t, err)

	other := tx("t2", "Tesco", "-1.00")
	other.UserID = "u2"
	got, err := l.Suggest(ctx, store, "u2", other)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEffectiveConfidence(t *testing.T) {
	l := newTestLearner()

	assert.InDelta(t, 53.47, l.EffectiveConfidence(model.LearningPattern{Confidence: 50, UsageCount: 1}), 0.01)
	assert.Equal(t, 100.0, l.EffectiveConfidence(model.LearningPattern{Confidence: 99, UsageCount: 500}))

	low := l.EffectiveConfidence(model.LearningPattern{Confidence: 60, UsageCount: 1})
	high := l.EffectiveConfidence(model.LearningPattern{Confidence: 60, UsageCount: 10})
	assert.Greater(t, high, low)
}

func TestAssign(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	l := newTestLearner()
	original := tx("t1", "Tesco Metro", "-5.00")

	assignment, err := l.Assign(ctx, store, "u1", original, "groceries")
	require.NoError(t, err)

	assert.Equal(t, int64(1), assignment.ExpectedVersion)
	assert.Equal(t, int64(2), assignment.Transaction.Version)
	require.NotNil(t, assignment.Transaction.Category)
	assert.Equal(t, model.ComponentExpense, assignment.Transaction.Category.Component)
	assert.Nil(t, original.Category, "input is not modified")

	p, err := store.FindPattern(ctx, "u1", model.PatternVendor, "tesco metro")
	require.NoError(t, err)
	assert.Equal(t, "groceries", p.CategoryID)
}

func TestBulkAssignByVendor_LearnsOncePerSignature(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	l := newTestLearner()

	txns := []model.Transaction{
		tx("t1", "NETFLIX.COM 866-579", "-9.99"),
		tx("t2", "Netflix.com 866-580", "-9.99"),
		tx("t3", "NETFLIX.COM", "-9.99"),
		tx("t4", "Netflix Premium", "-15.99"),
		tx("t5", "Spotify", "-9.99"),
	}

	plan, err := l.BulkAssignByVendor(ctx, store, "u1", "netflix", "dining", txns)
	require.NoError(t, err)

	assert.Len(t, plan.Assignments, 4)
	assert.Equal(t, []string{"netflix com", "netflix premium"}, plan.Signatures)

	p, err := store.FindPattern(ctx, "u1", model.PatternVendor, "netflix com")
	require.NoError(t, err)
	assert.Equal(t, 1, p.UsageCount, "three transactions, one learning event")
	assert.Equal(t, 50.0, p.Confidence)

	_, err = store.FindPattern(ctx, "u1", model.PatternVendor, "spotify")
	assert.ErrorIs(t, err, common.ErrNotFound)

	// Running again changes nothing: every match already carries the category.
	var updated []model.Transaction
	for _, a := range plan.Assignments {
		updated = append(updated, a.Transaction)
	}
	again, err := l.PlanBulkAssign(ctx, store, "u1", "netflix", "dining", updated)
	require.NoError(t, err)
	assert.Empty(t, again.Assignments)
	assert.Equal(t, 4, again.Unchanged)
}

func TestLearnFromMatch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	l := newTestLearner()

	out := tx("o1", "Transfer to Savings", "-100.00")
	in := tx("i1", "From Current Acct", "100.00")
	in.Type = model.PaidIn
	cat, err := store.GetCategory(ctx, "u1", "salary")
	require.NoError(t, err)
	out.Category = cat.Ref()

	learned, err := l.LearnFromMatch(ctx, store, "u1", out, in)
	require.NoError(t, err)
	require.Len(t, learned, 2)

	p, err := store.FindPattern(ctx, "u1", model.PatternVendor, "from current")
	require.NoError(t, err)
	assert.Equal(t, "salary", p.CategoryID)
	assert.Nil(t, in.Category)
}

func TestDefine(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	l := newTestLearner()

	p, err := l.Define(ctx, store, "u1", model.PatternAmountRange, "-10:2.5", "coffee", 0)
	require.NoError(t, err)
	assert.Equal(t, "2.50:10.00", p.Value)
	assert.Equal(t, 50.0, p.Confidence)

	_, err = l.Define(ctx, store, "u1", model.PatternFrequency, "x", "coffee", 10)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = l.Define(ctx, store, "u1", model.PatternAmountRange, "ten", "coffee", 10)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = l.Define(ctx, store, "u1", model.PatternKeyword, "rent", "coffee", 140)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.VendorTokens = 0
	assert.ErrorIs(t, bad.Validate(), common.ErrInvalidConfig)

	bad = DefaultConfig()
	bad.ReinforceWeight = 1.5
	assert.ErrorIs(t, bad.Validate(), common.ErrInvalidConfig)
}
