package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

type mockRuleStore struct {
	service.RuleStore
	mock.Mock
}

func (m *mockRuleStore) GetActiveRules(ctx context.Context, userID string) ([]model.AutomationRule, error) {
	args := m.Called(ctx, userID)
	if rules, ok := args.Get(0).([]model.AutomationRule); ok {
		return rules, args.Error(1)
	}
	return nil, args.Error(1)
}

func lunchCandidate() model.Transaction {
	return model.Transaction{
		ID:          "txn-1",
		UserID:      "user-1",
		Amount:      50000,
		Type:        model.TypeExpense,
		AccountID:   "A1",
		Description: "Lunch",
		Source:      model.SourceManual,
	}
}

func TestEvaluate_LunchScenario(t *testing.T) {
	rule := model.AutomationRule{
		ID:         3,
		Name:       "Lunch is food",
		IsActive:   true,
		Conditions: model.ConditionSet{DescriptionContains: []string{"lunch"}},
		Actions:    model.ActionSet{SetCategory: model.Some("food")},
	}

	result, err := Evaluate(lunchCandidate(), []model.AutomationRule{rule})
	require.NoError(t, err)

	assert.Equal(t, "food", result.Transaction.CategoryID)
	require.Len(t, result.Applied, 1)
	assert.Equal(t, int64(3), result.Applied[0].RuleID)
	assert.Equal(t, "Lunch is food", result.Applied[0].RuleName)
	assert.Equal(t, rule.Actions, result.Applied[0].Actions)
	assert.Equal(t, result.Applied, result.Transaction.AppliedRules)
}

func TestEvaluate_NoMatchIsNotAnError(t *testing.T) {
	rule := model.AutomationRule{
		ID:         1,
		Name:       "Rent",
		IsActive:   true,
		Conditions: model.ConditionSet{DescriptionContains: []string{"rent"}},
		Actions:    model.ActionSet{SetCategory: model.Some("housing")},
	}

	candidate := lunchCandidate()
	result, err := Evaluate(candidate, []model.AutomationRule{rule})
	require.NoError(t, err)
	assert.Empty(t, result.Applied)
	assert.NotNil(t, result.Applied)
	assert.Equal(t, candidate, result.Transaction)
}

func TestEvaluate_PriorityAndChaining(t *testing.T) {
	rules := []model.AutomationRule{
		{
			// Evaluated second; sees the category set by the higher rule and
			// overrides it.
			ID:         1,
			Name:       "low",
			Priority:   1,
			IsActive:   true,
			Conditions: model.ConditionSet{DescriptionContains: []string{"lunch"}},
			Actions:    model.ActionSet{SetCategory: model.Some("dining"), AddNote: "low"},
		},
		{
			ID:         2,
			Name:       "high",
			Priority:   10,
			IsActive:   true,
			Conditions: model.ConditionSet{DescriptionContains: []string{"lunch"}},
			Actions:    model.ActionSet{SetCategory: model.Some("food"), SetAccount: "A2", AddNote: "high"},
		},
		{
			// Only matches because the high rule moved the account to A2.
			ID:         3,
			Name:       "chained",
			Priority:   5,
			IsActive:   true,
			Conditions: model.ConditionSet{AccountID: "A2"},
			Actions:    model.ActionSet{AddNote: "chained"},
		},
	}

	result, err := Evaluate(lunchCandidate(), rules)
	require.NoError(t, err)

	assert.Equal(t, "dining", result.Transaction.CategoryID)
	assert.Equal(t, "A2", result.Transaction.AccountID)
	assert.Equal(t, "high\nchained\nlow", result.Transaction.Notes)

	var names []string
	for _, applied := range result.Applied {
		names = append(names, applied.RuleName)
	}
	assert.Equal(t, []string{"high", "chained", "low"}, names)
}

func TestEvaluate_Deterministic(t *testing.T) {
	rules := []model.AutomationRule{
		{ID: 9, Name: "b", Priority: 5, IsActive: true, Actions: model.ActionSet{AddNote: "b"}},
		{ID: 4, Name: "a", Priority: 5, IsActive: true, Actions: model.ActionSet{AddNote: "a"}},
		{ID: 7, Name: "c", Priority: 8, IsActive: true, Actions: model.ActionSet{SetType: model.TypeIncome}},
	}

	first, err := Evaluate(lunchCandidate(), rules)
	require.NoError(t, err)

	for range 20 {
		again, err := Evaluate(lunchCandidate(), rules)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	assert.Equal(t, "a\nb", first.Transaction.Notes, "ties break by id ascending")
	assert.Equal(t, model.TypeIncome, first.Transaction.Type)
}

func TestEvaluate_SkipsInactiveAndDeleted(t *testing.T) {
	deletedAt := time.Now()
	rules := []model.AutomationRule{
		{ID: 1, Name: "inactive", IsActive: false, Actions: model.ActionSet{AddNote: "inactive"}},
		{ID: 2, Name: "deleted", IsActive: true, DeletedAt: &deletedAt, Actions: model.ActionSet{AddNote: "deleted"}},
		{ID: 3, Name: "live", IsActive: true, Actions: model.ActionSet{AddNote: "live"}},
	}

	result, err := Evaluate(lunchCandidate(), rules)
	require.NoError(t, err)
	require.Len(t, result.Applied, 1)
	assert.Equal(t, "live", result.Transaction.Notes)
}

func TestEvaluate_PreboundTransferAccount(t *testing.T) {
	tests := []struct {
		name     string
		rule     model.AutomationRule
		wantDest string
	}{
		{
			name: "implicit link transfer",
			rule: model.AutomationRule{
				ID: 1, Name: "savings", IsActive: true,
				TransferAccountID: "SAV",
				Actions:           model.ActionSet{SetType: model.TypeTransfer},
			},
			wantDest: "SAV",
		},
		{
			name: "explicit link wins",
			rule: model.AutomationRule{
				ID: 1, Name: "savings", IsActive: true,
				TransferAccountID: "SAV",
				Actions:           model.ActionSet{SetType: model.TypeTransfer, LinkTransfer: "BRK"},
			},
			wantDest: "BRK",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Evaluate(lunchCandidate(), []model.AutomationRule{tt.rule})
			require.NoError(t, err)
			assert.Equal(t, tt.wantDest, result.Transaction.ToAccountID)
			assert.NotEmpty(t, result.Transaction.TransferID)
			require.Len(t, result.Applied, 1)
			assert.Equal(t, tt.wantDest, result.Applied[0].Actions.LinkTransfer, "audit records effective actions")
		})
	}
}

func TestEvaluate_InvalidRegexFailsRequest(t *testing.T) {
	rules := []model.AutomationRule{
		{ID: 1, Name: "ok", Priority: 10, IsActive: true, Actions: model.ActionSet{AddNote: "ok"}},
		{ID: 2, Name: "broken", Priority: 1, IsActive: true,
			Conditions: model.ConditionSet{DescriptionRegex: "[z-a]"},
			Actions:    model.ActionSet{AddNote: "never"}},
	}

	result, err := Evaluate(lunchCandidate(), rules)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrInvalidRegex)
}

func TestEngine_Run(t *testing.T) {
	ctx := context.Background()
	store := &mockRuleStore{}
	store.On("GetActiveRules", ctx, "user-1").Return([]model.AutomationRule{{
		ID:         1,
		Name:       "Lunch",
		IsActive:   true,
		Conditions: model.ConditionSet{DescriptionContains: []string{"lunch"}},
		Actions:    model.ActionSet{SetCategory: model.Some("food")},
	}}, nil)

	result, err := NewEngine(store).Run(ctx, lunchCandidate())
	require.NoError(t, err)
	assert.Equal(t, "food", result.Transaction.CategoryID)
	store.AssertExpectations(t)
}

func TestEngine_RunStoreError(t *testing.T) {
	ctx := context.Background()
	store := &mockRuleStore{}
	store.On("GetActiveRules", ctx, "user-1").Return(nil, errors.New("disk on fire"))

	_, err := NewEngine(store).Run(ctx, lunchCandidate())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load rules")
}
