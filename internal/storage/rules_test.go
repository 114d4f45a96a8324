package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
)

func createRule(t *testing.T, store *SQLiteStorage, name string, priority int, active bool) *model.AutomationRule {
	t.Helper()
	minAmount := int64(100)
	rule := &model.AutomationRule{
		UserID:   testUser,
		Name:     name,
		Priority: priority,
		IsActive: active,
		Conditions: model.ConditionSet{
			DescriptionContains: []string{"lunch"},
			AmountMin:           &minAmount,
		},
		Actions: model.ActionSet{SetCategory: model.Some("food")},
	}
	require.NoError(t, store.CreateRule(context.Background(), rule))
	return rule
}

func TestSQLiteStorage_CreateRule(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	rule := createRule(t, store, "Lunch", 10, true)
	assert.NotZero(t, rule.ID)
	assert.Equal(t, model.LogicAnd, rule.ConditionLogic, "logic defaults to and")

	rules, err := store.ListRules(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	got := rules[0]
	assert.Equal(t, "Lunch", got.Name)
	assert.Equal(t, []string{"lunch"}, got.Conditions.DescriptionContains)
	require.NotNil(t, got.Conditions.AmountMin)
	assert.Equal(t, int64(100), *got.Conditions.AmountMin)
	assert.Nil(t, got.Conditions.AmountMax)
	assert.Equal(t, model.Some("food"), got.Actions.SetCategory)
}

func TestSQLiteStorage_CreateRuleValidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		rule *model.AutomationRule
		name string
	}{
		{name: "nil", rule: nil},
		{name: "no user", rule: &model.AutomationRule{Name: "x", Actions: model.ActionSet{AddNote: "n"}}},
		{name: "no actions", rule: &model.AutomationRule{UserID: testUser, Name: "x"}},
		{name: "bad logic", rule: &model.AutomationRule{UserID: testUser, Name: "x", ConditionLogic: "xor", Actions: model.ActionSet{AddNote: "n"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, store.CreateRule(ctx, tt.rule))
		})
	}
}

func TestSQLiteStorage_GetActiveRulesOrdering(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	low := createRule(t, store, "low", 1, true)
	highA := createRule(t, store, "high-a", 50, true)
	highB := createRule(t, store, "high-b", 50, true)
	createRule(t, store, "inactive", 100, false)
	deleted := createRule(t, store, "deleted", 99, true)
	require.NoError(t, store.DeleteRule(ctx, testUser, deleted.ID))

	rules, err := store.GetActiveRules(ctx, testUser)
	require.NoError(t, err)

	var ids []int64
	for _, r := range rules {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{highA.ID, highB.ID, low.ID}, ids)

	all, err := store.ListRules(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, all, 4, "list includes inactive but not deleted rules")
}

func TestSQLiteStorage_DeleteRule(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rule := createRule(t, store, "Lunch", 10, true)

	assert.ErrorIs(t, store.DeleteRule(ctx, "other-user", rule.ID), common.ErrNotFound)
	require.NoError(t, store.DeleteRule(ctx, testUser, rule.ID))
	assert.ErrorIs(t, store.DeleteRule(ctx, testUser, rule.ID), common.ErrNotFound)
}
