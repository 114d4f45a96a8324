package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/spice-ledger/internal/model"
)

func TestApply(t *testing.T) {
	base := model.Transaction{
		Type:       model.TypeExpense,
		AccountID:  "A1",
		CategoryID: "groceries",
		Notes:      "first",
	}

	tests := []struct {
		check   func(t *testing.T, got model.Transaction)
		name    string
		actions model.ActionSet
	}{
		{
			name:    "empty action set is a no-op",
			actions: model.ActionSet{},
			check: func(t *testing.T, got model.Transaction) {
				t.Helper()
				assert.Equal(t, base, got)
			},
		},
		{
			name:    "force type",
			actions: model.ActionSet{SetType: model.TypeIncome},
			check: func(t *testing.T, got model.Transaction) {
				t.Helper()
				assert.Equal(t, model.TypeIncome, got.Type)
			},
		},
		{
			name:    "force category",
			actions: model.ActionSet{SetCategory: model.Some("food")},
			check: func(t *testing.T, got model.Transaction) {
				t.Helper()
				assert.Equal(t, "food", got.CategoryID)
			},
		},
		{
			name:    "explicit clear empties category",
			actions: model.ActionSet{SetCategory: model.Clear()},
			check: func(t *testing.T, got model.Transaction) {
				t.Helper()
				assert.Empty(t, got.CategoryID)
			},
		},
		{
			name:    "absent category leaves it",
			actions: model.ActionSet{SetAccount: "A9"},
			check: func(t *testing.T, got model.Transaction) {
				t.Helper()
				assert.Equal(t, "groceries", got.CategoryID)
				assert.Equal(t, "A9", got.AccountID)
			},
		},
		{
			name:    "link transfer sets destination and correlation id",
			actions: model.ActionSet{LinkTransfer: "A2"},
			check: func(t *testing.T, got model.Transaction) {
				t.Helper()
				assert.Equal(t, "A2", got.ToAccountID)
				assert.NotEmpty(t, got.TransferID)
			},
		},
		{
			name:    "add note appends on a new line",
			actions: model.ActionSet{AddNote: "second"},
			check: func(t *testing.T, got model.Transaction) {
				t.Helper()
				assert.Equal(t, "first\nsecond", got.Notes)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := base.Clone()
			got := Apply(input, tt.actions)
			tt.check(t, got)
			assert.Equal(t, base, input, "input must not be mutated")
		})
	}
}

func TestApply_NoteOnEmpty(t *testing.T) {
	got := Apply(model.Transaction{}, model.ActionSet{AddNote: "hello"})
	assert.Equal(t, "hello", got.Notes)
}

func TestApply_FreshTransferIDs(t *testing.T) {
	first := Apply(model.Transaction{}, model.ActionSet{LinkTransfer: "A2"})
	second := Apply(model.Transaction{}, model.ActionSet{LinkTransfer: "A2"})
	assert.NotEqual(t, first.TransferID, second.TransferID)
}

func TestApply_DoesNotShareAuditSlice(t *testing.T) {
	input := model.Transaction{AppliedRules: []model.AppliedRule{{RuleID: 1}}}
	out := Apply(input, model.ActionSet{AddNote: "x"})
	out.AppliedRules[0].RuleID = 99
	assert.Equal(t, int64(1), input.AppliedRules[0].RuleID)
}
