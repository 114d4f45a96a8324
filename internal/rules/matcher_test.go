package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-ledger/internal/model"
)

func int64Ptr(v int64) *int64 { return &v }

func TestMatch(t *testing.T) {
	txn := model.Transaction{
		Description: "Corner Cafe LUNCH",
		RawText:     "POS 4411 CORNER CAFE",
		Amount:      50000,
		AccountID:   "A1",
		Source:      model.SourceImport,
	}

	tests := []struct {
		name       string
		conditions model.ConditionSet
		logic      model.ConditionLogic
		want       bool
	}{
		{
			name:       "no conditions matches everything",
			conditions: model.ConditionSet{},
			want:       true,
		},
		{
			name:       "description contains is case insensitive",
			conditions: model.ConditionSet{DescriptionContains: []string{"lunch"}},
			want:       true,
		},
		{
			name:       "description contains any term",
			conditions: model.ConditionSet{DescriptionContains: []string{"dinner", "CAFE"}},
			want:       true,
		},
		{
			name:       "description contains none",
			conditions: model.ConditionSet{DescriptionContains: []string{"dinner"}},
			want:       false,
		},
		{
			name:       "regex is case insensitive",
			conditions: model.ConditionSet{DescriptionRegex: `^corner\s+cafe`},
			want:       true,
		},
		{
			name:       "regex mismatch",
			conditions: model.ConditionSet{DescriptionRegex: `^lunch`},
			want:       false,
		},
		{
			name:       "raw text contains",
			conditions: model.ConditionSet{RawTextContains: []string{"pos 4411"}},
			want:       true,
		},
		{
			name:       "amount range inclusive lower bound",
			conditions: model.ConditionSet{AmountMin: int64Ptr(50000), AmountMax: int64Ptr(60000)},
			want:       true,
		},
		{
			name:       "amount range inclusive upper bound",
			conditions: model.ConditionSet{AmountMin: int64Ptr(100), AmountMax: int64Ptr(50000)},
			want:       true,
		},
		{
			name:       "amount below range",
			conditions: model.ConditionSet{AmountMin: int64Ptr(50001)},
			want:       false,
		},
		{
			name:       "amount above open range",
			conditions: model.ConditionSet{AmountMax: int64Ptr(49999)},
			want:       false,
		},
		{
			name:       "exact amount",
			conditions: model.ConditionSet{AmountEquals: int64Ptr(50000)},
			want:       true,
		},
		{
			name:       "exact amount has no tolerance",
			conditions: model.ConditionSet{AmountEquals: int64Ptr(50001)},
			want:       false,
		},
		{
			name:       "account equality",
			conditions: model.ConditionSet{AccountID: "A2"},
			want:       false,
		},
		{
			name:       "source membership",
			conditions: model.ConditionSet{Sources: []string{model.SourceManual, model.SourceImport}},
			want:       true,
		},
		{
			name:       "source not in list",
			conditions: model.ConditionSet{Sources: []string{model.SourceAI}},
			want:       false,
		},
		{
			name: "and requires every kind",
			conditions: model.ConditionSet{
				DescriptionContains: []string{"lunch"},
				AccountID:           "A2",
			},
			want: false,
		},
		{
			name: "explicit and requires every kind",
			conditions: model.ConditionSet{
				DescriptionContains: []string{"lunch"},
				AccountID:           "A1",
			},
			logic: model.LogicAnd,
			want:  true,
		},
		{
			name: "or requires any kind",
			conditions: model.ConditionSet{
				DescriptionContains: []string{"lunch"},
				AccountID:           "A2",
			},
			logic: model.LogicOr,
			want:  true,
		},
		{
			name: "or fails when no kind holds",
			conditions: model.ConditionSet{
				DescriptionContains: []string{"dinner"},
				AccountID:           "A2",
			},
			logic: model.LogicOr,
			want:  false,
		},
		{
			name:       "or with no conditions matches",
			conditions: model.ConditionSet{},
			logic:      model.LogicOr,
			want:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := model.AutomationRule{Name: tt.name, ConditionLogic: tt.logic, Conditions: tt.conditions}
			got, err := Match(txn, rule)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatch_InvalidRegex(t *testing.T) {
	rule := model.AutomationRule{
		Name:       "broken",
		Conditions: model.ConditionSet{DescriptionRegex: "(unclosed"},
	}

	_, err := Match(model.Transaction{Description: "anything"}, rule)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRegex)
	assert.Contains(t, err.Error(), "broken")

	rule.ConditionLogic = model.LogicOr
	rule.Conditions.DescriptionContains = []string{"anything"}
	_, err = Match(model.Transaction{Description: "anything"}, rule)
	assert.ErrorIs(t, err, ErrInvalidRegex, "or mode still validates the regex")
}
