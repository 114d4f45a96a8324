package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ConditionLogic controls how the declared condition kinds of a rule combine.
type ConditionLogic string

// Condition logic constants.
const (
	LogicAnd ConditionLogic = "and"
	LogicOr  ConditionLogic = "or"
)

// AutomationRule is a standing instruction that reclassifies or enriches
// transactions when they are ingested.
type AutomationRule struct {
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         *time.Time     `json:"deleted_at,omitempty"`
	UserID            string         `json:"user_id"`
	Name              string         `json:"name"`
	ConditionLogic    ConditionLogic `json:"condition_logic"`
	TransferAccountID string         `json:"transfer_account_id,omitempty"`
	Conditions        ConditionSet   `json:"conditions"`
	Actions           ActionSet      `json:"actions"`
	ID                int64          `json:"id"`
	Priority          int            `json:"priority"`
	IsActive          bool           `json:"is_active"`
}

// Evaluable reports whether the rule takes part in ingestion.
func (r *AutomationRule) Evaluable() bool {
	return r.IsActive && r.DeletedAt == nil
}

// ConditionSet holds the predicates of a rule. A zero-valued field is not a
// filter.
type ConditionSet struct {
	AmountMin           *int64   `json:"amount_min,omitempty"`
	AmountMax           *int64   `json:"amount_max,omitempty"`
	AmountEquals        *int64   `json:"amount_equals,omitempty"`
	DescriptionRegex    string   `json:"description_regex,omitempty"`
	AccountID           string   `json:"account_id,omitempty"`
	DescriptionContains []string `json:"description_contains,omitempty"`
	RawTextContains     []string `json:"raw_text_contains,omitempty"`
	Sources             []string `json:"sources,omitempty"`
}

// IsEmpty reports whether no predicate kind is declared.
func (c *ConditionSet) IsEmpty() bool {
	return len(c.DescriptionContains) == 0 &&
		c.DescriptionRegex == "" &&
		len(c.RawTextContains) == 0 &&
		c.AmountMin == nil &&
		c.AmountMax == nil &&
		c.AmountEquals == nil &&
		c.AccountID == "" &&
		len(c.Sources) == 0
}

// ActionSet holds the mutations a matching rule applies.
type ActionSet struct {
	SetType      TransactionType `json:"set_type,omitempty"`
	SetAccount   string          `json:"set_account,omitempty"`
	LinkTransfer string          `json:"link_transfer,omitempty"`
	AddNote      string          `json:"add_note,omitempty"`
	SetCategory  OptionalString  `json:"set_category,omitzero"`
}

// IsEmpty reports whether the action set does nothing.
func (a *ActionSet) IsEmpty() bool {
	return a.SetType == "" &&
		!a.SetCategory.Set &&
		a.SetAccount == "" &&
		a.LinkTransfer == "" &&
		a.AddNote == ""
}

// OptionalString distinguishes "not specified" from "explicitly cleared".
// Set is false when the value was absent. Set with an empty Value clears.
type OptionalString struct {
	Value string
	Set   bool
}

// Some returns a specified OptionalString holding v.
func Some(v string) OptionalString {
	return OptionalString{Value: v, Set: true}
}

// Clear returns a specified OptionalString that clears the target field.
func Clear() OptionalString {
	return OptionalString{Set: true}
}

// MarshalJSON encodes a cleared value as null.
func (o OptionalString) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Value == "" {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON marks the value as specified whenever the key is present,
// including an explicit null.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = ""
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// Validate ensures the rule has coherent data. Regular expressions are
// compiled by the rules package, not here.
func (r *AutomationRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}

	switch r.ConditionLogic {
	case "", LogicAnd, LogicOr:
	default:
		return fmt.Errorf("condition logic must be %q or %q", LogicAnd, LogicOr)
	}

	c := r.Conditions
	if c.AmountMin != nil && c.AmountMax != nil && *c.AmountMin > *c.AmountMax {
		return fmt.Errorf("amount min must be less than or equal to amount max")
	}

	if r.Actions.SetType != "" && !r.Actions.SetType.Valid() {
		return fmt.Errorf("unknown transaction type %q", r.Actions.SetType)
	}

	if r.Actions.IsEmpty() && r.TransferAccountID == "" {
		return fmt.Errorf("rule must declare at least one action")
	}

	return nil
}
