package rules

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

// Result is the outcome of running the rule engine over a candidate.
type Result struct {
	// Transaction is the candidate after every matching rule was applied. Its
	// AppliedRules includes the entries in Applied.
	Transaction model.Transaction
	// Applied lists the rules that fired, in evaluation order.
	Applied []model.AppliedRule
}

// Evaluate folds the evaluable rules over candidate in priority order. Each
// rule sees the candidate as left by the rules before it. An empty Applied
// list means no automation applied and is not an error.
func Evaluate(candidate model.Transaction, rules []model.AutomationRule) (*Result, error) {
	ordered := orderRules(rules)

	// Compile everything first so an invalid regex fails the whole request
	// regardless of where it sits in the order.
	matchers := make([]*matcher, len(ordered))
	for i, rule := range ordered {
		m, err := compile(rule)
		if err != nil {
			return nil, err
		}
		matchers[i] = m
	}

	current := candidate.Clone()
	applied := []model.AppliedRule{}

	for i, rule := range ordered {
		if !matchers[i].matches(&current) {
			continue
		}

		actions := effectiveActions(rule)
		current = Apply(current, actions)

		entry := model.AppliedRule{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Actions:  actions,
		}
		applied = append(applied, entry)
		current.AppliedRules = append(current.AppliedRules, entry)

		slog.Debug("Rule fired",
			"rule_id", rule.ID,
			"rule", rule.Name,
			"priority", rule.Priority,
			"transaction_id", current.ID)
	}

	return &Result{Transaction: current, Applied: applied}, nil
}

// orderRules drops inactive and deleted rules and sorts the rest by priority
// descending, then id ascending.
func orderRules(rules []model.AutomationRule) []model.AutomationRule {
	ordered := make([]model.AutomationRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Evaluable() {
			ordered = append(ordered, rule)
		}
	}

	slices.SortStableFunc(ordered, func(a, b model.AutomationRule) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return ordered
}

// Engine loads a user's active rules and evaluates them.
type Engine struct {
	store service.RuleStore
}

// NewEngine creates a rule engine reading rules from store.
func NewEngine(store service.RuleStore) *Engine {
	return &Engine{store: store}
}

// Run loads the candidate owner's active rules and evaluates them. Rules are
// queried fresh on every call.
func (e *Engine) Run(ctx context.Context, candidate model.Transaction) (*Result, error) {
	rules, err := e.store.GetActiveRules(ctx, candidate.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	result, err := Evaluate(candidate, rules)
	if err != nil {
		return nil, err
	}

	if len(result.Applied) > 0 {
		slog.Debug("Automation applied",
			"transaction_id", candidate.ID,
			"rules_fired", len(result.Applied),
			"rules_loaded", len(rules))
	}
	return result, nil
}
