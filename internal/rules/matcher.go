// Package rules evaluates automation rules against candidate transactions.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
)

// ErrInvalidRegex is returned when a rule's description regex does not compile.
var ErrInvalidRegex = errors.New("invalid description regex")

// predicate is one declared condition kind of a rule.
type predicate func(txn *model.Transaction) bool

// matcher holds the compiled predicates of a single rule.
type matcher struct {
	logic      model.ConditionLogic
	predicates []predicate
}

// Match reports whether the rule's conditions hold for txn. It never mutates txn.
func Match(txn model.Transaction, rule model.AutomationRule) (bool, error) {
	m, err := compile(rule)
	if err != nil {
		return false, err
	}
	return m.matches(&txn), nil
}

// compile turns a rule's condition set into predicates, one per declared kind.
func compile(rule model.AutomationRule) (*matcher, error) {
	c := rule.Conditions
	m := &matcher{logic: rule.ConditionLogic}

	if len(c.DescriptionContains) > 0 {
		terms := foldAll(c.DescriptionContains)
		m.predicates = append(m.predicates, func(txn *model.Transaction) bool {
			return containsAny(txn.Description, terms)
		})
	}

	if c.DescriptionRegex != "" {
		re, err := common.CompileFold(c.DescriptionRegex)
		if err != nil {
			return nil, fmt.Errorf("%w in rule %q: %v", ErrInvalidRegex, rule.Name, err)
		}
		m.predicates = append(m.predicates, regexPredicate(re))
	}

	if len(c.RawTextContains) > 0 {
		terms := foldAll(c.RawTextContains)
		m.predicates = append(m.predicates, func(txn *model.Transaction) bool {
			return containsAny(txn.RawText, terms)
		})
	}

	if c.AmountMin != nil || c.AmountMax != nil {
		lo, hi := c.AmountMin, c.AmountMax
		m.predicates = append(m.predicates, func(txn *model.Transaction) bool {
			if lo != nil && txn.Amount < *lo {
				return false
			}
			if hi != nil && txn.Amount > *hi {
				return false
			}
			return true
		})
	}

	if c.AmountEquals != nil {
		want := *c.AmountEquals
		m.predicates = append(m.predicates, func(txn *model.Transaction) bool {
			return txn.Amount == want
		})
	}

	if c.AccountID != "" {
		accountID := c.AccountID
		m.predicates = append(m.predicates, func(txn *model.Transaction) bool {
			return txn.AccountID == accountID
		})
	}

	if len(c.Sources) > 0 {
		sources := slices.Clone(c.Sources)
		m.predicates = append(m.predicates, func(txn *model.Transaction) bool {
			return slices.Contains(sources, txn.Source)
		})
	}

	return m, nil
}

// matches combines the predicates. In "and" mode every declared kind must
// hold; in "or" mode at least one must. A rule with no declared kinds
// matches everything in either mode.
func (m *matcher) matches(txn *model.Transaction) bool {
	if len(m.predicates) == 0 {
		return true
	}

	if m.logic == model.LogicOr {
		for _, p := range m.predicates {
			if p(txn) {
				return true
			}
		}
		return false
	}

	for _, p := range m.predicates {
		if !p(txn) {
			return false
		}
	}
	return true
}

func regexPredicate(re *regexp.Regexp) predicate {
	return func(txn *model.Transaction) bool {
		return re.MatchString(txn.Description)
	}
}

func foldAll(terms []string) []string {
	folded := make([]string, 0, len(terms))
	for _, term := range terms {
		folded = append(folded, strings.ToLower(term))
	}
	return folded
}

func containsAny(text string, foldedTerms []string) bool {
	text = strings.ToLower(text)
	for _, term := range foldedTerms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
