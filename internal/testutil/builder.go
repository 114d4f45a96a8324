package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

// Builder provides a fluent interface for seeding accounts, categories and
// rules owned by DefaultUser.
type Builder struct {
	t          *testing.T
	accounts   []model.Account
	categories []model.Category
	rules      []model.AutomationRule
}

// Seeded holds everything a Builder created, with rule IDs filled in.
type Seeded struct {
	Accounts   []model.Account
	Categories []model.Category
	Rules      []model.AutomationRule
}

// NewBuilder creates a new fixture builder for the given test.
func NewBuilder(t *testing.T) *Builder {
	t.Helper()
	return &Builder{t: t}
}

// WithAccount adds an account with an opening balance in minor units.
func (b *Builder) WithAccount(id, name string, balance int64) *Builder {
	b.accounts = append(b.accounts, model.Account{
		ID:      id,
		UserID:  DefaultUser,
		Name:    name,
		Balance: balance,
	})
	return b
}

// WithCategory adds a category.
func (b *Builder) WithCategory(id, name string) *Builder {
	b.categories = append(b.categories, model.Category{
		ID:     id,
		UserID: DefaultUser,
		Name:   name,
	})
	return b
}

// WithRule adds an automation rule. The rule is owned by DefaultUser and
// active unless the caller built it otherwise.
func (b *Builder) WithRule(rule model.AutomationRule) *Builder {
	if rule.UserID == "" {
		rule.UserID = DefaultUser
	}
	b.rules = append(b.rules, rule)
	return b
}

// WithBasicLedger adds a checking and a savings account plus a few common
// categories.
func (b *Builder) WithBasicLedger() *Builder {
	return b.
		WithAccount("checking", "Checking", 0).
		WithAccount("savings", "Savings", 0).
		WithCategory("food", "Food & Dining").
		WithCategory("groceries", "Groceries").
		WithCategory("salary", "Salary")
}

// Build creates the fixtures in store.
func (b *Builder) Build(ctx context.Context, store service.Store) (Seeded, error) {
	b.t.Helper()

	var seeded Seeded
	for _, account := range b.accounts {
		if err := store.CreateAccount(ctx, &account); err != nil {
			return Seeded{}, fmt.Errorf("failed to create account %q: %w", account.Name, err)
		}
		seeded.Accounts = append(seeded.Accounts, account)
	}

	for _, category := range b.categories {
		if err := store.CreateCategory(ctx, &category); err != nil {
			return Seeded{}, fmt.Errorf("failed to create category %q: %w", category.Name, err)
		}
		seeded.Categories = append(seeded.Categories, category)
	}

	for _, rule := range b.rules {
		if err := store.CreateRule(ctx, &rule); err != nil {
			return Seeded{}, fmt.Errorf("failed to create rule %q: %w", rule.Name, err)
		}
		seeded.Rules = append(seeded.Rules, rule)
	}

	return seeded, nil
}
