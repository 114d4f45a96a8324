// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate      *time.Time
	EndDate        *time.Time
	AccountID      string
	Limit          int
	IncludeDeleted bool
}

// TransactionStore persists transactions.
type TransactionStore interface {
	InsertTransaction(ctx context.Context, txn *model.Transaction) error
	GetTransaction(ctx context.Context, userID, id string) (*model.Transaction, error)
	SoftDeleteTransaction(ctx context.Context, userID, id string) error
	ListTransactions(ctx context.Context, userID string, filter TransactionFilter) ([]model.Transaction, error)
}

// DuplicateFinder looks up live transactions that may describe the same
// real-world event as a candidate. Both methods return nil, nil on no match.
type DuplicateFinder interface {
	FindByRawText(ctx context.Context, userID, rawText, source string) (*model.Transaction, error)
	FindByDateAmountAccount(ctx context.Context, userID string, date time.Time, amount int64, accountID string) (*model.Transaction, error)
}

// BalanceStore adjusts account balances atomically. Only accounts owned by
// userID can be adjusted.
type BalanceStore interface {
	AdjustBalance(ctx context.Context, userID, accountID string, delta int64) error
}

// AccountStore manages accounts.
type AccountStore interface {
	BalanceStore
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, userID, id string) (*model.Account, error)
	ListAccounts(ctx context.Context, userID string) ([]model.Account, error)
}

// CategoryStore manages categories.
type CategoryStore interface {
	CreateCategory(ctx context.Context, category *model.Category) error
	GetCategory(ctx context.Context, userID, id string) (*model.Category, error)
	ListCategories(ctx context.Context, userID string) ([]model.Category, error)
}

// RuleStore reads and manages automation rules.
type RuleStore interface {
	// GetActiveRules returns active, non-deleted rules ordered by priority
	// descending then id ascending.
	GetActiveRules(ctx context.Context, userID string) ([]model.AutomationRule, error)
	CreateRule(ctx context.Context, rule *model.AutomationRule) error
	ListRules(ctx context.Context, userID string) ([]model.AutomationRule, error)
	DeleteRule(ctx context.Context, userID string, id int64) error
}

// UsageStore tracks monthly transaction counts per user.
type UsageStore interface {
	GetUsage(ctx context.Context, userID, period string) (int, error)
	IncrementUsage(ctx context.Context, userID, period string, delta int) error
}

// Store is the set of operations available both on the database and inside a
// database transaction.
type Store interface {
	TransactionStore
	DuplicateFinder
	AccountStore
	CategoryStore
	RuleStore
	UsageStore
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	Store
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Store
	Commit() error
	Rollback() error
}
