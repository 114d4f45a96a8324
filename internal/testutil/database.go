// Package testutil provides test utilities for the spice ledger: an isolated
// in-memory database and a fluent builder for seeding ledger data.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/Veraticus/spice-ledger/internal/storage"
)

// DefaultUser owns every fixture unless a test says otherwise.
const DefaultUser = "test-user"

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
	Seeded  Seeded
}

// SetupTestDB creates a new migrated in-memory test database and seeds it
// with the fixtures described by configure, which may be nil.
//
// Example:
//
//	db := testutil.SetupTestDB(t, func(b *testutil.Builder) *testutil.Builder {
//		return b.WithAccount("A1", "Checking", 0).WithCategory("food", "Food")
//	})
func SetupTestDB(t *testing.T, configure func(*Builder) *Builder) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	builder := NewBuilder(t)
	if configure != nil {
		builder = configure(builder)
	}

	seeded, err := builder.Build(ctx, store)
	if err != nil {
		t.Fatalf("failed to seed test database: %v", err)
	}

	return &TestDB{
		Storage: store,
		Seeded:  seeded,
		t:       t,
	}
}

// Balance returns the current balance of an account or fails the test.
func (db *TestDB) Balance(accountID string) int64 {
	db.t.Helper()
	account, err := db.Storage.GetAccount(context.Background(), DefaultUser, accountID)
	if err != nil {
		db.t.Fatalf("failed to read account %s: %v", accountID, err)
	}
	return account.Balance
}

// WithTransaction executes the given function within a database transaction.
// The transaction is always rolled back after the function completes.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	ctx := context.Background()
	tx, err := db.Storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}
