// Package ledger keeps account balances consistent with committed transactions.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

// Entry is the monetary effect of one transaction.
type Entry struct {
	UserID        string
	Type          model.TransactionType
	SourceAccount string
	DestAccount   string
	Amount        int64
}

// EntryFor extracts the ledger entry of a transaction.
func EntryFor(txn *model.Transaction) Entry {
	return Entry{
		UserID:        txn.UserID,
		Type:          txn.Type,
		SourceAccount: txn.AccountID,
		DestAccount:   txn.ToAccountID,
		Amount:        txn.Amount,
	}
}

// Delta is a signed change to one account's balance.
type Delta struct {
	AccountID string
	Amount    int64
}

// Deltas computes the balance changes of entry. Expenses debit the source,
// income credits it, and transfers debit the source and credit the
// destination. Reversing negates every delta. A transfer without a
// destination has no effect.
func Deltas(entry Entry, reverse bool) []Delta {
	var deltas []Delta

	switch entry.Type {
	case model.TypeExpense:
		deltas = []Delta{{AccountID: entry.SourceAccount, Amount: -entry.Amount}}
	case model.TypeIncome:
		deltas = []Delta{{AccountID: entry.SourceAccount, Amount: entry.Amount}}
	case model.TypeTransfer:
		if entry.DestAccount == "" {
			return nil
		}
		deltas = []Delta{
			{AccountID: entry.SourceAccount, Amount: -entry.Amount},
			{AccountID: entry.DestAccount, Amount: entry.Amount},
		}
	}

	if reverse {
		for i := range deltas {
			deltas[i].Amount = -deltas[i].Amount
		}
	}
	return deltas
}

// Ledger applies entries to account balances. It must be called exactly once
// per lifecycle event of a transaction.
type Ledger struct {
	balances service.BalanceStore
}

// New creates a ledger writing through balances.
func New(balances service.BalanceStore) *Ledger {
	return &Ledger{balances: balances}
}

// Apply adjusts the balances touched by entry. Each adjustment is an atomic
// increment in the store. An account that is missing or belongs to another
// user surfaces as common.ErrDanglingAccount from the store. Callers that need both legs of
// a transfer to land together pass a transactional store.
func (l *Ledger) Apply(ctx context.Context, entry Entry, reverse bool) error {
	if entry.Type == model.TypeTransfer && entry.DestAccount == "" {
		slog.Warn("Transfer without destination has no ledger effect",
			"account_id", entry.SourceAccount,
			"amount", entry.Amount)
		return nil
	}

	for _, delta := range Deltas(entry, reverse) {
		if err := l.balances.AdjustBalance(ctx, entry.UserID, delta.AccountID, delta.Amount); err != nil {
			return fmt.Errorf("failed to adjust balance: %w", err)
		}
	}

	slog.Debug("Ledger applied",
		"type", entry.Type,
		"source", entry.SourceAccount,
		"dest", entry.DestAccount,
		"amount", entry.Amount,
		"reverse", reverse)
	return nil
}

// ApplyTransaction applies the effect of txn.
func (l *Ledger) ApplyTransaction(ctx context.Context, txn *model.Transaction, reverse bool) error {
	return l.Apply(ctx, EntryFor(txn), reverse)
}
