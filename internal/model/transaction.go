// Package model defines the core data structures for the spice ledger.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// TransactionType is the monetary direction of a transaction.
type TransactionType string

// Transaction type constants.
const (
	TypeExpense  TransactionType = "expense"
	TypeIncome   TransactionType = "income"
	TypeTransfer TransactionType = "transfer"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeExpense, TypeIncome, TypeTransfer:
		return true
	}
	return false
}

// DuplicateStatus records whether a user accepted a near-duplicate.
type DuplicateStatus string

// Duplicate status constants.
const (
	DuplicateNone      DuplicateStatus = "none"
	DuplicateConfirmed DuplicateStatus = "confirmed"
)

// Provenance tags describing how a transaction entered the system.
const (
	SourceManual = "manual"
	SourceImport = "import"
	SourceAI     = "ai"
	SourceOFX    = "ofx"
	SourceAPI    = "api"
)

// DateLayout is the storage and wire format of a transaction's calendar date.
const DateLayout = "2006-01-02"

// Transaction represents a single monetary event against an account.
type Transaction struct {
	Date            time.Time       `json:"date"`
	CreatedAt       time.Time       `json:"created_at"`
	DeletedAt       *time.Time      `json:"deleted_at,omitempty"`
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Time            string          `json:"time,omitempty"` // HH:MM
	Description     string          `json:"description"`
	Type            TransactionType `json:"type"`
	AccountID       string          `json:"account_id"`
	CategoryID      string          `json:"category_id,omitempty"`
	ToAccountID     string          `json:"to_account_id,omitempty"`
	TransferID      string          `json:"transfer_id,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	Source          string          `json:"source"`
	RawText         string          `json:"raw_text,omitempty"`
	DuplicateStatus DuplicateStatus `json:"duplicate_status"`
	AppliedRules    []AppliedRule   `json:"applied_rules"`
	Amount          int64           `json:"amount"` // positive, minor units
}

// Clone returns a copy of t that shares no mutable state with it.
func (t Transaction) Clone() Transaction {
	out := t
	if t.AppliedRules != nil {
		out.AppliedRules = make([]AppliedRule, len(t.AppliedRules))
		copy(out.AppliedRules, t.AppliedRules)
	}
	if t.DeletedAt != nil {
		deleted := *t.DeletedAt
		out.DeletedAt = &deleted
	}
	return out
}

// IsDeleted reports whether the transaction has been soft-deleted.
func (t *Transaction) IsDeleted() bool {
	return t.DeletedAt != nil
}

// DateString returns the calendar date in DateLayout.
func (t *Transaction) DateString() string {
	return t.Date.Format(DateLayout)
}

// Fingerprint is a short hash of the fields that identify the real-world event
// a transaction describes. It correlates log lines and is never a uniqueness
// key.
func (t *Transaction) Fingerprint() string {
	data := fmt.Sprintf("%s:%d:%s:%s",
		t.DateString(),
		t.Amount,
		t.AccountID,
		t.Description)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash[:8])
}

// AppliedRule is the audit record left on a transaction by a fired rule.
type AppliedRule struct {
	RuleName string    `json:"rule_name"`
	Actions  ActionSet `json:"actions"`
	RuleID   int64     `json:"rule_id"`
}

// DuplicateKind distinguishes the two duplicate detection tiers.
type DuplicateKind string

// Duplicate kinds.
const (
	DuplicateExact DuplicateKind = "exact"
	DuplicateNear  DuplicateKind = "near"
)

// DuplicateMatch pairs a candidate with an existing transaction judged to be
// the same real-world event. It is never persisted.
type DuplicateMatch struct {
	Kind      DuplicateKind `json:"kind"`
	Candidate Transaction   `json:"candidate"`
	Existing  Transaction   `json:"existing"`
}
