// Package ingest sequences rule evaluation, duplicate detection, persistence
// and ledger updates for incoming transactions.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/dedupe"
	"github.com/Veraticus/spice-ledger/internal/ledger"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/quota"
	"github.com/Veraticus/spice-ledger/internal/rules"
	"github.com/Veraticus/spice-ledger/internal/service"
)

// State is a step of the ingestion state machine.
type State string

// Ingestion states. Rejected and LedgerApplied are terminal.
const (
	StateReceived         State = "received"
	StateRuleProcessed    State = "rule-processed"
	StateDuplicateChecked State = "duplicate-checked"
	StateRejected         State = "rejected"
	StateCommitted        State = "committed"
	StateLedgerApplied    State = "ledger-applied"
)

// Options controls a single ingestion.
type Options struct {
	// ReplaceID supersedes an existing transaction. It also skips the
	// duplicate check.
	ReplaceID string
	// Force accepts the candidate even if it looks like a duplicate.
	Force bool
}

// Result is the outcome of an ingestion. When State is StateRejected,
// Duplicate holds the conflicting record and nothing was persisted.
type Result struct {
	Transaction *model.Transaction
	Duplicate   *model.DuplicateMatch
	State       State
}

// Service is the ingestion orchestrator. It holds no mutable state and is
// safe for concurrent use.
type Service struct {
	storage  service.Storage
	engine   *rules.Engine
	detector *dedupe.Detector
	quota    *quota.Checker
	retry    common.RetryOptions
}

// Option configures a Service.
type Option func(*Service)

// WithQuota enables monthly usage checks and bookkeeping.
func WithQuota(checker *quota.Checker) Option {
	return func(s *Service) {
		s.quota = checker
	}
}

// WithRetryOptions overrides how commits retry on lock contention.
func WithRetryOptions(opts common.RetryOptions) Option {
	return func(s *Service) {
		s.retry = opts
	}
}

// NewService creates an ingestion service over storage.
func NewService(storage service.Storage, opts ...Option) *Service {
	s := &Service{
		storage:  storage,
		engine:   rules.NewEngine(storage),
		detector: dedupe.NewDetector(storage),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create ingests a candidate transaction. A duplicate is not an error: the
// result is returned in StateRejected with the match attached so the caller
// can retry with Force or ReplaceID.
func (s *Service) Create(ctx context.Context, input model.Transaction, opts Options) (*Result, error) {
	candidate := input.Clone()
	prepare(&candidate)

	if err := validateCandidate(&candidate); err != nil {
		return nil, err
	}
	if opts.ReplaceID != "" && opts.ReplaceID == candidate.ID {
		return nil, common.Validationf("a transaction cannot replace itself")
	}

	// Rules already applied by a preview step are not re-run.
	if len(candidate.AppliedRules) == 0 {
		result, err := s.engine.Run(ctx, candidate)
		if err != nil {
			if errors.Is(err, rules.ErrInvalidRegex) {
				return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
			}
			return nil, err
		}
		candidate = result.Transaction
	} else {
		slog.Debug("Rules already applied, skipping engine",
			"transaction_id", candidate.ID,
			"applied_rules", len(candidate.AppliedRules))
	}

	if err := validateProcessed(&candidate); err != nil {
		return nil, err
	}
	if candidate.Type == model.TypeTransfer && candidate.TransferID == "" {
		candidate.TransferID = uuid.NewString()
	}

	if !opts.Force && opts.ReplaceID == "" {
		match, err := s.detector.FindDuplicate(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if match != nil {
			slog.Info("Ingestion rejected as possible duplicate",
				"kind", match.Kind,
				"fingerprint", candidate.Fingerprint(),
				"existing_id", match.Existing.ID,
				"user_id", candidate.UserID)
			return &Result{State: StateRejected, Transaction: &candidate, Duplicate: match}, nil
		}
	}

	if opts.Force {
		candidate.DuplicateStatus = model.DuplicateConfirmed
	}

	err := common.WithRetry(ctx, func() error {
		return s.commit(ctx, &candidate, opts.ReplaceID)
	}, s.retry)
	if err != nil {
		return nil, err
	}

	slog.Info("Transaction committed",
		"transaction_id", candidate.ID,
		"fingerprint", candidate.Fingerprint(),
		"user_id", candidate.UserID,
		"type", candidate.Type,
		"amount", candidate.Amount,
		"replaced", opts.ReplaceID,
		"rules_applied", len(candidate.AppliedRules))

	s.recordUsage(ctx, candidate.UserID)

	return &Result{State: StateLedgerApplied, Transaction: &candidate}, nil
}

// commit persists the candidate and its ledger effect in one database
// transaction. For a replace, the superseded record is reversed and
// soft-deleted first, in the same transaction.
func (s *Service) commit(ctx context.Context, candidate *model.Transaction, replaceID string) (err error) {
	tx, err := s.storage.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Debug("Rollback after failed ingestion", "error", rbErr)
			}
		}
	}()

	books := ledger.New(tx)

	if replaceID != "" {
		if err = supersede(ctx, tx, books, candidate.UserID, replaceID); err != nil {
			return err
		}
	}

	if err = checkReferences(ctx, tx, candidate); err != nil {
		return err
	}

	if err = tx.InsertTransaction(ctx, candidate); err != nil {
		return err
	}

	if err = books.ApplyTransaction(ctx, candidate, false); err != nil {
		return err
	}

	return tx.Commit()
}

// checkReferences ensures the destination account and category belong to the
// candidate's user. The source account is checked by the balance update.
func checkReferences(ctx context.Context, tx service.Transaction, candidate *model.Transaction) error {
	if candidate.ToAccountID != "" {
		_, err := tx.GetAccount(ctx, candidate.UserID, candidate.ToAccountID)
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("%w: %s", common.ErrDanglingAccount, candidate.ToAccountID)
		}
		if err != nil {
			return err
		}
	}

	if candidate.CategoryID != "" {
		_, err := tx.GetCategory(ctx, candidate.UserID, candidate.CategoryID)
		if errors.Is(err, common.ErrNotFound) {
			return common.Validationf("unknown category %q", candidate.CategoryID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// supersede reverses and soft-deletes a live transaction.
func supersede(ctx context.Context, tx service.Transaction, books *ledger.Ledger, userID, id string) error {
	old, err := tx.GetTransaction(ctx, userID, id)
	if err != nil {
		return err
	}
	if old.IsDeleted() {
		return fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}

	if err := books.ApplyTransaction(ctx, old, true); err != nil {
		return err
	}
	return tx.SoftDeleteTransaction(ctx, userID, id)
}

// Delete reverses a transaction's ledger effect and soft-deletes it. Deleting
// an unknown or already deleted transaction returns common.ErrNotFound.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	err := common.WithRetry(ctx, func() (err error) {
		tx, err := s.storage.BeginTx(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err != nil {
				if rbErr := tx.Rollback(); rbErr != nil {
					slog.Debug("Rollback after failed delete", "error", rbErr)
				}
			}
		}()

		if err = supersede(ctx, tx, ledger.New(tx), userID, id); err != nil {
			return err
		}
		return tx.Commit()
	}, s.retry)
	if err != nil {
		return err
	}

	slog.Info("Transaction deleted", "transaction_id", id, "user_id", userID)
	return nil
}

// Preview runs the rule engine over a candidate without persisting anything.
// The returned transaction carries its audit list, so submitting it to
// Create does not apply the rules a second time.
func (s *Service) Preview(ctx context.Context, input model.Transaction) (*rules.Result, error) {
	candidate := input.Clone()
	prepare(&candidate)
	candidate.AppliedRules = nil

	if err := validateCandidate(&candidate); err != nil {
		return nil, err
	}

	result, err := s.engine.Run(ctx, candidate)
	if err != nil {
		if errors.Is(err, rules.ErrInvalidRegex) {
			return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
		}
		return nil, err
	}
	return result, nil
}

func (s *Service) recordUsage(ctx context.Context, userID string) {
	if s.quota == nil {
		return
	}
	// The transaction is committed; a cancelled request must not skip the count.
	s.quota.Record(context.WithoutCancel(ctx), userID)
}

// prepare fills defaults on a received candidate.
func prepare(txn *model.Transaction) {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.Source == "" {
		txn.Source = model.SourceManual
	}
	if txn.DuplicateStatus == "" {
		txn.DuplicateStatus = model.DuplicateNone
	}
	if !txn.Date.IsZero() {
		y, m, d := txn.Date.Date()
		txn.Date = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	txn.DeletedAt = nil
}
