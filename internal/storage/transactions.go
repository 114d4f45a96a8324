package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

const transactionColumns = `
	id, user_id, amount, date, time, description, type, account_id,
	category_id, to_account_id, transfer_id, notes, source, raw_text,
	duplicate_status, applied_rules, created_at, deleted_at`

// InsertTransaction persists a new transaction.
func (s *queries) InsertTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	if txn.DuplicateStatus == "" {
		txn.DuplicateStatus = model.DuplicateNone
	}
	if txn.AppliedRules == nil {
		txn.AppliedRules = []model.AppliedRule{}
	}

	appliedJSON, err := json.Marshal(txn.AppliedRules)
	if err != nil {
		return fmt.Errorf("failed to encode applied rules: %w", err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		txn.ID,
		txn.UserID,
		txn.Amount,
		txn.DateString(),
		txn.Time,
		txn.Description,
		string(txn.Type),
		txn.AccountID,
		nullString(txn.CategoryID),
		nullString(txn.ToAccountID),
		nullString(txn.TransferID),
		txn.Notes,
		txn.Source,
		nullString(txn.RawText),
		string(txn.DuplicateStatus),
		string(appliedJSON),
		txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, classifyError(err))
	}

	return nil
}

// GetTransaction retrieves a transaction by ID, including soft-deleted ones.
func (s *queries) GetTransaction(ctx context.Context, userID, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`,
		id, userID)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// SoftDeleteTransaction marks a live transaction as deleted. Deleting an
// unknown or already-deleted transaction returns common.ErrNotFound.
func (s *queries) SoftDeleteTransaction(ctx context.Context, userID, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.q.ExecContext(ctx, `
		UPDATE transactions SET deleted_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", classifyError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// ListTransactions returns transactions ordered newest first.
func (s *queries) ListTransactions(ctx context.Context, userID string, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var conditions []string
	args := []any{userID}
	conditions = append(conditions, "user_id = ?")

	if !filter.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}
	if filter.AccountID != "" {
		conditions = append(conditions, "(account_id = ? OR to_account_id = ?)")
		args = append(args, filter.AccountID, filter.AccountID)
	}
	if filter.StartDate != nil {
		conditions = append(conditions, "date >= ?")
		args = append(args, filter.StartDate.Format(model.DateLayout))
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "date <= ?")
		args = append(args, filter.EndDate.Format(model.DateLayout))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(conditions, " AND ") +
		` ORDER BY date DESC, time DESC, created_at DESC`
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// FindByRawText returns the oldest live transaction with the given raw text
// and provenance tag.
func (s *queries) FindByRawText(ctx context.Context, userID, rawText, source string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? AND raw_text = ? AND source = ? AND deleted_at IS NULL
		ORDER BY created_at ASC
		LIMIT 1`,
		userID, rawText, source)

	return scanOptionalTransaction(row)
}

// FindByDateAmountAccount returns the oldest live transaction on the same
// calendar date, for the same amount, against the same source account.
func (s *queries) FindByDateAmountAccount(ctx context.Context, userID string, date time.Time, amount int64, accountID string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? AND date = ? AND amount = ? AND account_id = ? AND deleted_at IS NULL
		ORDER BY created_at ASC
		LIMIT 1`,
		userID, date.Format(model.DateLayout), amount, accountID)

	return scanOptionalTransaction(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOptionalTransaction(row rowScanner) (*model.Transaction, error) {
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return txn, nil
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		txn                                      model.Transaction
		date, txnType, dupStatus, appliedJSON    string
		categoryID, toAccountID, transferID, raw sql.NullString
		deletedAt                                sql.NullTime
	)

	err := row.Scan(
		&txn.ID,
		&txn.UserID,
		&txn.Amount,
		&date,
		&txn.Time,
		&txn.Description,
		&txnType,
		&txn.AccountID,
		&categoryID,
		&toAccountID,
		&transferID,
		&txn.Notes,
		&txn.Source,
		&raw,
		&dupStatus,
		&appliedJSON,
		&txn.CreatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Date, err = time.Parse(model.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("invalid stored date %q: %w", date, err)
	}
	txn.Type = model.TransactionType(txnType)
	txn.DuplicateStatus = model.DuplicateStatus(dupStatus)
	txn.CategoryID = categoryID.String
	txn.ToAccountID = toAccountID.String
	txn.TransferID = transferID.String
	txn.RawText = raw.String
	if deletedAt.Valid {
		t := deletedAt.Time
		txn.DeletedAt = &t
	}

	if err := json.Unmarshal([]byte(appliedJSON), &txn.AppliedRules); err != nil {
		return nil, fmt.Errorf("invalid applied rules for %s: %w", txn.ID, err)
	}

	return &txn, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
