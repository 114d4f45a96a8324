package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
)

// CreateAccount inserts a new account.
func (s *queries) CreateAccount(ctx context.Context, account *model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAccount(account); err != nil {
		return err
	}

	if account.Currency == "" {
		account.Currency = "USD"
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, name, currency, balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		account.ID, account.UserID, account.Name, account.Currency, account.Balance, account.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account %q: %w", account.Name, classifyError(err))
	}
	return nil
}

// GetAccount retrieves an account by ID.
func (s *queries) GetAccount(ctx context.Context, userID, id string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var account model.Account
	err := s.q.QueryRowContext(ctx, `
		SELECT id, user_id, name, currency, balance, created_at
		FROM accounts
		WHERE id = ? AND user_id = ?`,
		id, userID).Scan(
		&account.ID, &account.UserID, &account.Name, &account.Currency, &account.Balance, &account.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// ListAccounts returns a user's accounts ordered by name.
func (s *queries) ListAccounts(ctx context.Context, userID string) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, user_id, name, currency, balance, created_at
		FROM accounts
		WHERE user_id = ?
		ORDER BY name`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		var account model.Account
		if err := rows.Scan(
			&account.ID, &account.UserID, &account.Name, &account.Currency, &account.Balance, &account.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

// AdjustBalance adds delta to an account's balance in a single statement, so
// concurrent adjustments cannot lose updates. An account that is missing or
// owned by another user is an integrity error.
func (s *queries) AdjustBalance(ctx context.Context, userID, accountID string, delta int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return err
	}

	result, err := s.q.ExecContext(ctx,
		`UPDATE accounts SET balance = balance + ? WHERE id = ? AND user_id = ?`,
		delta, accountID, userID)
	if err != nil {
		return fmt.Errorf("failed to adjust balance of %s: %w", accountID, classifyError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", common.ErrDanglingAccount, accountID)
	}
	return nil
}
