package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetUsage returns the number of transactions counted for a user in period.
// A period with no recorded usage counts as zero.
func (s *queries) GetUsage(ctx context.Context, userID, period string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(period, "period"); err != nil {
		return 0, err
	}

	var count int
	err := s.q.QueryRowContext(ctx,
		`SELECT count FROM usage_counters WHERE user_id = ? AND period = ?`,
		userID, period).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get usage: %w", err)
	}
	return count, nil
}

// IncrementUsage adds delta to a user's counter for period, creating it if needed.
func (s *queries) IncrementUsage(ctx context.Context, userID, period string, delta int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(period, "period"); err != nil {
		return err
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO usage_counters (user_id, period, count) VALUES (?, ?, ?)
		ON CONFLICT(user_id, period) DO UPDATE SET count = count + excluded.count`,
		userID, period, delta)
	if err != nil {
		return fmt.Errorf("failed to increment usage: %w", classifyError(err))
	}
	return nil
}
