// Package quota enforces the monthly free-tier transaction limit.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-ledger/internal/service"
)

// ErrLimitExceeded is returned when an operation would push a user over the
// monthly limit.
var ErrLimitExceeded = errors.New("monthly transaction limit exceeded")

// PeriodLayout formats the monthly counter key.
const PeriodLayout = "2006-01"

// Checker reads and records monthly usage.
type Checker struct {
	store service.UsageStore
	now   func() time.Time
	limit int
}

// Option configures a Checker.
type Option func(*Checker)

// WithClock overrides the clock used to pick the current period.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		c.now = now
	}
}

// NewChecker creates a checker enforcing limit transactions per month. A
// limit of zero or less disables enforcement.
func NewChecker(store service.UsageStore, limit int, opts ...Option) *Checker {
	c := &Checker{
		store: store,
		limit: limit,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Period returns the counter key for the current month in UTC.
func (c *Checker) Period() string {
	return c.now().UTC().Format(PeriodLayout)
}

// Limit returns the configured monthly limit.
func (c *Checker) Limit() int {
	return c.limit
}

// Check returns ErrLimitExceeded if adding additional transactions would take
// the user over the limit.
func (c *Checker) Check(ctx context.Context, userID string, additional int) error {
	if c.limit <= 0 {
		return nil
	}

	used, err := c.store.GetUsage(ctx, userID, c.Period())
	if err != nil {
		return fmt.Errorf("failed to read usage: %w", err)
	}

	if used+additional > c.limit {
		return fmt.Errorf("%w: %d used, %d requested, limit %d", ErrLimitExceeded, used, additional, c.limit)
	}
	return nil
}

// Record counts one committed transaction. Failures are logged and never
// returned; usage bookkeeping must not fail an ingestion that already
// committed.
func (c *Checker) Record(ctx context.Context, userID string) {
	if err := c.store.IncrementUsage(ctx, userID, c.Period(), 1); err != nil {
		slog.Warn("Failed to record usage",
			"user_id", userID,
			"period", c.Period(),
			"error", err)
	}
}
