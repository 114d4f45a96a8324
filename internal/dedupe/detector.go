// Package dedupe recognizes re-submitted or probably identical transactions.
package dedupe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

// Detector looks for an existing transaction describing the same real-world
// event as a candidate.
type Detector struct {
	finder service.DuplicateFinder
}

// NewDetector creates a duplicate detector backed by finder.
func NewDetector(finder service.DuplicateFinder) *Detector {
	return &Detector{finder: finder}
}

// FindDuplicate runs the two-tier lookup and returns the first match, or nil
// when the candidate is new. An exact match on raw text and provenance is
// tried first, and only when the candidate carries both. The near match
// compares calendar date, amount and source account, ignoring description
// and provenance. Deleted transactions never match.
func (d *Detector) FindDuplicate(ctx context.Context, candidate model.Transaction) (*model.DuplicateMatch, error) {
	if candidate.RawText != "" && candidate.Source != "" {
		existing, err := d.finder.FindByRawText(ctx, candidate.UserID, candidate.RawText, candidate.Source)
		if err != nil {
			return nil, fmt.Errorf("exact duplicate lookup failed: %w", err)
		}
		if existing != nil {
			return d.match(model.DuplicateExact, candidate, existing), nil
		}
	}

	existing, err := d.finder.FindByDateAmountAccount(ctx, candidate.UserID, candidate.Date, candidate.Amount, candidate.AccountID)
	if err != nil {
		return nil, fmt.Errorf("near duplicate lookup failed: %w", err)
	}
	if existing != nil {
		return d.match(model.DuplicateNear, candidate, existing), nil
	}

	return nil, nil
}

func (d *Detector) match(kind model.DuplicateKind, candidate model.Transaction, existing *model.Transaction) *model.DuplicateMatch {
	slog.Debug("Possible duplicate found",
		"kind", kind,
		"existing_id", existing.ID,
		"fingerprint", candidate.Fingerprint())

	return &model.DuplicateMatch{
		Kind:      kind,
		Candidate: candidate,
		Existing:  *existing,
	}
}
