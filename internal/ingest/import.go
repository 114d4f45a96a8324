package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
)

// ImportRow is one proposed transaction from a bulk source. IDs are used as
// given; names are resolved when ImportOptions.ResolveNames is set.
type ImportRow struct {
	Date          time.Time
	Time          string
	Description   string
	Type          model.TransactionType
	AccountID     string
	AccountName   string
	ToAccountID   string
	ToAccountName string
	CategoryID    string
	CategoryName  string
	Notes         string
	RawText       string
	Amount        int64
	// Line is the row's position in its source, used in error messages.
	Line int
}

// ImportOptions controls a bulk import.
type ImportOptions struct {
	// Progress, if set, is called after each row.
	Progress     func(done, total int)
	Source       string
	ResolveNames bool
}

// ImportSummary aggregates the outcome of a bulk import.
type ImportSummary struct {
	Errors     []string `json:"errors"`
	Imported   int      `json:"imported"`
	Skipped    int      `json:"skipped"`
	Duplicates int      `json:"duplicates"`
}

// Import ingests rows independently. The usage quota is checked for the
// whole batch before any row is processed. Duplicates and rows that fail
// resolution or validation are skipped; a storage failure aborts the import
// and returns the summary so far.
func (s *Service) Import(ctx context.Context, userID string, rows []ImportRow, opts ImportOptions) (*ImportSummary, error) {
	if s.quota != nil {
		if err := s.quota.Check(ctx, userID, len(rows)); err != nil {
			return nil, err
		}
	}

	source := opts.Source
	if source == "" {
		source = model.SourceImport
	}

	var res *resolver
	if opts.ResolveNames {
		var err error
		if res, err = newResolver(ctx, s.storage, userID); err != nil {
			return nil, err
		}
	}

	summary := &ImportSummary{Errors: []string{}}
	for i := range rows {
		row := rows[i]
		if row.Line == 0 {
			row.Line = i + 1
		}

		err := s.importRow(ctx, userID, source, res, &row, summary)
		if opts.Progress != nil {
			opts.Progress(i+1, len(rows))
		}
		if err != nil {
			return summary, fmt.Errorf("import aborted at row %d: %w", row.Line, err)
		}
	}

	slog.Info("Import finished",
		"user_id", userID,
		"imported", summary.Imported,
		"skipped", summary.Skipped,
		"duplicates", summary.Duplicates)
	return summary, nil
}

// importRow ingests one row, recording skips in summary. Only errors that
// should abort the whole import are returned.
func (s *Service) importRow(ctx context.Context, userID, source string, res *resolver, row *ImportRow, summary *ImportSummary) error {
	skip := func(err error) {
		summary.Skipped++
		summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: %v", row.Line, err))
	}

	if res != nil {
		if err := res.resolve(row); err != nil {
			skip(err)
			return nil
		}
	}

	result, err := s.Create(ctx, row.transaction(userID, source), Options{})
	switch {
	case err == nil:
	case errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrDanglingAccount),
		errors.Is(err, common.ErrNotFound):
		skip(err)
		return nil
	default:
		return err
	}

	if result.State == StateRejected {
		summary.Skipped++
		summary.Duplicates++
		slog.Debug("Skipping duplicate import row",
			"line", row.Line,
			"existing_id", result.Duplicate.Existing.ID)
		return nil
	}

	summary.Imported++
	return nil
}

func (row *ImportRow) transaction(userID, source string) model.Transaction {
	return model.Transaction{
		UserID:      userID,
		Amount:      row.Amount,
		Date:        row.Date,
		Time:        row.Time,
		Description: row.Description,
		Type:        row.Type,
		AccountID:   row.AccountID,
		CategoryID:  row.CategoryID,
		ToAccountID: row.ToAccountID,
		Notes:       row.Notes,
		Source:      source,
		RawText:     row.RawText,
	}
}
