// Package csvimport reads normalized CSV files into import rows.
//
// The header names the columns; order is free and unknown columns are
// ignored. Required: date, amount, account. Optional: time, description,
// type, to_account, category, notes, raw_text. Without a type column the
// amount's sign decides: negative is an expense, positive is income.
package csvimport

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/ingest"
	"github.com/Veraticus/spice-ledger/internal/model"
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

var requiredColumns = []string{"date", "amount", "account"}

var dateLayouts = []string{model.DateLayout, "01/02/2006", "1/2/2006"}

// Result holds the parsed rows and a message per line that could not be
// parsed.
type Result struct {
	Rows   []ingest.ImportRow
	Errors []string
}

// Read parses CSV from r. Malformed lines are reported in Result.Errors and
// skipped; only an unreadable header is fatal.
func Read(r io.Reader) (*Result, error) {
	csvr := csv.NewReader(bufio.NewReader(r))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1

	header, err := csvr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	result := &Result{}
	line := 1
	for {
		line++
		record, err := csvr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		get := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		row, err := parseRecord(get)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		row.Line = line
		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

func parseRecord(get func(string) string) (ingest.ImportRow, error) {
	date, err := parseDate(get("date"))
	if err != nil {
		return ingest.ImportRow{}, err
	}

	amount, err := model.ParseAmount(get("amount"))
	if err != nil {
		return ingest.ImportRow{}, err
	}

	txnType := model.TransactionType(strings.ToLower(get("type")))
	switch {
	case txnType == "" && amount < 0:
		txnType = model.TypeExpense
	case txnType == "":
		txnType = model.TypeIncome
	case !txnType.Valid():
		return ingest.ImportRow{}, fmt.Errorf("unknown type %q", get("type"))
	}
	if amount < 0 {
		amount = -amount
	}

	return ingest.ImportRow{
		Date:          date,
		Time:          get("time"),
		Description:   get("description"),
		Type:          txnType,
		AccountName:   get("account"),
		ToAccountName: get("to_account"),
		CategoryName:  get("category"),
		Notes:         get("notes"),
		RawText:       get("raw_text"),
		Amount:        amount,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
