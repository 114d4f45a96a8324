package ingest

import (
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
)

// validateCandidate checks a candidate as received.
func validateCandidate(txn *model.Transaction) error {
	if txn.UserID == "" {
		return common.Validationf("user is required")
	}
	if txn.Amount <= 0 {
		return common.Validationf("amount must be positive, got %d", txn.Amount)
	}
	if !txn.Type.Valid() {
		return common.Validationf("type must be expense, income or transfer, got %q", txn.Type)
	}
	if txn.AccountID == "" {
		return common.Validationf("account is required")
	}
	if txn.Date.IsZero() {
		return common.Validationf("date is required")
	}
	if txn.Time != "" {
		if _, err := time.Parse("15:04", txn.Time); err != nil {
			return common.Validationf("time must be HH:MM, got %q", txn.Time)
		}
	}
	return nil
}

// validateProcessed checks the candidate after rules have run, since rules
// may change the type or link a transfer destination.
func validateProcessed(txn *model.Transaction) error {
	if !txn.Type.Valid() {
		return common.Validationf("type must be expense, income or transfer, got %q", txn.Type)
	}
	if txn.AccountID == "" {
		return common.Validationf("account is required")
	}
	if txn.Type != model.TypeTransfer {
		return nil
	}

	if txn.ToAccountID == "" {
		return common.Validationf("transfer requires a destination account")
	}
	if txn.ToAccountID == txn.AccountID {
		return common.Validationf("transfer destination must differ from the source account")
	}
	return nil
}
