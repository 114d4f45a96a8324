package rules

import (
	"github.com/google/uuid"

	"github.com/Veraticus/spice-ledger/internal/model"
)

// Apply returns a copy of txn with the action set applied. The input is left
// untouched so rule applications can be chained.
func Apply(txn model.Transaction, actions model.ActionSet) model.Transaction {
	out := txn.Clone()

	if actions.SetType != "" {
		out.Type = actions.SetType
	}

	// An absent category leaves it alone; an explicit empty value clears it.
	if actions.SetCategory.Set {
		out.CategoryID = actions.SetCategory.Value
	}

	if actions.SetAccount != "" {
		out.AccountID = actions.SetAccount
	}

	if actions.LinkTransfer != "" {
		out.ToAccountID = actions.LinkTransfer
		out.TransferID = uuid.NewString()
	}

	if actions.AddNote != "" {
		if out.Notes == "" {
			out.Notes = actions.AddNote
		} else {
			out.Notes += "\n" + actions.AddNote
		}
	}

	return out
}

// effectiveActions folds the rule's pre-bound transfer destination into its
// actions when they do not already link one.
func effectiveActions(rule model.AutomationRule) model.ActionSet {
	actions := rule.Actions
	if actions.LinkTransfer == "" && rule.TransferAccountID != "" {
		actions.LinkTransfer = rule.TransferAccountID
	}
	return actions
}
