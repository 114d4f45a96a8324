// Package ofx reads OFX/QFX bank and credit card statements into import rows.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/Veraticus/spice-ledger/internal/ingest"
	"github.com/Veraticus/spice-ledger/internal/model"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// Opening tags missing their closing bracket at end of line.
	tagFixRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Parser converts OFX statements into import rows.
type Parser struct {
	// account names the ledger account every row is booked against. When
	// empty, the statement's own account number is used as the name.
	account string
}

// NewParser creates a parser booking rows against the named account.
func NewParser(account string) *Parser {
	return &Parser{account: account}
}

// preprocessOFX fixes common formatting issues in OFX files.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// Parse reads an OFX/QFX document. Rows carry account names, so the import
// must resolve names.
func (p *Parser) Parse(ctx context.Context, reader io.Reader) ([]ingest.ImportRow, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var rows []ingest.ImportRow
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			rows = append(rows, p.convertList(ctx, stmt.BankTranList, string(stmt.BankAcctFrom.AcctID))...)
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			rows = append(rows, p.convertList(ctx, stmt.BankTranList, string(stmt.CCAcctFrom.AcctID))...)
		}
	}

	for i := range rows {
		rows[i].Line = i + 1
	}

	slog.Info("Parsed OFX file",
		"rows", len(rows),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return rows, nil
}

func (p *Parser) convertList(ctx context.Context, list *ofxgo.TransactionList, statementAccount string) []ingest.ImportRow {
	if list == nil {
		return nil
	}

	account := p.account
	if account == "" {
		account = statementAccount
	}

	rows := make([]ingest.ImportRow, 0, len(list.Transactions))
	for _, ofxTx := range list.Transactions {
		row, err := convertTransaction(ofxTx, account)
		if err != nil {
			slog.WarnContext(ctx, "Skipping OFX transaction",
				"fitid", string(ofxTx.FiTID),
				"error", err)
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// convertTransaction maps one OFX transaction. OFX signs debits negative;
// the sign becomes the transaction type and the amount is stored positive.
// FITID plus the raw name is the exact de-duplication key.
func convertTransaction(ofxTx ofxgo.Transaction, account string) (ingest.ImportRow, error) {
	amount, err := model.ParseAmount(ofxTx.TrnAmt.FloatString(model.MinorUnitDigits))
	if err != nil {
		return ingest.ImportRow{}, err
	}
	if amount == 0 {
		return ingest.ImportRow{}, fmt.Errorf("zero amount")
	}

	txnType := model.TypeIncome
	if amount < 0 {
		txnType = model.TypeExpense
		amount = -amount
	}

	description := extractMerchantName(ofxTx)
	row := ingest.ImportRow{
		Date:        ofxTx.DtPosted.Time,
		Description: description,
		Type:        txnType,
		AccountName: account,
		Amount:      amount,
		RawText:     strings.TrimSpace(string(ofxTx.FiTID) + " " + string(ofxTx.Name)),
	}

	if ofxTx.CheckNum != "" {
		row.Notes = "Check #" + string(ofxTx.CheckNum)
	}
	if memo := strings.TrimSpace(string(ofxTx.Memo)); memo != "" && memo != description {
		row.Notes = joinNote(row.Notes, memo)
	}

	return row, nil
}

func joinNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)

	// MEMO sometimes has better merchant info than a generic NAME.
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}

	name = strings.TrimSpace(name)

	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}

	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Drop a leading "MM/DD " date.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
