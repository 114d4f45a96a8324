package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/ingest"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/rules"
)

const maxBodyBytes = 4 << 20

// Ingestor is the part of the ingestion service the API exposes.
type Ingestor interface {
	Create(ctx context.Context, input model.Transaction, opts ingest.Options) (*ingest.Result, error)
	Delete(ctx context.Context, userID, id string) error
	Preview(ctx context.Context, input model.Transaction) (*rules.Result, error)
	Import(ctx context.Context, userID string, rows []ingest.ImportRow, opts ingest.ImportOptions) (*ingest.ImportSummary, error)
}

// TransactionsHandler serves the transaction endpoints.
type TransactionsHandler struct {
	ingestor    Ingestor
	defaultUser string
}

// NewTransactionsHandler creates a handler. Requests without an X-User-ID
// header act as defaultUser.
func NewTransactionsHandler(ingestor Ingestor, defaultUser string) *TransactionsHandler {
	return &TransactionsHandler{
		ingestor:    ingestor,
		defaultUser: defaultUser,
	}
}

// transactionRequest is the wire form of a candidate transaction.
type transactionRequest struct {
	ID           string              `json:"id"`
	Date         string              `json:"date"`
	Time         string              `json:"time"`
	Description  string              `json:"description"`
	Type         string              `json:"type"`
	AccountID    string              `json:"account_id"`
	CategoryID   string              `json:"category_id"`
	ToAccountID  string              `json:"to_account_id"`
	TransferID   string              `json:"transfer_id"`
	Notes        string              `json:"notes"`
	Source       string              `json:"source"`
	RawText      string              `json:"raw_text"`
	AppliedRules []model.AppliedRule `json:"applied_rules"`
	Amount       int64               `json:"amount"`
}

func (req *transactionRequest) transaction(userID string) (model.Transaction, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return model.Transaction{}, err
	}
	source := req.Source
	if source == "" {
		source = model.SourceAPI
	}
	return model.Transaction{
		ID:           req.ID,
		UserID:       userID,
		Amount:       req.Amount,
		Date:         date,
		Time:         req.Time,
		Description:  req.Description,
		Type:         model.TransactionType(req.Type),
		AccountID:    req.AccountID,
		CategoryID:   req.CategoryID,
		ToAccountID:  req.ToAccountID,
		TransferID:   req.TransferID,
		Notes:        req.Notes,
		Source:       source,
		RawText:      req.RawText,
		AppliedRules: req.AppliedRules,
	}, nil
}

type importRowRequest struct {
	Date          string `json:"date"`
	Time          string `json:"time"`
	Description   string `json:"description"`
	Type          string `json:"type"`
	AccountID     string `json:"account_id"`
	AccountName   string `json:"account"`
	ToAccountID   string `json:"to_account_id"`
	ToAccountName string `json:"to_account"`
	CategoryID    string `json:"category_id"`
	CategoryName  string `json:"category"`
	Notes         string `json:"notes"`
	RawText       string `json:"raw_text"`
	Amount        int64  `json:"amount"`
}

type importRequest struct {
	Source       string             `json:"source"`
	Rows         []importRowRequest `json:"rows"`
	ResolveNames bool               `json:"resolve_names"`
}

type duplicateResponse struct {
	Match     model.Transaction   `json:"match"`
	Kind      model.DuplicateKind `json:"kind"`
	Duplicate bool                `json:"duplicate"`
}

type previewResponse struct {
	Transaction model.Transaction   `json:"transaction"`
	Applied     []model.AppliedRule `json:"applied"`
}

// CreateTransaction handles POST /api/transactions.
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	opts, err := ingestOptions(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	candidate, err := req.transaction(h.userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	result, err := h.ingestor.Create(r.Context(), candidate, opts)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if result.State == ingest.StateRejected {
		WriteJSON(w, http.StatusConflict, duplicateResponse{
			Duplicate: true,
			Match:     result.Duplicate.Existing,
			Kind:      result.Duplicate.Kind,
		})
		return
	}

	WriteJSON(w, http.StatusCreated, result.Transaction)
}

// PreviewTransaction handles POST /api/transactions/preview.
func (h *TransactionsHandler) PreviewTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	candidate, err := req.transaction(h.userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	result, err := h.ingestor.Preview(r.Context(), candidate)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	applied := result.Applied
	if applied == nil {
		applied = []model.AppliedRule{}
	}
	WriteJSON(w, http.StatusOK, previewResponse{Transaction: result.Transaction, Applied: applied})
}

// DeleteTransaction handles DELETE /api/transactions/{id}.
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "transaction id is required")
		return
	}

	if err := h.ingestor.Delete(r.Context(), h.userID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ImportTransactions handles POST /api/imports.
func (h *TransactionsHandler) ImportTransactions(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rows := make([]ingest.ImportRow, 0, len(req.Rows))
	for i, row := range req.Rows {
		date, err := parseDate(row.Date)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "row "+strconv.Itoa(i+1)+": "+err.Error())
			return
		}
		rows = append(rows, ingest.ImportRow{
			Date:          date,
			Time:          row.Time,
			Description:   row.Description,
			Type:          model.TransactionType(row.Type),
			AccountID:     row.AccountID,
			AccountName:   row.AccountName,
			ToAccountID:   row.ToAccountID,
			ToAccountName: row.ToAccountName,
			CategoryID:    row.CategoryID,
			CategoryName:  row.CategoryName,
			Notes:         row.Notes,
			RawText:       row.RawText,
			Amount:        row.Amount,
			Line:          i + 1,
		})
	}

	source := req.Source
	if source == "" {
		source = model.SourceAPI
	}

	summary, err := h.ingestor.Import(r.Context(), h.userID(r), rows, ingest.ImportOptions{
		Source:       source,
		ResolveNames: req.ResolveNames,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, summary)
}

func (h *TransactionsHandler) userID(r *http.Request) string {
	if user := strings.TrimSpace(r.Header.Get("X-User-ID")); user != "" {
		return user
	}
	return h.defaultUser
}

func ingestOptions(r *http.Request) (ingest.Options, error) {
	query := r.URL.Query()
	opts := ingest.Options{ReplaceID: query.Get("replace")}

	if raw := query.Get("force"); raw != "" {
		force, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, common.Validationf("invalid force value %q", raw)
		}
		opts.Force = force
	}
	return opts, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, common.Validationf("date is required")
	}
	date, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		return time.Time{}, common.Validationf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return date, nil
}
