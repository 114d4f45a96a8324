package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-ledger/internal/ingest"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/quota"
	"github.com/Veraticus/spice-ledger/internal/testutil"
)

func newTestAPI(t *testing.T) (*testutil.TestDB, http.Handler) {
	t.Helper()
	db := testutil.SetupTestDB(t, func(b *testutil.Builder) *testutil.Builder {
		return b.WithBasicLedger().WithRule(model.AutomationRule{
			Name:       "Lunch is food",
			Priority:   10,
			IsActive:   true,
			Conditions: model.ConditionSet{DescriptionContains: []string{"lunch"}},
			Actions:    model.ActionSet{SetCategory: model.Some("food")},
		})
	})
	svc := ingest.NewService(db.Storage)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return db, Routes(NewTransactionsHandler(svc, testutil.DefaultUser), logger)
}

func do(t *testing.T, handler http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func lunch() map[string]any {
	return map[string]any{
		"date":        "2024-01-15",
		"description": "Team lunch",
		"amount":      1250,
		"type":        "expense",
		"account_id":  "checking",
	}
}

func TestHealth(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := do(t, handler, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateTransaction(t *testing.T) {
	db, handler := newTestAPI(t)

	rec := do(t, handler, http.MethodPost, "/api/transactions", lunch())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var txn model.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txn))
	assert.Equal(t, "food", txn.CategoryID)
	assert.Equal(t, model.SourceAPI, txn.Source)
	assert.Equal(t, testutil.DefaultUser, txn.UserID)
	require.Len(t, txn.AppliedRules, 1)
	assert.Equal(t, "Lunch is food", txn.AppliedRules[0].RuleName)
	assert.Equal(t, int64(-1250), db.Balance("checking"))
}

func TestCreateTransaction_Duplicate(t *testing.T) {
	db, handler := newTestAPI(t)

	first := do(t, handler, http.MethodPost, "/api/transactions", lunch())
	require.Equal(t, http.StatusCreated, first.Code)

	rec := do(t, handler, http.MethodPost, "/api/transactions", lunch())
	require.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		Match     model.Transaction   `json:"match"`
		Kind      model.DuplicateKind `json:"kind"`
		Duplicate bool                `json:"duplicate"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Duplicate)
	assert.Equal(t, model.DuplicateNear, body.Kind)
	assert.Equal(t, "Team lunch", body.Match.Description)
	assert.Equal(t, int64(-1250), db.Balance("checking"), "rejected duplicate must not touch the ledger")

	forced := do(t, handler, http.MethodPost, "/api/transactions?force=true", lunch())
	require.Equal(t, http.StatusCreated, forced.Code)

	var txn model.Transaction
	require.NoError(t, json.Unmarshal(forced.Body.Bytes(), &txn))
	assert.Equal(t, model.DuplicateConfirmed, txn.DuplicateStatus)
	assert.Equal(t, int64(-2500), db.Balance("checking"))
}

func TestCreateTransaction_Replace(t *testing.T) {
	db, handler := newTestAPI(t)

	first := do(t, handler, http.MethodPost, "/api/transactions", lunch())
	require.Equal(t, http.StatusCreated, first.Code)
	var original model.Transaction
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &original))

	corrected := lunch()
	corrected["amount"] = 1500
	rec := do(t, handler, http.MethodPost, "/api/transactions?replace="+original.ID, corrected)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int64(-1500), db.Balance("checking"))
}

func TestCreateTransaction_ExistingID(t *testing.T) {
	db, handler := newTestAPI(t)

	body := lunch()
	body["id"] = "fixed"
	first := do(t, handler, http.MethodPost, "/api/transactions", body)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	rec := do(t, handler, http.MethodPost, "/api/transactions?force=true", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "transaction id already exists", resp["error"])
	assert.Equal(t, int64(-1250), db.Balance("checking"))
}

func TestCreateTransaction_Errors(t *testing.T) {
	tests := []struct {
		mutate     func(map[string]any)
		name       string
		target     string
		wantError  string
		wantStatus int
	}{
		{
			name:       "zero amount",
			target:     "/api/transactions",
			mutate:     func(m map[string]any) { m["amount"] = 0 },
			wantStatus: http.StatusBadRequest,
			wantError:  "validation failed",
		},
		{
			name:       "missing date",
			target:     "/api/transactions",
			mutate:     func(m map[string]any) { delete(m, "date") },
			wantStatus: http.StatusBadRequest,
			wantError:  "date is required",
		},
		{
			name:       "malformed date",
			target:     "/api/transactions",
			mutate:     func(m map[string]any) { m["date"] = "15/01/2024" },
			wantStatus: http.StatusBadRequest,
			wantError:  "expected YYYY-MM-DD",
		},
		{
			name:       "unknown type",
			target:     "/api/transactions",
			mutate:     func(m map[string]any) { m["type"] = "refund" },
			wantStatus: http.StatusBadRequest,
			wantError:  "validation failed",
		},
		{
			name:       "unknown account",
			target:     "/api/transactions",
			mutate:     func(m map[string]any) { m["account_id"] = "nope" },
			wantStatus: http.StatusBadRequest,
			wantError:  "unknown account",
		},
		{
			name:       "bad force flag",
			target:     "/api/transactions?force=maybe",
			mutate:     func(map[string]any) {},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid force value",
		},
		{
			name:       "unknown replace target",
			target:     "/api/transactions?replace=missing",
			mutate:     func(map[string]any) {},
			wantStatus: http.StatusNotFound,
			wantError:  "not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, handler := newTestAPI(t)
			body := lunch()
			tt.mutate(body)

			rec := do(t, handler, http.MethodPost, tt.target, body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Contains(t, resp["error"], tt.wantError)
		})
	}
}

func TestCreateTransaction_InvalidBody(t *testing.T) {
	_, handler := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/transactions", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid request body"}`, rec.Body.String())
}

func TestPreviewTransaction(t *testing.T) {
	db, handler := newTestAPI(t)

	rec := do(t, handler, http.MethodPost, "/api/transactions/preview", lunch())
	require.Equal(t, http.StatusOK, rec.Code)

	var body previewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "food", body.Transaction.CategoryID)
	assert.Len(t, body.Applied, 1)
	assert.Equal(t, int64(0), db.Balance("checking"), "preview must not persist")

	// Another user has no rules of their own.
	data, err := json.Marshal(lunch())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/transactions/preview", bytes.NewReader(data))
	req.Header.Set("X-User-ID", "someone-else")
	other := httptest.NewRecorder()
	handler.ServeHTTP(other, req)

	require.Equal(t, http.StatusOK, other.Code)
	var otherBody previewResponse
	require.NoError(t, json.Unmarshal(other.Body.Bytes(), &otherBody))
	assert.Empty(t, otherBody.Applied)
	assert.Empty(t, otherBody.Transaction.CategoryID)
}

func TestDeleteTransaction(t *testing.T) {
	db, handler := newTestAPI(t)

	created := do(t, handler, http.MethodPost, "/api/transactions", lunch())
	require.Equal(t, http.StatusCreated, created.Code)
	var txn model.Transaction
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &txn))

	rec := do(t, handler, http.MethodDelete, "/api/transactions/"+txn.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(0), db.Balance("checking"))

	again := do(t, handler, http.MethodDelete, "/api/transactions/"+txn.ID, nil)
	assert.Equal(t, http.StatusNotFound, again.Code)
}

func TestImportTransactions(t *testing.T) {
	db, handler := newTestAPI(t)

	body := map[string]any{
		"resolve_names": true,
		"rows": []map[string]any{
			{"date": "2024-01-15", "description": "Lunch", "amount": 1000, "type": "expense", "account": "checking"},
			{"date": "2024-01-16", "description": "Paycheck", "amount": 500000, "type": "income", "account": "Checking", "category": "Salary"},
			{"date": "2024-01-15", "description": "Lunch again", "amount": 1000, "type": "expense", "account": "Checking"},
			{"date": "2024-01-17", "description": "Mystery", "amount": 100, "type": "expense", "account": "Chequing"},
		},
	}

	rec := do(t, handler, http.MethodPost, "/api/imports", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary ingest.ImportSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.Duplicates)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "row 4")
	assert.Equal(t, int64(500000-1000), db.Balance("checking"))
}

func TestImportTransactions_BadDate(t *testing.T) {
	_, handler := newTestAPI(t)

	body := map[string]any{
		"rows": []map[string]any{
			{"date": "2024-01-15", "description": "ok", "amount": 100, "type": "expense", "account_id": "checking"},
			{"date": "yesterday", "description": "bad", "amount": 100, "type": "expense", "account_id": "checking"},
		},
	}

	rec := do(t, handler, http.MethodPost, "/api/imports", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "row 2")
}

func TestImportTransactions_QuotaExceeded(t *testing.T) {
	db := testutil.SetupTestDB(t, func(b *testutil.Builder) *testutil.Builder {
		return b.WithBasicLedger()
	})
	svc := ingest.NewService(db.Storage, ingest.WithQuota(quota.NewChecker(db.Storage, 1)))
	handler := Routes(NewTransactionsHandler(svc, testutil.DefaultUser), slog.New(slog.NewTextHandler(io.Discard, nil)))

	body := map[string]any{
		"rows": []map[string]any{
			{"date": "2024-01-15", "description": "one", "amount": 100, "type": "expense", "account_id": "checking"},
			{"date": "2024-01-16", "description": "two", "amount": 200, "type": "expense", "account_id": "checking"},
		},
	}

	rec := do(t, handler, http.MethodPost, "/api/imports", body)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, int64(0), db.Balance("checking"))
}
