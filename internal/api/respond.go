package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/quota"
)

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Debug("Failed to encode response", "error", err)
		}
	}
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps an ingestion error onto an HTTP response. Messages
// of server-side failures are logged, never returned.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrValidation):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrDanglingAccount):
		WriteError(w, http.StatusBadRequest, "unknown account")
	case errors.Is(err, common.ErrDuplicateEntry):
		WriteError(w, http.StatusConflict, "transaction id already exists")
	case errors.Is(err, common.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, quota.ErrLimitExceeded):
		WriteError(w, http.StatusTooManyRequests, err.Error())
	default:
		common.LogError(r.Context(), err, "Request failed", common.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": RequestIDFrom(r.Context()),
		})
		WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
