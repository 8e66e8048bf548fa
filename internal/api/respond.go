package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/soochol/hookboard/internal/repository"
	"github.com/soochol/hookboard/internal/services"
	"github.com/soochol/hookboard/internal/webhook"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeError maps err onto an HTTP status. Trigger errors carry their kind.
func writeError(w http.ResponseWriter, err error) {
	kind := string(webhook.KindOf(err))
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
		kind = "not_found"
	case errors.Is(err, services.ErrInvalidWorkflow):
		status = http.StatusBadRequest
		kind = "invalid"
	case webhook.KindOf(err) == webhook.KindConfigurationMissing:
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Kind: "invalid"})
}

// parsePagination extracts limit and offset query parameters with defaults.
func parsePagination(r *http.Request) (int, int) {
	limit := 20
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}
