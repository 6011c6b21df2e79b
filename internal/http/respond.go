package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"expensed/internal/core"
	"expensed/internal/log"
)

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithError maps the core error kinds to status codes. Every failure
// body is {"error": message}; internals never reach the client.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, core.ErrValidation):
		statusCode = http.StatusBadRequest
		message = strings.TrimPrefix(err.Error(), core.ErrValidation.Error()+": ")
	case errors.Is(err, core.ErrConflict):
		statusCode = http.StatusBadRequest
		message = "Username already exists"
	case errors.Is(err, core.ErrAuthentication):
		statusCode = http.StatusUnauthorized
		message = "Invalid credentials"
	case errors.Is(err, core.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "Expense not found"
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Unhandled service error", "error", err)
	}

	respondWithJSON(w, statusCode, map[string]string{"error": message})
}
