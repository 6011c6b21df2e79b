package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"expensed/internal/core"
	"expensed/internal/services"
)

// expenseRequest is the wire form of a create/update body. Pointers
// distinguish absent fields from present-but-empty ones, and Amount accepts
// both JSON number and string forms.
type expenseRequest struct {
	Description *string          `json:"description"`
	Amount      *json.RawMessage `json:"amount"`
	Category    *string          `json:"category"`
	Date        *string          `json:"date"`
}

func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return decimal.Decimal{}, fmt.Errorf("%w: amount is required", core.ErrValidation)
	}
	return core.ParseAmount(s)
}

// handleCreateExpense stores a new expense for the caller.
// POST /api/expenses
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		respondWithError(w, r, fmt.Errorf("%w: no identity", core.ErrAuthentication))
		return
	}

	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, fmt.Errorf("%w: malformed JSON body", core.ErrValidation))
		return
	}

	input := services.ExpenseInput{}
	if req.Description != nil {
		input.Description = *req.Description
	}
	if req.Category != nil {
		input.Category = *req.Category
	}
	if req.Amount == nil {
		respondWithError(w, r, fmt.Errorf("%w: amount is required", core.ErrValidation))
		return
	}
	amount, err := parseAmount(*req.Amount)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	input.Amount = amount
	if req.Date != nil && strings.TrimSpace(*req.Date) != "" {
		date, err := core.ParseDate(*req.Date)
		if err != nil {
			respondWithError(w, r, err)
			return
		}
		input.Date = date
	}

	expense, err := s.expenses.Create(r.Context(), identity.ID, input)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, expense)
}

// handleListExpenses returns the caller's expenses in insertion order.
// GET /api/expenses
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		respondWithError(w, r, fmt.Errorf("%w: no identity", core.ErrAuthentication))
		return
	}

	expenses, err := s.expenses.List(r.Context(), identity.ID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, expenses)
}

// handleUpdateExpense applies a partial update to one of the caller's
// expenses.
// PUT /api/expenses/{id}
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		respondWithError(w, r, fmt.Errorf("%w: no identity", core.ErrAuthentication))
		return
	}
	expenseID := chi.URLParam(r, "id")

	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, fmt.Errorf("%w: malformed JSON body", core.ErrValidation))
		return
	}

	patch := core.ExpensePatch{
		Description: req.Description,
		Category:    req.Category,
	}
	if req.Amount != nil {
		amount, err := parseAmount(*req.Amount)
		if err != nil {
			respondWithError(w, r, err)
			return
		}
		patch.Amount = &amount
	}
	if req.Date != nil {
		date, err := core.ParseDate(*req.Date)
		if err != nil {
			respondWithError(w, r, err)
			return
		}
		patch.Date = &date
	}

	expense, err := s.expenses.Update(r.Context(), identity.ID, expenseID, patch)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, expense)
}

// handleDeleteExpense removes one of the caller's expenses.
// DELETE /api/expenses/{id}
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		respondWithError(w, r, fmt.Errorf("%w: no identity", core.ErrAuthentication))
		return
	}
	expenseID := chi.URLParam(r, "id")

	if err := s.expenses.Delete(r.Context(), identity.ID, expenseID); err != nil {
		respondWithError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Expense deleted successfully"})
}

// handleSummary aggregates the caller's expenses.
// GET /api/expenses/summary
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		respondWithError(w, r, fmt.Errorf("%w: no identity", core.ErrAuthentication))
		return
	}

	summary, err := s.expenses.Summarize(r.Context(), identity.ID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}
