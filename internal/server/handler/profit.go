package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/phindlabs/revloop/internal/domain"
)

// ProfitService defines what the profit handler needs from the ledger.
type ProfitService interface {
	Snapshot() domain.ProfitSnapshot
	Summary() domain.ProfitSummary
	RecordExpense(ctx context.Context, amount float64, label string, details map[string]string) error
}

// ProfitHandler serves the profit-tracking endpoints.
type ProfitHandler struct {
	ledger ProfitService
	logger *slog.Logger
}

// NewProfitHandler creates a ProfitHandler with the given service and logger.
func NewProfitHandler(ledger ProfitService, logger *slog.Logger) *ProfitHandler {
	return &ProfitHandler{ledger: ledger, logger: logger}
}

// GetProfit returns the rounded profit dashboard payload.
// GET /api/profit
func (h *ProfitHandler) GetProfit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.Snapshot())
}

// GetSummary returns the raw profit summary with projections.
// GET /api/profit/summary
func (h *ProfitHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.Summary())
}

// recordExpenseRequest is the POST /api/profit/expenses request body.
type recordExpenseRequest struct {
	Amount  float64           `json:"amount"`
	Label   string            `json:"label"`
	Details map[string]string `json:"details"`
}

// RecordExpense books an operating expense against the ledger.
// POST /api/profit/expenses
func (h *ProfitHandler) RecordExpense(w http.ResponseWriter, r *http.Request) {
	var req recordExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Label == "" {
		writeError(w, http.StatusBadRequest, "label is required")
		return
	}

	if err := h.ledger.RecordExpense(r.Context(), req.Amount, req.Label, req.Details); err != nil {
		if errors.Is(err, domain.ErrInvalidAmount) {
			writeError(w, http.StatusBadRequest, "amount must be positive")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: record expense failed",
			slog.String("label", req.Label),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to record expense")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}
