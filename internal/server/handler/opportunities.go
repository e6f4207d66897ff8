package handler

import (
	"log/slog"
	"net/http"

	"github.com/phindlabs/revloop/internal/domain"
	"github.com/phindlabs/revloop/internal/monitor"
)

// OpportunityService defines what the handler needs from the
// opportunity monitor.
type OpportunityService interface {
	Opportunities(oppType domain.OpportunityType, limit int) []domain.Opportunity
	MarkActioned(id, action string) bool
	UpdateThresholds(updates map[string]float64) map[string]float64
	Summarize() monitor.Summary
}

// OpportunityHandler serves the opportunity alert endpoints.
type OpportunityHandler struct {
	monitor OpportunityService
	logger  *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler with the given
// service and logger.
func NewOpportunityHandler(m OpportunityService, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{monitor: m, logger: logger}
}

// listOpportunitiesResponse wraps the alert list.
type listOpportunitiesResponse struct {
	Opportunities []domain.Opportunity `json:"opportunities"`
}

// ListOpportunities returns recent alerts, optionally filtered by type.
// GET /api/opportunities?type=arbitrage&limit=20
func (h *OpportunityHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	oppType := domain.OpportunityType(r.URL.Query().Get("type"))
	switch oppType {
	case "", domain.OpportunityArbitrage, domain.OpportunityTrend:
	default:
		writeError(w, http.StatusBadRequest, "unknown opportunity type")
		return
	}

	opps := h.monitor.Opportunities(oppType, parseLimit(r, 20))
	if opps == nil {
		opps = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, listOpportunitiesResponse{Opportunities: opps})
}

// GetSummary returns the alert-ring dashboard summary.
// GET /api/opportunities/summary
func (h *OpportunityHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Summarize())
}

// actionRequest is the POST /api/opportunities/{id}/action request body.
type actionRequest struct {
	Action string `json:"action"`
}

// MarkActioned transitions an alert to actioned or ignored.
// POST /api/opportunities/{id}/action
func (h *OpportunityHandler) MarkActioned(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req actionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Action != domain.OpportunityActioned && req.Action != domain.OpportunityIgnored {
		writeError(w, http.StatusBadRequest, "action must be actioned or ignored")
		return
	}

	if !h.monitor.MarkActioned(id, req.Action) {
		writeError(w, http.StatusNotFound, "opportunity not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":     id,
		"status": req.Action,
	})
}

// UpdateThresholds merges new detection thresholds and returns the
// full set.
// PUT /api/opportunities/thresholds
func (h *OpportunityHandler) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var updates map[string]float64
	if err := decodeJSON(r, &updates); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(updates) == 0 {
		writeError(w, http.StatusBadRequest, "no thresholds provided")
		return
	}

	thresholds := h.monitor.UpdateThresholds(updates)
	h.logger.InfoContext(r.Context(), "handler: opportunity thresholds updated",
		slog.Int("count", len(updates)),
	)
	writeJSON(w, http.StatusOK, map[string]any{"thresholds": thresholds})
}
