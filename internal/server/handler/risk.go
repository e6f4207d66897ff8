package handler

import (
	"log/slog"
	"net/http"

	"github.com/phindlabs/revloop/internal/domain"
)

// RiskService defines what the risk handler needs from the monitor.
type RiskService interface {
	Status() domain.RiskStatus
	UpdateThresholds(updates map[string]float64)
	Violations() []domain.RiskViolation
}

// RiskHandler serves the risk-monitoring endpoints.
type RiskHandler struct {
	risk   RiskService
	logger *slog.Logger
}

// NewRiskHandler creates a RiskHandler with the given service and logger.
func NewRiskHandler(risk RiskService, logger *slog.Logger) *RiskHandler {
	return &RiskHandler{risk: risk, logger: logger}
}

// GetStatus returns the composite risk score, level, and thresholds.
// GET /api/risk
func (h *RiskHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.risk.Status())
}

// listViolationsResponse wraps the violation list.
type listViolationsResponse struct {
	Violations []domain.RiskViolation `json:"violations"`
}

// ListViolations returns the recorded threshold violations, newest last.
// GET /api/risk/violations
func (h *RiskHandler) ListViolations(w http.ResponseWriter, r *http.Request) {
	violations := h.risk.Violations()
	if violations == nil {
		violations = []domain.RiskViolation{}
	}
	limit := parseLimit(r, 50)
	if len(violations) > limit {
		violations = violations[len(violations)-limit:]
	}
	writeJSON(w, http.StatusOK, listViolationsResponse{Violations: violations})
}

// UpdateThresholds merges new threshold values into the monitor.
// PUT /api/risk/thresholds
func (h *RiskHandler) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var updates map[string]float64
	if err := decodeJSON(r, &updates); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(updates) == 0 {
		writeError(w, http.StatusBadRequest, "no thresholds provided")
		return
	}
	for metric, value := range updates {
		if value <= 0 {
			writeError(w, http.StatusBadRequest, "threshold for "+metric+" must be positive")
			return
		}
	}

	h.risk.UpdateThresholds(updates)
	h.logger.InfoContext(r.Context(), "handler: risk thresholds updated",
		slog.Int("count", len(updates)),
	)
	writeJSON(w, http.StatusOK, h.risk.Status())
}
