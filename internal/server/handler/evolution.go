package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/phindlabs/revloop/internal/evolution"
)

// EvolutionService defines what the handler needs from the evolution
// engine.
type EvolutionService interface {
	Summarize(volatility float64) evolution.Summary
	ExportState() ([]byte, error)
	ImportState(data []byte) error
}

// VolatilitySource supplies the most recent market volatility reading.
type VolatilitySource interface {
	LastVolatility() float64
}

// EvolutionHandler serves the strategy-evolution endpoints.
type EvolutionHandler struct {
	engine     EvolutionService
	volatility VolatilitySource
	logger     *slog.Logger
}

// NewEvolutionHandler creates an EvolutionHandler with the given
// service and logger.
func NewEvolutionHandler(engine EvolutionService, volatility VolatilitySource, logger *slog.Logger) *EvolutionHandler {
	return &EvolutionHandler{
		engine:     engine,
		volatility: volatility,
		logger:     logger,
	}
}

// GetSummary returns weights, parameters, fitness, and the current
// recommendation.
// GET /api/evolution
func (h *EvolutionHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	vol := 0.3
	if h.volatility != nil {
		vol = h.volatility.LastVolatility()
	}
	writeJSON(w, http.StatusOK, h.engine.Summarize(vol))
}

// ExportState returns the learned weights and parameters as a JSON
// document suitable for re-import.
// GET /api/evolution/state
func (h *EvolutionHandler) ExportState(w http.ResponseWriter, r *http.Request) {
	data, err := h.engine.ExportState()
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: evolution export failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to export state")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ImportState merges a previously exported state document into the
// engine.
// PUT /api/evolution/state
func (h *EvolutionHandler) ImportState(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if err := h.engine.ImportState(data); err != nil {
		writeError(w, http.StatusBadRequest, "invalid state document: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "imported"})
}
