package handler

import (
	"log/slog"
	"net/http"

	"github.com/phindlabs/revloop/internal/scheduler"
)

// LoopService exposes the control loop's live status.
type LoopService interface {
	Snapshot() scheduler.Status
}

// StatusHandler serves the control-loop status endpoint.
type StatusHandler struct {
	loop   LoopService
	logger *slog.Logger
}

// NewStatusHandler creates a StatusHandler over the loop service.
func NewStatusHandler(loop LoopService, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{loop: loop, logger: logger}
}

// GetStatus returns the loop's cycle count, next cycle type, volatility
// reading, and risk score.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.loop.Snapshot())
}
