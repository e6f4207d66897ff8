package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phindlabs/revloop/internal/domain"
	"github.com/phindlabs/revloop/internal/taskpool"
)

// TaskService defines what the task handler needs from the task pool.
type TaskService interface {
	Submit(ctx context.Context, description, userID string) (*taskpool.SubmitResult, error)
	Snapshot() domain.PerformanceSnapshot
}

// TaskHandler serves task submission and pool performance endpoints.
type TaskHandler struct {
	tasks  TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a TaskHandler with the given service and logger.
func NewTaskHandler(tasks TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

// submitTaskRequest is the POST /api/tasks request body.
type submitTaskRequest struct {
	Description string `json:"description"`
	UserID      string `json:"user_id"`
}

// SubmitTask classifies a free-form request and runs the matched tasks.
// POST /api/tasks
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req submitTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return
	}
	if req.UserID == "" {
		req.UserID = "api"
	}

	res, err := h.tasks.Submit(r.Context(), req.Description, req.UserID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: task submit failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "task submission failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetPerformance returns the task-pool dashboard snapshot.
// GET /api/tasks/performance
func (h *TaskHandler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tasks.Snapshot())
}
