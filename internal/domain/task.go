package domain

import "time"

// TaskType identifies which micro-agent family handles a task.
type TaskType string

const (
	TaskArbitrage TaskType = "arbitrage_trading"
	TaskYield     TaskType = "yield_farming"
	TaskGrant     TaskType = "grant_writing"
	TaskContent   TaskType = "content_creation"
	TaskGeneric   TaskType = "generic"
)

// TaskStatus tracks a task through its lifecycle. Tasks never leave
// completed or failed.
type TaskStatus string

const (
	TaskCreated   TaskStatus = "created"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// TaskConfig carries the per-type parameters the classifier assigns.
// Zero-valued fields are simply unused by the task's type.
type TaskConfig struct {
	Amount          float64 `json:"amount,omitempty"`
	GrantAmount     float64 `json:"grant_amount,omitempty"`
	Rate            float64 `json:"rate,omitempty"`
	Hours           float64 `json:"hours,omitempty"`
	RevenueEstimate float64 `json:"revenue_estimate,omitempty"`
	RevenueTarget   float64 `json:"revenue_target,omitempty"`
	Pool            string  `json:"pool,omitempty"`
	Urgency         string  `json:"urgency,omitempty"`
}

// Task is a unit of work dispatched to a micro-agent.
type Task struct {
	ID          string     `json:"id"`
	Type        TaskType   `json:"type"`
	Status      TaskStatus `json:"status"`
	Description string     `json:"description"`
	UserID      string     `json:"user_id,omitempty"`
	Config      TaskConfig `json:"config"`
	// ExpectedRevenue is the classifier's estimate; Revenue is what the
	// agent actually produced.
	ExpectedRevenue float64   `json:"expected_revenue"`
	Revenue         float64   `json:"revenue"`
	CreatedAt       time.Time `json:"created_at"`
	CompletedAt     time.Time `json:"completed_at,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// Terminal reports whether the task has finished, successfully or not.
func (t Task) Terminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed
}
