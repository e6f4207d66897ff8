// Package taskpool turns free-text work requests into typed micro-agent
// tasks, executes them against a deterministic revenue model, and scales
// agent capacity against a daily revenue target.
package taskpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/phindlabs/revloop/internal/domain"
)

// IncomeRecorder receives realized task revenue. The ledger service
// implements this.
type IncomeRecorder interface {
	RecordIncome(ctx context.Context, amount float64, label string, details map[string]string) error
}

// scalingTiers maps daily revenue thresholds to agent counts. The
// current tier is the largest threshold at or below current revenue.
var scalingTiers = map[float64]int{
	200:  1,
	500:  3,
	1000: 5,
	2000: 10,
	5000: 20,
}

var tierThresholds = []float64{200, 500, 1000, 2000, 5000}

// Config holds the manager's tunables.
type Config struct {
	DailyTarget float64
}

// Manager owns the task pool. All methods are safe for concurrent use.
type Manager struct {
	mu           sync.Mutex
	dailyTarget  float64
	active       map[string]*domain.Task
	completed    []domain.Task
	counter      int
	dailyRevenue float64

	ledger IncomeRecorder
	logger *slog.Logger
	now    func() time.Time
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

// WithIncomeRecorder forwards realized revenue to the ledger.
func WithIncomeRecorder(r IncomeRecorder) Option { return func(m *Manager) { m.ledger = r } }

// WithClock injects the time source.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// NewManager creates a Manager with the given daily revenue target.
// A non-positive target falls back to $200/day.
func NewManager(cfg Config, logger *slog.Logger, opts ...Option) *Manager {
	if cfg.DailyTarget <= 0 {
		cfg.DailyTarget = 200
	}
	m := &Manager{
		dailyTarget: cfg.DailyTarget,
		active:      make(map[string]*domain.Task),
		logger:      logger.With(slog.String("component", "taskpool")),
		now:         time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SubmitResult summarizes one processed work request.
type SubmitResult struct {
	TaskIDs     []string  `json:"task_ids"`
	Revenue     float64   `json:"revenue"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Submit classifies a free-text description, spawns the micro-agent
// tasks it calls for, executes them concurrently, and folds realized
// revenue into the daily counter. Realized income is forwarded to the
// ledger; a revenue deficit after execution triggers autonomous scaling.
func (m *Manager) Submit(ctx context.Context, description, userID string) (*SubmitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("taskpool: submit: %w", err)
	}

	taskType, cfg := Classify(description)
	m.logger.InfoContext(ctx, "processing task request",
		slog.String("type", string(taskType)),
		slog.String("user_id", userID),
	)

	task := m.createTask(taskType, cfg, description, userID)

	var (
		resMu   sync.Mutex
		revenue float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out := m.runTask(gctx, task.ID)
		resMu.Lock()
		revenue += out.realized
		resMu.Unlock()
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("taskpool: submit: %w", err)
	}

	return &SubmitResult{
		TaskIDs:     []string{task.ID},
		Revenue:     revenue,
		ProcessedAt: m.now(),
	}, nil
}

// createTask allocates the next task ID and registers the task as active.
func (m *Manager) createTask(taskType domain.TaskType, cfg domain.TaskConfig, description, userID string) *domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createTaskLocked(taskType, cfg, description, userID)
}

func (m *Manager) createTaskLocked(taskType domain.TaskType, cfg domain.TaskConfig, description, userID string) *domain.Task {
	m.counter++
	t := &domain.Task{
		ID:              fmt.Sprintf("task_%04d_%s", m.counter, taskType),
		Type:            taskType,
		Status:          domain.TaskCreated,
		Description:     description,
		UserID:          userID,
		Config:          cfg,
		ExpectedRevenue: cfg.RevenueTarget,
		CreatedAt:       m.now(),
	}
	m.active[t.ID] = t
	m.logger.Info("micro-agent created",
		slog.String("task_id", t.ID),
		slog.String("type", string(taskType)),
	)
	return t
}

// runTask executes one active task and settles its revenue.
func (m *Manager) runTask(ctx context.Context, taskID string) outcome {
	m.mu.Lock()
	t, ok := m.active[taskID]
	if !ok {
		m.mu.Unlock()
		return outcome{}
	}
	t.Status = domain.TaskRunning
	taskType, cfg := t.Type, t.Config
	m.mu.Unlock()

	out := executeTask(taskType, cfg)

	m.mu.Lock()
	t.Status = domain.TaskCompleted
	t.Revenue = out.realized
	t.CompletedAt = m.now()
	if out.expected > t.ExpectedRevenue {
		t.ExpectedRevenue = out.expected
	}
	delete(m.active, taskID)
	m.completed = append(m.completed, *t)
	m.dailyRevenue += out.realized
	deficit := m.dailyTarget - m.dailyRevenue
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "task completed",
		slog.String("task_id", taskID),
		slog.Float64("revenue", out.realized),
	)

	if out.realized > 0 && m.ledger != nil {
		if err := m.ledger.RecordIncome(ctx, out.realized, string(taskType), out.details); err != nil {
			m.logger.WarnContext(ctx, "ledger record failed",
				slog.String("task_id", taskID),
				slog.String("error", err.Error()),
			)
		}
	}

	if deficit > 0 {
		m.autoscale(ctx, deficit)
	}
	return out
}

// autoscale creates (but does not execute) a high-urgency arbitrage task
// sized at 50x the revenue deficit. Small deficits are ignored.
func (m *Manager) autoscale(ctx context.Context, deficit float64) {
	if deficit <= 100 {
		return
	}
	m.logger.InfoContext(ctx, "autonomous scaling triggered",
		slog.Float64("deficit", deficit),
	)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createTaskLocked(domain.TaskArbitrage, domain.TaskConfig{
		Amount:        deficit * 50,
		RevenueTarget: deficit,
		Urgency:       "high",
	}, "autonomous scaling", "")
}

// DailyRevenue returns realized revenue accumulated since startup.
func (m *Manager) DailyRevenue() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyRevenue
}

// currentTierLocked returns the agent count for the largest threshold at
// or below current revenue (tier 1 below every threshold).
func (m *Manager) currentTierLocked() int {
	for i := len(tierThresholds) - 1; i >= 0; i-- {
		if m.dailyRevenue >= tierThresholds[i] {
			return scalingTiers[tierThresholds[i]]
		}
	}
	return 1
}

// nextThresholdLocked returns the smallest threshold above current
// revenue, or the top threshold once revenue has cleared them all.
func (m *Manager) nextThresholdLocked() float64 {
	for _, th := range tierThresholds {
		if m.dailyRevenue < th {
			return th
		}
	}
	return tierThresholds[len(tierThresholds)-1]
}

// Snapshot assembles the performance dashboard payload.
func (m *Manager) Snapshot() domain.PerformanceSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	activeCount := len(m.active)
	completedCount := len(m.completed)
	total := activeCount + completedCount
	if total == 0 {
		total = 1
	}

	deficit := m.dailyTarget - m.dailyRevenue
	if deficit < 0 {
		deficit = 0
	}

	views := make([]domain.TaskView, 0, activeCount)
	for _, t := range m.active {
		views = append(views, domain.TaskView{
			ID:              t.ID,
			Type:            t.Type,
			ExpectedRevenue: t.ExpectedRevenue,
			Urgency:         t.Config.Urgency,
		})
	}

	return domain.PerformanceSnapshot{
		DailyTarget:       m.dailyTarget,
		CurrentDaily:      m.dailyRevenue,
		Deficit:           deficit,
		ProgressPercent:   m.dailyRevenue / m.dailyTarget * 100,
		ActiveAgents:      activeCount,
		CompletedTasks:    completedCount,
		SuccessRate:       float64(len(m.completed)) / float64(total),
		CurrentTier:       m.currentTierLocked(),
		NextThreshold:     m.nextThresholdLocked(),
		AutoScalingActive: m.dailyRevenue < m.dailyTarget,
		ActiveTasks:       views,
		GeneratedAt:       m.now(),
	}
}
