// Package risk tracks operational metrics against configurable thresholds,
// records violations, and dispatches automated mitigation when breaches are
// severe enough. A cycle guard lets the scheduler run strategy executions
// under risk supervision with an emergency-stop escape hatch.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phindlabs/revloop/internal/domain"
)

// Mitigator receives automated mitigation actions. The default
// implementation only logs; a live deployment plugs in position
// management here.
type Mitigator interface {
	// ReducePositions scales open exposure down by the given factor.
	ReducePositions(ctx context.Context, factor float64) error
	// OptimizeResources frees memory/CPU pressure (cache flushes etc).
	OptimizeResources(ctx context.Context) error
}

// Alerter is pinged on critical violations. Optional.
type Alerter interface {
	Alert(ctx context.Context, title, body string) error
}

// DefaultThresholds mirrors the initial risk limits the monitor starts
// with before any runtime tuning.
func DefaultThresholds() map[string]float64 {
	return map[string]float64{
		"daily_volume":      5.0,
		"tx_frequency":      30,
		"slippage":          0.05,
		"max_position_size": 1000.0,
		"loss_limit":        0.10,
		"gas_price_limit":   100,
		"api_call_rate":     1000,
		"memory_usage":      0.8,
		"cpu_usage":         0.9,
	}
}

// categories maps each known metric to its risk category. Unknown
// metrics are allowed through with a warning.
var categories = map[string]domain.RiskCategory{
	"daily_volume":      domain.RiskFinancial,
	"max_position_size": domain.RiskFinancial,
	"loss_limit":        domain.RiskFinancial,
	"tx_frequency":      domain.RiskOperational,
	"gas_price_limit":   domain.RiskOperational,
	"api_call_rate":     domain.RiskOperational,
	"memory_usage":      domain.RiskTechnical,
	"cpu_usage":         domain.RiskTechnical,
	"slippage":          domain.RiskMarket,
}

var severityWeights = map[domain.Severity]float64{
	domain.SeverityCritical: 1.0,
	domain.SeverityHigh:     0.7,
	domain.SeverityMedium:   0.4,
	domain.SeverityLow:      0.1,
}

// Monitor is the central risk tracker. All methods are safe for
// concurrent use.
type Monitor struct {
	mu         sync.Mutex
	thresholds map[string]float64
	metrics    map[string]domain.RiskMetric
	violations []domain.RiskViolation
	halted     bool

	mitigator Mitigator
	alerter   Alerter
	bus       domain.SignalBus
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures optional Monitor collaborators.
type Option func(*Monitor)

// WithMitigator replaces the default log-only mitigator.
func WithMitigator(m Mitigator) Option { return func(mon *Monitor) { mon.mitigator = m } }

// WithAlerter enables critical-violation alerts.
func WithAlerter(a Alerter) Option { return func(mon *Monitor) { mon.alerter = a } }

// WithSignalBus mirrors violations onto the bus, best-effort.
func WithSignalBus(b domain.SignalBus) Option { return func(mon *Monitor) { mon.bus = b } }

// WithClock injects the time source. Tests use this for age-decay math.
func WithClock(now func() time.Time) Option { return func(mon *Monitor) { mon.now = now } }

// NewMonitor creates a Monitor seeded with DefaultThresholds merged
// under the given overrides (nil is fine).
func NewMonitor(overrides map[string]float64, logger *slog.Logger, opts ...Option) *Monitor {
	th := DefaultThresholds()
	for k, v := range overrides {
		th[k] = v
	}
	m := &Monitor{
		thresholds: th,
		metrics:    make(map[string]domain.RiskMetric),
		logger:     logger.With(slog.String("component", "risk_monitor")),
		now:        time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	if m.mitigator == nil {
		m.mitigator = &logMitigator{logger: m.logger}
	}
	return m
}

// Check records the observed value for a metric and reports whether it
// is within its threshold. A breach appends a violation and, at high or
// critical severity, triggers automated mitigation. Unknown metrics are
// permissive: logged and allowed through.
func (m *Monitor) Check(ctx context.Context, metric string, value float64) bool {
	m.mu.Lock()
	threshold, known := m.thresholds[metric]
	if !known {
		m.mu.Unlock()
		m.logger.WarnContext(ctx, "risk: unknown metric, allowing",
			slog.String("metric", metric),
			slog.Float64("value", value),
		)
		return true
	}

	now := m.now()
	category, ok := categories[metric]
	if !ok {
		category = domain.RiskOperational
	}
	m.metrics[metric] = domain.RiskMetric{
		Value:     value,
		Threshold: threshold,
		Category:  category,
		Timestamp: now,
	}

	if value <= threshold {
		m.mu.Unlock()
		return true
	}

	sev := severityFor(value, threshold)
	v := domain.RiskViolation{
		Metric:    metric,
		Category:  category,
		Value:     value,
		Threshold: threshold,
		Severity:  sev,
		Timestamp: now,
	}
	m.violations = append(m.violations, v)
	m.mu.Unlock()

	m.logger.WarnContext(ctx, "risk: threshold violated",
		slog.String("metric", metric),
		slog.String("severity", string(sev)),
		slog.Float64("value", value),
		slog.Float64("threshold", threshold),
	)
	m.publish(ctx, v)

	if sev == domain.SeverityHigh || sev == domain.SeverityCritical {
		m.mitigate(ctx, v)
	}
	if sev == domain.SeverityCritical && m.alerter != nil {
		body := fmt.Sprintf("%s = %.4f exceeds threshold %.4f", metric, value, threshold)
		if err := m.alerter.Alert(ctx, "critical risk violation", body); err != nil {
			m.logger.WarnContext(ctx, "risk: alert failed", slog.String("error", err.Error()))
		}
	}
	return false
}

// severityFor grades a breach by the value/threshold ratio. A zero or
// negative threshold cannot produce a meaningful ratio, so it grades low.
func severityFor(value, threshold float64) domain.Severity {
	if threshold <= 0 {
		return domain.SeverityLow
	}
	ratio := value / threshold
	switch {
	case ratio >= 2.0:
		return domain.SeverityCritical
	case ratio >= 1.5:
		return domain.SeverityHigh
	case ratio >= 1.2:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func (m *Monitor) mitigate(ctx context.Context, v domain.RiskViolation) {
	switch v.Metric {
	case "daily_volume", "max_position_size":
		if err := m.mitigator.ReducePositions(ctx, 0.5); err != nil {
			m.logger.WarnContext(ctx, "risk: position reduction failed", slog.String("error", err.Error()))
		}
	case "loss_limit":
		m.EmergencyStop(ctx, "loss limit breached")
	case "memory_usage", "cpu_usage":
		if err := m.mitigator.OptimizeResources(ctx); err != nil {
			m.logger.WarnContext(ctx, "risk: resource optimization failed", slog.String("error", err.Error()))
		}
	default:
		m.logger.InfoContext(ctx, "risk: no automated mitigation for metric",
			slog.String("metric", v.Metric))
	}
}

// EmergencyStop raises the halt flag. The flag stops the remaining
// strategies of the current cycle and is cleared when the next cycle
// opens its guard.
func (m *Monitor) EmergencyStop(ctx context.Context, reason string) {
	m.mu.Lock()
	m.halted = true
	m.mu.Unlock()
	m.logger.WarnContext(ctx, "risk: emergency stop", slog.String("reason", reason))
}

// Halted reports whether an emergency stop is in effect.
func (m *Monitor) Halted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.halted
}

// RecordFailure appends an operation_failure violation for a failed
// strategy execution.
func (m *Monitor) RecordFailure(ctx context.Context, op string, cause error) {
	m.mu.Lock()
	v := domain.RiskViolation{
		Metric:    "operation_failure",
		Category:  domain.RiskOperational,
		Value:     1,
		Threshold: 0,
		Severity:  domain.SeverityMedium,
		Timestamp: m.now(),
	}
	m.violations = append(m.violations, v)
	m.mu.Unlock()
	m.logger.WarnContext(ctx, "risk: operation failed",
		slog.String("operation", op),
		slog.String("error", cause.Error()),
	)
	m.publish(ctx, v)
}

// Score computes the aggregate risk score in [0,1]. Every retained
// violation contributes its severity weight scaled by age decay; the
// weight floors at 0.1, so old violations keep counting until Prune
// removes them.
func (m *Monitor) Score() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scoreLocked()
}

func (m *Monitor) scoreLocked() float64 {
	now := m.now()
	var total float64
	for _, v := range m.violations {
		ageWeight := 1 - now.Sub(v.Timestamp).Hours()/24
		if ageWeight < 0.1 {
			ageWeight = 0.1
		}
		total += severityWeights[v.Severity] * ageWeight
	}
	score := total / 10
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// Status assembles the dashboard risk payload.
func (m *Monitor) Status() domain.RiskStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	score := m.scoreLocked()

	recent := 0
	for _, v := range m.violations {
		if now.Sub(v.Timestamp) <= time.Hour {
			recent++
		}
	}

	metrics := make(map[string]domain.RiskMetric, len(m.metrics))
	for k, v := range m.metrics {
		metrics[k] = v
	}
	thresholds := make(map[string]float64, len(m.thresholds))
	for k, v := range m.thresholds {
		thresholds[k] = v
	}

	return domain.RiskStatus{
		Score:            score,
		Level:            levelFor(score),
		MonitoringActive: true,
		TotalViolations:  len(m.violations),
		RecentViolations: recent,
		Metrics:          metrics,
		Thresholds:       thresholds,
		UpdatedAt:        now,
	}
}

func levelFor(score float64) string {
	switch {
	case score >= 0.8:
		return "critical"
	case score >= 0.6:
		return "high"
	case score >= 0.4:
		return "medium"
	case score >= 0.2:
		return "low"
	default:
		return "minimal"
	}
}

// UpdateThresholds overwrites the given thresholds at runtime.
func (m *Monitor) UpdateThresholds(updates map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range updates {
		m.thresholds[k] = v
	}
}

// Violations returns a copy of the violation log, newest last.
func (m *Monitor) Violations() []domain.RiskViolation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.RiskViolation, len(m.violations))
	copy(out, m.violations)
	return out
}

// Prune drops violations older than the cutoff and returns how many
// were removed.
func (m *Monitor) Prune(olderThan time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.violations[:0]
	for _, v := range m.violations {
		if !v.Timestamp.Before(olderThan) {
			kept = append(kept, v)
		}
	}
	removed := len(m.violations) - len(kept)
	m.violations = kept
	return removed
}

func (m *Monitor) publish(ctx context.Context, v domain.RiskViolation) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(ctx, "risk.violations", v); err != nil {
		m.logger.WarnContext(ctx, "risk: bus publish failed", slog.String("error", err.Error()))
	}
}

// logMitigator is the default Mitigator: it records the action without
// touching any positions.
type logMitigator struct {
	logger *slog.Logger
}

func (l *logMitigator) ReducePositions(ctx context.Context, factor float64) error {
	l.logger.InfoContext(ctx, "risk: reducing positions", slog.Float64("factor", factor))
	return nil
}

func (l *logMitigator) OptimizeResources(ctx context.Context) error {
	l.logger.InfoContext(ctx, "risk: optimizing resource usage")
	return nil
}

var _ Mitigator = (*logMitigator)(nil)
