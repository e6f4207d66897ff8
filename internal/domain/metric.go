// Package domain defines the core types shared by the revenue-loop control
// core: performance metrics, risk thresholds and violations, micro-agent
// tasks, ledger events, and the interfaces implemented by the storage, cache,
// and blob layers.
package domain

import "time"

// PerformanceMetric is a single immutable execution sample recorded after a
// strategy run. It is appended to the evolution engine's ordered history and
// never mutated afterwards.
type PerformanceMetric struct {
	Timestamp     time.Time
	StrategyType  string
	Revenue       float64 // USD, >= 0
	ExecutionTime float64 // seconds, > 0
	Success       bool
	// MarketConditions is a snapshot of numeric market signals at execution
	// time (volatility, volume, ...).
	MarketConditions map[string]float64
}

// SuccessRate returns 1.0 for a successful sample and 0.0 otherwise.
func (m PerformanceMetric) SuccessRate() float64 {
	if m.Success {
		return 1.0
	}
	return 0.0
}

// ExecutionResult is the fixed collaborator contract returned by every
// strategy executor. Status must be "completed" or "error"; any other shape
// is rejected by the scheduler.
type ExecutionResult struct {
	Status        string
	Revenue       float64
	ExecutionTime float64 // seconds
	Metadata      map[string]float64
}

const (
	ExecStatusCompleted = "completed"
	ExecStatusError     = "error"
)

// Valid reports whether the result conforms to the executor contract.
func (r ExecutionResult) Valid() bool {
	return r.Status == ExecStatusCompleted || r.Status == ExecStatusError
}
