// Package strategy defines the executor contract the control loop drives
// and a registry of the executors available to it. Executors receive the
// evolved parameter set for their strategy type on every run.
package strategy

import (
	"context"

	"github.com/phindlabs/revloop/internal/domain"
)

// Executor runs one strategy execution. The params map carries the
// current evolved parameters for the strategy (possibly nil). The result
// must report status "completed" or "error"; any other value is treated
// as a contract violation by the caller.
type Executor interface {
	Execute(ctx context.Context, params map[string]float64) (domain.ExecutionResult, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, params map[string]float64) (domain.ExecutionResult, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, params map[string]float64) (domain.ExecutionResult, error) {
	return f(ctx, params)
}
