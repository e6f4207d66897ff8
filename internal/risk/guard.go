package risk

import (
	"context"
	"fmt"
)

// CycleGuard supervises the strategy executions of one control cycle.
// Opening a guard clears any emergency stop left over from the previous
// cycle, so a halt only ever cancels the remainder of the cycle that
// raised it.
type CycleGuard struct {
	monitor *Monitor
}

// Guard opens a new cycle guard.
func (m *Monitor) Guard() *CycleGuard {
	m.mu.Lock()
	m.halted = false
	m.mu.Unlock()
	return &CycleGuard{monitor: m}
}

// Halted reports whether an emergency stop was raised during this cycle.
func (g *CycleGuard) Halted() bool {
	return g.monitor.Halted()
}

// Run executes op under risk supervision. A failure is recorded as an
// operation_failure violation and the error is propagated to the caller.
func (g *CycleGuard) Run(ctx context.Context, op string, fn func(context.Context) error) error {
	if g.Halted() {
		return fmt.Errorf("risk: %s skipped: emergency stop in effect", op)
	}
	if err := fn(ctx); err != nil {
		g.monitor.RecordFailure(ctx, op, err)
		return fmt.Errorf("risk: %s: %w", op, err)
	}
	return nil
}
