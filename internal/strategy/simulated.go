package strategy

import (
	"context"
	"math/rand"
	"sync"

	"github.com/phindlabs/revloop/internal/domain"
)

// simulatedBaseRevenue is the per-execution revenue center for each
// strategy type before jitter and parameter scaling.
var simulatedBaseRevenue = map[string]float64{
	"arbitrage_trading": 150,
	"yield_farming":     40,
	"grant_writing":     120,
	"content_creation":  180,
	"market_making":     90,
}

// Simulated is a stand-in executor for the trading, scraping, and
// generation collaborators that live outside this service. It produces
// plausible revenue, execution time, and market metadata without any
// external I/O.
type Simulated struct {
	strategyType string
	successRate  float64

	mu  sync.Mutex
	rng *rand.Rand
}

var _ Executor = (*Simulated)(nil)

// NewSimulated creates a simulated executor for one strategy type. The
// success rate is clamped to [0,1]; the rng drives all variation and can
// be seeded for deterministic tests.
func NewSimulated(strategyType string, successRate float64, rng *rand.Rand) *Simulated {
	if successRate < 0 {
		successRate = 0
	}
	if successRate > 1 {
		successRate = 1
	}
	return &Simulated{
		strategyType: strategyType,
		successRate:  successRate,
		rng:          rng,
	}
}

// Execute simulates one run. Revenue centers on the type's base revenue,
// jittered +-50% and scaled by the evolved position_size_multiplier when
// present. Failed runs report status "error" with zero revenue.
func (s *Simulated) Execute(ctx context.Context, params map[string]float64) (domain.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExecutionResult{}, err
	}

	s.mu.Lock()
	roll := s.rng.Float64()
	jitter := 0.5 + s.rng.Float64()     // 0.5 .. 1.5
	execTime := 5 + s.rng.Float64()*55  // 5 .. 60 seconds
	volatility := 0.1 + s.rng.Float64()*0.7
	s.mu.Unlock()

	meta := map[string]float64{
		"volatility": volatility,
	}

	if roll >= s.successRate {
		return domain.ExecutionResult{
			Status:        domain.ExecStatusError,
			Revenue:       0,
			ExecutionTime: execTime,
			Metadata:      meta,
		}, nil
	}

	base, ok := simulatedBaseRevenue[s.strategyType]
	if !ok {
		base = 50
	}
	multiplier := 1.0
	if m, ok := params["position_size_multiplier"]; ok && m > 0 {
		multiplier = m
	}

	return domain.ExecutionResult{
		Status:        domain.ExecStatusCompleted,
		Revenue:       base * jitter * multiplier,
		ExecutionTime: execTime,
		Metadata:      meta,
	}, nil
}
