// Package scheduler drives the autonomous control loop: typed cycles on
// an adaptive cadence, strategy execution under risk supervision, and
// performance feedback into the evolution engine and ledger.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/phindlabs/revloop/internal/domain"
	"github.com/phindlabs/revloop/internal/evolution"
	"github.com/phindlabs/revloop/internal/risk"
	"github.com/phindlabs/revloop/internal/strategy"
)

// IncomeRecorder receives realized strategy revenue.
type IncomeRecorder interface {
	RecordIncome(ctx context.Context, amount float64, label string, details map[string]string) error
}

// baseDurations is the wait after each cycle type, before volatility
// adjustment.
var baseDurations = map[domain.CycleType]time.Duration{
	domain.CycleMarketAnalysis:  180 * time.Second,
	domain.CycleRiskAssessment:  120 * time.Second,
	domain.CycleTradeExecution:  90 * time.Second,
	domain.CycleOpportunityScan: 240 * time.Second,
	domain.CyclePortfolioReview: 300 * time.Second,
}

// Config holds the scheduler's tunables.
type Config struct {
	// ExecTimeout bounds each strategy execution.
	ExecTimeout time.Duration
	// ErrorBackoff is the wait after a cycle that returned an error.
	ErrorBackoff time.Duration
}

// Scheduler owns the control loop. One instance runs one loop.
type Scheduler struct {
	registry  *strategy.Registry
	risk      *risk.Monitor
	evolution *evolution.Engine
	ledger    IncomeRecorder

	cfg    Config
	logger *slog.Logger

	mu             sync.Mutex
	cycleCount     int
	lastVolatility float64
}

// New creates a Scheduler. Zero config fields get a 2m execution timeout
// and 60s error backoff. Volatility starts moderate at 0.3.
func New(
	registry *strategy.Registry,
	riskMonitor *risk.Monitor,
	engine *evolution.Engine,
	ledger IncomeRecorder,
	cfg Config,
	logger *slog.Logger,
) *Scheduler {
	if cfg.ExecTimeout <= 0 {
		cfg.ExecTimeout = 2 * time.Minute
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 60 * time.Second
	}
	return &Scheduler{
		registry:       registry,
		risk:           riskMonitor,
		evolution:      engine,
		ledger:         ledger,
		cfg:            cfg,
		logger:         logger.With(slog.String("component", "scheduler")),
		lastVolatility: 0.3,
	}
}

// CycleTypeFor maps a cycle count to its work type: every 20th cycle is
// a portfolio review, every 10th an opportunity scan, every 5th a risk
// assessment, the rest market analysis.
func CycleTypeFor(count int) domain.CycleType {
	switch {
	case count%20 == 0:
		return domain.CyclePortfolioReview
	case count%10 == 0:
		return domain.CycleOpportunityScan
	case count%5 == 0:
		return domain.CycleRiskAssessment
	default:
		return domain.CycleMarketAnalysis
	}
}

// CycleDuration returns the post-cycle wait for a cycle type, shortened
// 30% in volatile markets (v > 0.5) and stretched 30% in calm ones
// (v < 0.2). Unknown cycle types get the market-analysis default.
func CycleDuration(ct domain.CycleType, volatility float64) time.Duration {
	d, ok := baseDurations[ct]
	if !ok {
		d = baseDurations[domain.CycleMarketAnalysis]
	}
	switch {
	case volatility > 0.5:
		d = time.Duration(math.Round(float64(d) * 0.7))
	case volatility < 0.2:
		d = time.Duration(math.Round(float64(d) * 1.3))
	}
	return d
}

// Run executes the control loop until the context is cancelled. A cycle
// error waits out the error backoff instead of the cycle cadence; the
// loop itself only ever stops with the context.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "control loop starting")

	for {
		s.mu.Lock()
		s.cycleCount++
		count := s.cycleCount
		s.mu.Unlock()

		ct := CycleTypeFor(count)
		s.logger.InfoContext(ctx, "cycle starting",
			slog.Int("cycle", count),
			slog.String("type", string(ct)),
		)

		wait := CycleDuration(ct, s.LastVolatility())
		if err := s.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.WarnContext(ctx, "cycle failed",
				slog.Int("cycle", count),
				slog.String("error", err.Error()),
			)
			wait = s.cfg.ErrorBackoff
		}

		s.logger.InfoContext(ctx, "cycle complete",
			slog.Int("cycle", count),
			slog.Duration("next_in", wait),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// runCycle executes every registered strategy once under a fresh risk
// guard. An emergency stop raised mid-cycle skips the remaining
// strategies for this cycle only.
func (s *Scheduler) runCycle(ctx context.Context) error {
	guard := s.risk.Guard()

	var firstErr error
	for _, st := range s.registry.List() {
		if guard.Halted() {
			s.logger.WarnContext(ctx, "cycle halted, skipping remaining strategies",
				slog.String("next_strategy", st),
			)
			break
		}
		if err := s.executeStrategy(ctx, guard, st); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.evolution.RecordFailure(st)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Scheduler) executeStrategy(ctx context.Context, guard *risk.CycleGuard, strategyType string) error {
	exec, err := s.registry.Get(strategyType)
	if err != nil {
		return err
	}

	return guard.Run(ctx, strategyType, func(ctx context.Context) error {
		execCtx, cancel := context.WithTimeout(ctx, s.cfg.ExecTimeout)
		defer cancel()

		res, err := exec.Execute(execCtx, s.evolution.Parameters(strategyType))
		if err != nil {
			return err
		}
		if !res.Valid() {
			return fmt.Errorf("strategy %s: %w: status %q", strategyType, domain.ErrBadExecutorResult, res.Status)
		}
		if res.Status == domain.ExecStatusError {
			return fmt.Errorf("strategy %s: execution reported error", strategyType)
		}

		s.settle(ctx, strategyType, res)
		return nil
	})
}

// settle records a successful execution: performance sample for the
// evolution engine, realized revenue to the ledger, and the volatility
// reading for cadence adjustment.
func (s *Scheduler) settle(ctx context.Context, strategyType string, res domain.ExecutionResult) {
	vol := s.LastVolatility()
	if v, ok := res.Metadata["volatility"]; ok {
		vol = v
		s.mu.Lock()
		s.lastVolatility = v
		s.mu.Unlock()
	}

	s.evolution.Record(domain.PerformanceMetric{
		StrategyType:  strategyType,
		Revenue:       res.Revenue,
		ExecutionTime: res.ExecutionTime,
		Success:       true,
		MarketConditions: map[string]float64{
			"volatility": vol,
		},
	})

	if res.Revenue > 0 && s.ledger != nil {
		if err := s.ledger.RecordIncome(ctx, res.Revenue, strategyType, nil); err != nil {
			s.logger.WarnContext(ctx, "ledger record failed",
				slog.String("strategy", strategyType),
				slog.String("error", err.Error()),
			)
		}
	}
}

// LastVolatility returns the most recent volatility reading.
func (s *Scheduler) LastVolatility() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastVolatility
}

// CycleCount returns how many cycles have started.
func (s *Scheduler) CycleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycleCount
}

// Status is the dashboard view of the loop.
type Status struct {
	CycleCount     int              `json:"cycle_count"`
	NextCycleType  domain.CycleType `json:"next_cycle_type"`
	LastVolatility float64          `json:"last_volatility"`
	RiskScore      float64          `json:"risk_score"`
	Strategies     []string         `json:"strategies"`
}

// Snapshot assembles the loop status payload.
func (s *Scheduler) Snapshot() Status {
	s.mu.Lock()
	count := s.cycleCount
	vol := s.lastVolatility
	s.mu.Unlock()

	return Status{
		CycleCount:     count,
		NextCycleType:  CycleTypeFor(count + 1),
		LastVolatility: vol,
		RiskScore:      s.risk.Score(),
		Strategies:     s.registry.List(),
	}
}
