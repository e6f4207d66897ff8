package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/phindlabs/revloop/internal/domain"
	"github.com/phindlabs/revloop/internal/evolution"
	"github.com/phindlabs/revloop/internal/risk"
	"github.com/phindlabs/revloop/internal/strategy"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine() *evolution.Engine {
	return evolution.New(evolution.DefaultConfig(), testLogger(),
		evolution.WithRand(rand.New(rand.NewSource(1))))
}

type captureRecorder struct {
	amounts []float64
	labels  []string
}

func (c *captureRecorder) RecordIncome(_ context.Context, amount float64, label string, _ map[string]string) error {
	c.amounts = append(c.amounts, amount)
	c.labels = append(c.labels, label)
	return nil
}

func TestCycleTypeFor(t *testing.T) {
	tests := []struct {
		count int
		want  domain.CycleType
	}{
		{1, domain.CycleMarketAnalysis},
		{4, domain.CycleMarketAnalysis},
		{5, domain.CycleRiskAssessment},
		{10, domain.CycleOpportunityScan},
		{15, domain.CycleRiskAssessment},
		{20, domain.CyclePortfolioReview},
		{40, domain.CyclePortfolioReview},
		{50, domain.CycleOpportunityScan},
	}
	for _, tt := range tests {
		if got := CycleTypeFor(tt.count); got != tt.want {
			t.Errorf("CycleTypeFor(%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}

func TestCycleDuration(t *testing.T) {
	tests := []struct {
		name       string
		ct         domain.CycleType
		volatility float64
		want       time.Duration
	}{
		{"market analysis moderate", domain.CycleMarketAnalysis, 0.3, 180 * time.Second},
		{"market analysis volatile", domain.CycleMarketAnalysis, 0.6, 126 * time.Second},
		{"market analysis calm", domain.CycleMarketAnalysis, 0.1, 234 * time.Second},
		{"portfolio review moderate", domain.CyclePortfolioReview, 0.3, 300 * time.Second},
		{"risk assessment volatile", domain.CycleRiskAssessment, 0.9, 84 * time.Second},
		{"trade execution moderate", domain.CycleTradeExecution, 0.3, 90 * time.Second},
		{"opportunity scan calm", domain.CycleOpportunityScan, 0.1, 312 * time.Second},
		{"unknown type falls back", domain.CycleType("bogus"), 0.3, 180 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CycleDuration(tt.ct, tt.volatility); got != tt.want {
				t.Errorf("CycleDuration(%v, %v) = %v, want %v", tt.ct, tt.volatility, got, tt.want)
			}
		})
	}
}

func TestRunCycleRecordsSuccess(t *testing.T) {
	reg := strategy.NewRegistry()
	reg.Register("arbitrage_trading", strategy.ExecutorFunc(
		func(context.Context, map[string]float64) (domain.ExecutionResult, error) {
			return domain.ExecutionResult{
				Status:        domain.ExecStatusCompleted,
				Revenue:       125,
				ExecutionTime: 12,
				Metadata:      map[string]float64{"volatility": 0.55},
			}, nil
		}))

	mon := risk.NewMonitor(nil, testLogger())
	eng := newEngine()
	rec := &captureRecorder{}
	s := New(reg, mon, eng, rec, Config{}, testLogger())

	if err := s.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if len(rec.amounts) != 1 || rec.amounts[0] != 125 || rec.labels[0] != "arbitrage_trading" {
		t.Errorf("ledger got %v / %v", rec.amounts, rec.labels)
	}
	if got := s.LastVolatility(); got != 0.55 {
		t.Errorf("volatility = %v, want 0.55", got)
	}
	if sum := eng.Summarize(0.3); sum.TotalSamples != 1 || sum.OverallSuccessRate != 1 {
		t.Errorf("evolution summary = %+v", sum)
	}
}

func TestRunCycleRecordsFailure(t *testing.T) {
	cause := errors.New("venue down")
	reg := strategy.NewRegistry()
	reg.Register("yield_farming", strategy.ExecutorFunc(
		func(context.Context, map[string]float64) (domain.ExecutionResult, error) {
			return domain.ExecutionResult{}, cause
		}))

	mon := risk.NewMonitor(nil, testLogger())
	eng := newEngine()
	s := New(reg, mon, eng, nil, Config{}, testLogger())

	err := s.runCycle(context.Background())
	if err == nil || !errors.Is(err, cause) {
		t.Fatalf("runCycle err = %v, want wrapped %v", err, cause)
	}

	vs := mon.Violations()
	if len(vs) != 1 || vs[0].Metric != "operation_failure" {
		t.Errorf("violations = %+v, want one operation_failure", vs)
	}
	sum := eng.Summarize(0.3)
	if sum.TotalSamples != 1 || sum.OverallSuccessRate != 0 {
		t.Errorf("failure sample not recorded: %+v", sum)
	}
}

func TestRunCycleRejectsBadExecutorResult(t *testing.T) {
	reg := strategy.NewRegistry()
	reg.Register("market_making", strategy.ExecutorFunc(
		func(context.Context, map[string]float64) (domain.ExecutionResult, error) {
			return domain.ExecutionResult{Status: "maybe"}, nil
		}))

	s := New(reg, risk.NewMonitor(nil, testLogger()), newEngine(), nil, Config{}, testLogger())
	err := s.runCycle(context.Background())
	if !errors.Is(err, domain.ErrBadExecutorResult) {
		t.Fatalf("err = %v, want ErrBadExecutorResult", err)
	}
}

func TestRunCycleHaltStopsRemainingStrategies(t *testing.T) {
	mon := risk.NewMonitor(nil, testLogger())

	var ran []string
	halting := func(name string) strategy.ExecutorFunc {
		return func(ctx context.Context, _ map[string]float64) (domain.ExecutionResult, error) {
			ran = append(ran, name)
			// First strategy trips the loss limit, halting the cycle.
			mon.Check(ctx, "loss_limit", 0.5)
			return domain.ExecutionResult{Status: domain.ExecStatusCompleted, ExecutionTime: 1}, nil
		}
	}
	plain := func(name string) strategy.ExecutorFunc {
		return func(context.Context, map[string]float64) (domain.ExecutionResult, error) {
			ran = append(ran, name)
			return domain.ExecutionResult{Status: domain.ExecStatusCompleted, ExecutionTime: 1}, nil
		}
	}

	reg := strategy.NewRegistry()
	reg.Register("arbitrage_trading", halting("arbitrage_trading"))
	reg.Register("yield_farming", plain("yield_farming"))

	s := New(reg, mon, newEngine(), nil, Config{}, testLogger())
	if err := s.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if len(ran) != 1 || ran[0] != "arbitrage_trading" {
		t.Errorf("ran %v, want only arbitrage_trading before the halt", ran)
	}

	// The next cycle starts with a fresh guard and runs everything.
	ran = nil
	if err := s.runCycle(context.Background()); err != nil {
		t.Fatalf("second runCycle: %v", err)
	}
	if len(ran) != 1 {
		t.Fatalf("second cycle ran %v", ran)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	reg := strategy.NewRegistry()
	reg.Register("arbitrage_trading", strategy.ExecutorFunc(
		func(context.Context, map[string]float64) (domain.ExecutionResult, error) {
			return domain.ExecutionResult{Status: domain.ExecStatusCompleted, ExecutionTime: 1}, nil
		}))

	s := New(reg, risk.NewMonitor(nil, testLogger()), newEngine(), nil, Config{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	if s.CycleCount() < 1 {
		t.Error("at least one cycle should have started")
	}
}

func TestSnapshot(t *testing.T) {
	reg := strategy.NewRegistry()
	reg.Register("arbitrage_trading", strategy.ExecutorFunc(
		func(context.Context, map[string]float64) (domain.ExecutionResult, error) {
			return domain.ExecutionResult{Status: domain.ExecStatusCompleted, ExecutionTime: 1}, nil
		}))
	s := New(reg, risk.NewMonitor(nil, testLogger()), newEngine(), nil, Config{}, testLogger())

	st := s.Snapshot()
	if st.CycleCount != 0 {
		t.Errorf("cycle count = %d, want 0", st.CycleCount)
	}
	if st.NextCycleType != domain.CycleMarketAnalysis {
		t.Errorf("next cycle type = %v", st.NextCycleType)
	}
	if st.LastVolatility != 0.3 {
		t.Errorf("initial volatility = %v, want 0.3", st.LastVolatility)
	}
	if len(st.Strategies) != 1 {
		t.Errorf("strategies = %v", st.Strategies)
	}
}
