package strategy

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/phindlabs/revloop/internal/domain"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	exec := ExecutorFunc(func(context.Context, map[string]float64) (domain.ExecutionResult, error) {
		return domain.ExecutionResult{Status: domain.ExecStatusCompleted}, nil
	})
	r.Register("arbitrage_trading", exec)
	r.Register("yield_farming", exec)

	if _, err := r.Get("arbitrage_trading"); err != nil {
		t.Fatalf("get registered: %v", err)
	}
	if _, err := r.Get("missing"); !errors.Is(err, domain.ErrUnknownStrategy) {
		t.Errorf("get missing err = %v, want ErrUnknownStrategy", err)
	}

	names := r.List()
	if len(names) != 2 || names[0] != "arbitrage_trading" || names[1] != "yield_farming" {
		t.Errorf("list = %v, want sorted pair", names)
	}
}

func TestSimulatedAlwaysSucceedsAtFullRate(t *testing.T) {
	s := NewSimulated("arbitrage_trading", 1.0, rand.New(rand.NewSource(1)))
	for i := 0; i < 100; i++ {
		res, err := s.Execute(context.Background(), nil)
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if !res.Valid() {
			t.Fatalf("invalid status %q", res.Status)
		}
		if res.Status != domain.ExecStatusCompleted {
			t.Fatalf("run %d failed at success rate 1.0", i)
		}
		if res.Revenue < 75 || res.Revenue > 225 {
			t.Errorf("revenue %v outside jitter band [75, 225]", res.Revenue)
		}
		if res.ExecutionTime < 5 || res.ExecutionTime > 60 {
			t.Errorf("execution time %v outside [5, 60]", res.ExecutionTime)
		}
		if v := res.Metadata["volatility"]; v < 0.1 || v > 0.8 {
			t.Errorf("volatility %v outside [0.1, 0.8]", v)
		}
	}
}

func TestSimulatedAlwaysFailsAtZeroRate(t *testing.T) {
	s := NewSimulated("yield_farming", 0, rand.New(rand.NewSource(2)))
	for i := 0; i < 50; i++ {
		res, err := s.Execute(context.Background(), nil)
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if res.Status != domain.ExecStatusError || res.Revenue != 0 {
			t.Fatalf("run %d = %+v, want zero-revenue error", i, res)
		}
	}
}

func TestSimulatedAppliesPositionMultiplier(t *testing.T) {
	base := NewSimulated("market_making", 1.0, rand.New(rand.NewSource(3)))
	scaled := NewSimulated("market_making", 1.0, rand.New(rand.NewSource(3)))

	r1, _ := base.Execute(context.Background(), nil)
	r2, _ := scaled.Execute(context.Background(), map[string]float64{"position_size_multiplier": 2.0})
	if r2.Revenue != r1.Revenue*2 {
		t.Errorf("scaled revenue = %v, want %v", r2.Revenue, r1.Revenue*2)
	}
}

func TestSimulatedHonoursCancelledContext(t *testing.T) {
	s := NewSimulated("arbitrage_trading", 1.0, rand.New(rand.NewSource(4)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Execute(ctx, nil); err == nil {
		t.Fatal("cancelled context should error")
	}
}
