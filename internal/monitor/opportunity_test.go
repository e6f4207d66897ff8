package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/phindlabs/revloop/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticFeed struct {
	quotes []domain.Quote
	err    error
}

func (f *staticFeed) Fetch(context.Context) ([]domain.Quote, error) {
	return f.quotes, f.err
}

func quote(pair, venue string, price float64) domain.Quote {
	return domain.Quote{Pair: pair, Venue: venue, Price: price, Timestamp: time.Now()}
}

func TestEvaluateArbitrage(t *testing.T) {
	m := New(&staticFeed{}, Config{}, testLogger())

	tests := []struct {
		name     string
		quotes   []domain.Quote
		want     bool
		wantRisk string
	}{
		{
			name:   "spread under threshold",
			quotes: []domain.Quote{quote("BTC/USDT", "a", 65000), quote("BTC/USDT", "b", 65600)},
			want:   false, // 0.92%
		},
		{
			name:     "low risk spread",
			quotes:   []domain.Quote{quote("BTC/USDT", "a", 65000), quote("BTC/USDT", "b", 66300)},
			want:     true, // 2%
			wantRisk: "low",
		},
		{
			name:     "medium risk spread",
			quotes:   []domain.Quote{quote("BTC/USDT", "a", 65000), quote("BTC/USDT", "b", 67600)},
			want:     true, // 4%
			wantRisk: "medium",
		},
		{
			name:   "single venue",
			quotes: []domain.Quote{quote("BTC/USDT", "a", 65000)},
			want:   false,
		},
		{
			name:   "zero prices ignored",
			quotes: []domain.Quote{quote("BTC/USDT", "a", 0), quote("BTC/USDT", "b", 65000)},
			want:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp, ok := m.EvaluateArbitrage("BTC/USDT", tt.quotes)
			if ok != tt.want {
				t.Fatalf("detected = %v, want %v", ok, tt.want)
			}
			if ok && opp.RiskLevel != tt.wantRisk {
				t.Errorf("risk = %q, want %q", opp.RiskLevel, tt.wantRisk)
			}
		})
	}
}

func TestEvaluateArbitrageProfitEstimate(t *testing.T) {
	m := New(&staticFeed{}, Config{}, testLogger())
	opp, ok := m.EvaluateArbitrage("ETH/USDC", []domain.Quote{
		quote("ETH/USDC", "a", 1000),
		quote("ETH/USDC", "b", 1020),
	})
	if !ok {
		t.Fatal("2% spread should register")
	}
	if got, want := opp.EstimatedProfit, 0.02-0.002; got != want {
		t.Errorf("estimated profit = %v, want %v", got, want)
	}
	if len(opp.ActionItems) != 2 {
		t.Errorf("action items = %v", opp.ActionItems)
	}
}

func TestEvaluateTrend(t *testing.T) {
	m := New(&staticFeed{}, Config{}, testLogger())

	weak := domain.Quote{Pair: "BTC/USDT", Price: 65000, TrendStrength: 0.5, TrendUp: true}
	if _, ok := m.EvaluateTrend(weak); ok {
		t.Error("0.5 strength should not register")
	}

	strong := domain.Quote{Pair: "BTC/USDT", Price: 65000, TrendStrength: 0.7, TrendUp: false}
	opp, ok := m.EvaluateTrend(strong)
	if !ok {
		t.Fatal("0.7 strength should register")
	}
	if opp.Direction != "down" || opp.RiskLevel != "medium" {
		t.Errorf("opportunity = %+v", opp)
	}
}

func TestAlertRingCap(t *testing.T) {
	feed := &staticFeed{quotes: []domain.Quote{
		quote("BTC/USDT", "a", 65000),
		quote("BTC/USDT", "b", 67000), // ~3.1% spread, always detected
	}}
	m := New(feed, Config{}, testLogger())

	for i := 0; i < 150; i++ {
		if err := m.RunOnce(context.Background()); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}
	all := m.Opportunities("", maxAlerts+50)
	if len(all) != maxAlerts {
		t.Errorf("ring holds %d alerts, want %d", len(all), maxAlerts)
	}
}

func TestMarkActioned(t *testing.T) {
	feed := &staticFeed{quotes: []domain.Quote{
		quote("BTC/USDT", "a", 65000),
		quote("BTC/USDT", "b", 67000),
	}}
	m := New(feed, Config{}, testLogger())
	if err := m.RunOnce(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}

	opps := m.Opportunities(domain.OpportunityArbitrage, 1)
	if len(opps) != 1 {
		t.Fatalf("opportunities = %v", opps)
	}
	id := opps[0].ID

	if !m.MarkActioned(id, domain.OpportunityActioned) {
		t.Fatal("known id should mark")
	}
	if m.MarkActioned("missing", domain.OpportunityActioned) {
		t.Error("unknown id should not mark")
	}
	if m.MarkActioned(id, "deleted") {
		t.Error("unknown action should be rejected")
	}

	s := m.Summarize()
	if s.Actioned != 1 || s.Active != 0 {
		t.Errorf("summary = %+v", s)
	}
}

type captureSink struct {
	mu   sync.Mutex
	sent []domain.Opportunity
	err  error
}

func (c *captureSink) Send(_ context.Context, o domain.Opportunity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, o)
	return c.err
}

func TestAlertFanOutSurvivesSinkFailure(t *testing.T) {
	feed := &staticFeed{quotes: []domain.Quote{
		quote("BTC/USDT", "a", 65000),
		quote("BTC/USDT", "b", 67000),
	}}
	bad := &captureSink{err: errors.New("webhook 500")}
	good := &captureSink{}
	m := New(feed, Config{}, testLogger(), WithAlertSink(bad), WithAlertSink(good))

	if err := m.RunOnce(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}
	if len(good.sent) != 1 {
		t.Errorf("good sink got %d alerts, want 1", len(good.sent))
	}
	if len(m.Opportunities("", 10)) != 1 {
		t.Error("alert should be registered despite the failing sink")
	}
}

type captureHandoff struct {
	mu    sync.Mutex
	descs []string
}

func (c *captureHandoff) Submit(_ context.Context, description, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.descs = append(c.descs, description)
	return nil
}

func TestArbitrageHandsOffToTaskPool(t *testing.T) {
	feed := &staticFeed{quotes: []domain.Quote{
		quote("BTC/USDT", "a", 65000),
		quote("BTC/USDT", "b", 67000),
		{Pair: "ETH/USDC", Venue: "a", Price: 3200, TrendStrength: 0.9, TrendUp: true},
	}}
	h := &captureHandoff{}
	m := New(feed, Config{}, testLogger(), WithTaskHandoff(h))

	if err := m.RunOnce(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}
	// Only the arbitrage alert is handed off, not the trend alert.
	if len(h.descs) != 1 {
		t.Fatalf("handoffs = %v, want 1", h.descs)
	}
}

func TestUpdateThresholds(t *testing.T) {
	m := New(&staticFeed{}, Config{}, testLogger())
	got := m.UpdateThresholds(map[string]float64{"price_differential": 0.05})
	if got["price_differential"] != 0.05 {
		t.Errorf("thresholds = %v", got)
	}
	if got["trend_strength_min"] != 0.6 {
		t.Errorf("untouched threshold changed: %v", got)
	}

	// 2% spread no longer registers under the raised threshold.
	if _, ok := m.EvaluateArbitrage("BTC/USDT", []domain.Quote{
		quote("BTC/USDT", "a", 1000),
		quote("BTC/USDT", "b", 1020),
	}); ok {
		t.Error("spread under the new threshold should not register")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	feed := &staticFeed{}
	m := New(feed, Config{Interval: 5 * time.Millisecond}, testLogger())

	ctx := context.Background()
	m.Start(ctx)
	m.Start(ctx) // no-op
	time.Sleep(20 * time.Millisecond)
	m.Stop()
	m.Stop() // no-op

	// Restart works after a stop.
	m.Start(ctx)
	m.Stop()
}

func TestSimulatedFeedShape(t *testing.T) {
	f := NewSimulatedFeed(rand.New(rand.NewSource(42)))
	quotes, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(quotes) != 6 {
		t.Fatalf("got %d quotes, want 3 pairs x 2 venues", len(quotes))
	}
	for _, q := range quotes {
		if q.Price <= 0 {
			t.Errorf("quote %s/%s has price %v", q.Pair, q.Venue, q.Price)
		}
	}
}
