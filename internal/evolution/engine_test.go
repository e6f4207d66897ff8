package evolution

import (
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"testing"

	"github.com/phindlabs/revloop/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(seed int64) *Engine {
	return New(DefaultConfig(), testLogger(), WithRand(rand.New(rand.NewSource(seed))))
}

func sample(strategy string, revenue, execTime float64, success bool) domain.PerformanceMetric {
	return domain.PerformanceMetric{
		StrategyType:  strategy,
		Revenue:       revenue,
		ExecutionTime: execTime,
		Success:       success,
	}
}

func TestInitialWeights(t *testing.T) {
	e := newTestEngine(1)
	w := e.Weights()
	if len(w) != len(StrategyOrder) {
		t.Fatalf("got %d weights, want %d", len(w), len(StrategyOrder))
	}
	for _, s := range StrategyOrder {
		if w[s] != 1.0 {
			t.Errorf("weight[%s] = %v, want 1.0", s, w[s])
		}
	}
}

func TestAdaptationFiresOnThresholdMultiples(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdaptationThreshold = 5
	e := New(cfg, testLogger(), WithRand(rand.New(rand.NewSource(2))))

	// 4 samples: below the threshold, weights untouched.
	for i := 0; i < 4; i++ {
		e.Record(sample("arbitrage_trading", 500, 10, true))
	}
	if w := e.Weights()["arbitrage_trading"]; w != 1.0 {
		t.Fatalf("weight moved before threshold: %v", w)
	}

	// 5th sample completes the window: EMA toward avg/100 = 5.0, clamped.
	e.Record(sample("arbitrage_trading", 500, 10, true))
	w := e.Weights()["arbitrage_trading"]
	want := 1.0*(1-0.1) + 5.0*0.1 // 1.4
	if w != want {
		t.Fatalf("weight after adaptation = %v, want %v", w, want)
	}

	// Samples 6-9 do not retrigger; only the 10th does.
	for i := 0; i < 4; i++ {
		e.Record(sample("arbitrage_trading", 500, 10, true))
	}
	if got := e.Weights()["arbitrage_trading"]; got != want {
		t.Fatalf("weight moved between multiples: %v", got)
	}
	e.Record(sample("arbitrage_trading", 500, 10, true))
	if got := e.Weights()["arbitrage_trading"]; got == want {
		t.Fatal("weight should move again at the next threshold multiple")
	}
}

func TestAbsentStrategiesKeepTheirWeight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdaptationThreshold = 3
	e := New(cfg, testLogger(), WithRand(rand.New(rand.NewSource(3))))

	for i := 0; i < 3; i++ {
		e.Record(sample("content_creation", 900, 21600, true))
	}
	w := e.Weights()
	if w["yield_farming"] != 1.0 || w["grant_writing"] != 1.0 {
		t.Errorf("strategies absent from the window moved: %+v", w)
	}
	if w["content_creation"] == 1.0 {
		t.Error("active strategy weight should have moved")
	}
}

func TestWeightClamping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdaptationThreshold = 2
	e := New(cfg, testLogger(), WithRand(rand.New(rand.NewSource(4))))

	// Huge revenues push the EMA toward its upper clamp.
	for i := 0; i < 200; i++ {
		e.Record(sample("arbitrage_trading", 1e6, 1, true))
	}
	if w := e.Weights()["arbitrage_trading"]; w > 3.0 {
		t.Errorf("weight %v exceeds upper clamp 3.0", w)
	}

	// Zero revenue decays toward the lower clamp.
	e2 := New(cfg, testLogger(), WithRand(rand.New(rand.NewSource(5))))
	for i := 0; i < 500; i++ {
		e2.RecordFailure("arbitrage_trading")
	}
	if w := e2.Weights()["arbitrage_trading"]; w < 0.1 {
		t.Errorf("weight %v below lower clamp 0.1", w)
	}
}

func TestDNAStaysClamped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdaptationThreshold = 2
	e := New(cfg, testLogger(), WithRand(rand.New(rand.NewSource(6))))

	strategies := []string{"arbitrage_trading", "yield_farming", "content_creation"}
	for i := 0; i < 2000; i++ {
		s := strategies[i%len(strategies)]
		// Alternate good and bad fitness to hit both mutation branches.
		revenue := 0.0
		if i%2 == 0 {
			revenue = 10000
		}
		e.Record(sample(s, revenue, 1, revenue > 0))
	}

	for _, s := range strategies {
		for p, v := range e.Parameters(s) {
			if v < 0.1 || v > 2.0 {
				t.Errorf("%s.%s = %v outside [0.1, 2.0]", s, p, v)
			}
		}
	}
}

func TestParametersReturnsCopy(t *testing.T) {
	e := newTestEngine(7)
	p := e.Parameters("arbitrage_trading")
	if p == nil {
		t.Fatal("arbitrage_trading should carry DNA")
	}
	p["risk_tolerance"] = 99
	if e.Parameters("arbitrage_trading")["risk_tolerance"] == 99 {
		t.Error("Parameters must not expose internal state")
	}
	if e.Parameters("grant_writing") != nil {
		t.Error("grant_writing carries no DNA")
	}
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		name       string
		weights    map[string]float64
		volatility float64
		want       string
	}{
		{
			name:       "equal weights tie-break to first",
			volatility: 0.4,
			want:       "arbitrage_trading",
		},
		{
			name:       "high volatility boosts arbitrage",
			weights:    map[string]float64{"market_making": 1.4},
			volatility: 0.6,
			want:       "arbitrage_trading", // 1.0*1.5 beats 1.4
		},
		{
			name:       "low volatility boosts yield farming",
			weights:    map[string]float64{"yield_farming": 1.0, "grant_writing": 1.2},
			volatility: 0.2,
			want:       "yield_farming", // 1.0*1.3 beats 1.2
		},
		{
			name:       "dominant weight wins regardless",
			weights:    map[string]float64{"content_creation": 2.5},
			volatility: 0.6,
			want:       "content_creation",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(8)
			if tt.weights != nil {
				e.mu.Lock()
				for k, v := range tt.weights {
					e.weights[k] = v
				}
				e.mu.Unlock()
			}
			if got := e.Recommend(tt.volatility); got != tt.want {
				t.Errorf("Recommend(%v) = %q, want %q", tt.volatility, got, tt.want)
			}
		})
	}
}

func TestRecordFailureShape(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdaptationThreshold = 100 // keep adaptation out of the way
	e := New(cfg, testLogger(), WithRand(rand.New(rand.NewSource(9))))

	e.RecordFailure("yield_farming")
	s := e.Summarize(0.4)
	if s.TotalSamples != 1 {
		t.Fatalf("samples = %d, want 1", s.TotalSamples)
	}
	if s.OverallSuccessRate != 0 {
		t.Errorf("success rate = %v, want 0", s.OverallSuccessRate)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdaptationThreshold = 2
	e := New(cfg, testLogger(), WithRand(rand.New(rand.NewSource(10))))
	for i := 0; i < 20; i++ {
		e.Record(sample("arbitrage_trading", 300, 5, true))
	}

	data, err := e.ExportState()
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	fresh := newTestEngine(11)
	if err := fresh.ImportState(data); err != nil {
		t.Fatalf("import: %v", err)
	}

	if got, want := fresh.Weights()["arbitrage_trading"], e.Weights()["arbitrage_trading"]; got != want {
		t.Errorf("imported weight = %v, want %v", got, want)
	}
	wantDNA := e.Parameters("arbitrage_trading")
	gotDNA := fresh.Parameters("arbitrage_trading")
	for k, v := range wantDNA {
		if gotDNA[k] != v {
			t.Errorf("imported dna %s = %v, want %v", k, gotDNA[k], v)
		}
	}
}

func TestImportClampsOutOfRangeValues(t *testing.T) {
	e := newTestEngine(14)

	doc := `{
		"strategy_weights": {"arbitrage_trading": 50, "yield_farming": 0.001},
		"strategy_dna": {
			"arbitrage_trading": {"risk_tolerance": 9.5, "position_size_multiplier": -3}
		}
	}`
	if err := e.ImportState([]byte(doc)); err != nil {
		t.Fatalf("import: %v", err)
	}

	w := e.Weights()
	if w["arbitrage_trading"] != 3.0 {
		t.Errorf("oversized weight = %v, want clamped to 3.0", w["arbitrage_trading"])
	}
	if w["yield_farming"] != 0.1 {
		t.Errorf("undersized weight = %v, want clamped to 0.1", w["yield_farming"])
	}
	dna := e.Parameters("arbitrage_trading")
	if dna["risk_tolerance"] != 2.0 {
		t.Errorf("oversized dna = %v, want clamped to 2.0", dna["risk_tolerance"])
	}
	if dna["position_size_multiplier"] != 0.1 {
		t.Errorf("negative dna = %v, want clamped to 0.1", dna["position_size_multiplier"])
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	e := newTestEngine(12)
	if err := e.ImportState([]byte("{not json")); err == nil {
		t.Fatal("garbage input should error")
	}
}

func TestHistoryStaysBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdaptationThreshold = 5
	e := New(cfg, testLogger(), WithRand(rand.New(rand.NewSource(15))))

	for i := 0; i < 1000; i++ {
		e.Record(sample("arbitrage_trading", 100, 60, true))
	}

	e.mu.Lock()
	retained := len(e.history)
	e.mu.Unlock()
	if limit := historyWindowsKept * cfg.AdaptationThreshold; retained > limit {
		t.Errorf("retained %d samples, want at most %d", retained, limit)
	}

	// Aggregate stats still cover every sample ever recorded.
	s := e.Summarize(0.4)
	if s.TotalSamples != 1000 {
		t.Errorf("total samples = %d, want 1000", s.TotalSamples)
	}
	if s.LearningCycles != 200 {
		t.Errorf("cycles = %d, want 200", s.LearningCycles)
	}
	if s.OverallSuccessRate != 1.0 {
		t.Errorf("success rate = %v, want 1.0", s.OverallSuccessRate)
	}

	data, err := e.ExportState()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(string(data), `"total_metrics": 1000`) {
		t.Errorf("export should report all-time metrics:\n%s", data)
	}
}

func TestSummarize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AdaptationThreshold = 10
	e := New(cfg, testLogger(), WithRand(rand.New(rand.NewSource(13))))

	for i := 0; i < 25; i++ {
		e.Record(sample("arbitrage_trading", 100, 60, i%2 == 0))
	}

	s := e.Summarize(0.4)
	if s.TotalSamples != 25 {
		t.Errorf("samples = %d, want 25", s.TotalSamples)
	}
	if s.LearningCycles != 2 {
		t.Errorf("cycles = %d, want 2", s.LearningCycles)
	}
	// 13 successes of 25.
	if want := 13.0 / 25.0; s.OverallSuccessRate != want {
		t.Errorf("success rate = %v, want %v", s.OverallSuccessRate, want)
	}
	if s.Recommended == "" {
		t.Error("summary should carry a recommendation")
	}
	if s.LastSample.IsZero() {
		t.Error("summary should carry the last sample time")
	}
}
