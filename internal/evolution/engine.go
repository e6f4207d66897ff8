// Package evolution adapts strategy parameters and selection weights from
// recorded execution performance. Strategies carry a "DNA" of tunable
// parameters that drifts via Gaussian mutation and crossover with the
// best-performing strategy; selection weights follow an exponential moving
// average of realized revenue.
package evolution

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/phindlabs/revloop/internal/domain"
)

// StrategyOrder is the canonical iteration order. Ties in weight-based
// selection resolve to the earliest entry.
var StrategyOrder = []string{
	"arbitrage_trading",
	"yield_farming",
	"grant_writing",
	"content_creation",
	"market_making",
}

// Config holds the engine's learning parameters.
type Config struct {
	LearningRate        float64
	AdaptationThreshold int
	MutationRate        float64
	CrossoverRate       float64
	GeneticAlgorithm    bool
}

// DefaultConfig returns the standard learning parameters.
func DefaultConfig() Config {
	return Config{
		LearningRate:        0.1,
		AdaptationThreshold: 10,
		MutationRate:        0.05,
		CrossoverRate:       0.8,
		GeneticAlgorithm:    true,
	}
}

const (
	dnaMin    = 0.1
	dnaMax    = 2.0
	weightMin = 0.1
	weightMax = 3.0
)

func defaultDNA() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"arbitrage_trading": {
			"risk_tolerance":           0.05,
			"position_size_multiplier": 1.0,
			"execution_speed":          0.8,
			"profit_threshold":         0.02,
		},
		"yield_farming": {
			"pool_selection_criteria": 0.7,
			"yield_threshold":         0.001,
			"diversification_factor":  0.6,
			"risk_assessment_weight":  0.8,
		},
		"content_creation": {
			"quality_vs_speed":          0.7,
			"topic_selection_weight":    0.8,
			"market_demand_sensitivity": 0.9,
			"pricing_optimization":      0.75,
		},
	}
}

// fitnessBaselines is the revenue-per-hour bar a strategy must clear to
// have its parameters reinforced rather than re-explored.
var fitnessBaselines = map[string]float64{
	"arbitrage_trading": 20.0,
	"yield_farming":     5.0,
	"grant_writing":     50.0,
	"content_creation":  30.0,
	"market_making":     15.0,
}

const defaultBaseline = 10.0

// historyWindowsKept bounds retained samples. Adaptation only reads the
// most recent window; older samples fold into the running totals.
const historyWindowsKept = 10

// Engine is the adaptive learning core. All methods are safe for
// concurrent use.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	history []domain.PerformanceMetric
	weights map[string]float64
	dna     map[string]map[string]float64

	// Running totals over every sample ever recorded, including those
	// trimmed from history.
	samples    int
	revenueSum float64
	timeSum    float64
	successSum float64

	rng    *rand.Rand
	logger *slog.Logger
	now    func() time.Time
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithRand injects the random source. Tests seed this for determinism.
func WithRand(r *rand.Rand) Option { return func(e *Engine) { e.rng = r } }

// WithClock injects the time source.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// New creates an Engine with unit weights for every known strategy.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if cfg.AdaptationThreshold <= 0 {
		cfg.AdaptationThreshold = DefaultConfig().AdaptationThreshold
	}
	weights := make(map[string]float64, len(StrategyOrder))
	for _, s := range StrategyOrder {
		weights[s] = 1.0
	}
	e := &Engine{
		cfg:     cfg,
		weights: weights,
		dna:     defaultDNA(),
		logger:  logger.With(slog.String("component", "evolution")),
		now:     time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return e
}

// Record appends a performance sample. When the total sample count
// reaches a multiple of the adaptation threshold, one adaptation pass
// runs over the most recent window. Retained history is bounded;
// aggregate stats come from running totals.
func (e *Engine) Record(m domain.PerformanceMetric) {
	if m.Timestamp.IsZero() {
		m.Timestamp = e.now()
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history = append(e.history, m)
	e.samples++
	e.revenueSum += m.Revenue
	e.timeSum += m.ExecutionTime
	e.successSum += m.SuccessRate()
	e.logger.Info("recorded performance sample",
		slog.String("strategy", m.StrategyType),
		slog.Float64("revenue", m.Revenue),
		slog.Bool("success", m.Success),
	)

	if e.samples%e.cfg.AdaptationThreshold == 0 {
		e.adaptLocked()
	}
	if limit := historyWindowsKept * e.cfg.AdaptationThreshold; len(e.history) > limit {
		e.history = append(e.history[:0:0], e.history[len(e.history)-limit:]...)
	}
}

// RecordFailure appends a zero-revenue failed sample for the strategy.
func (e *Engine) RecordFailure(strategyType string) {
	e.Record(domain.PerformanceMetric{
		StrategyType:  strategyType,
		Revenue:       0,
		ExecutionTime: 1.0,
		Success:       false,
	})
}

func (e *Engine) adaptLocked() {
	e.logger.Info("adaptation pass starting", slog.Int("samples", e.samples))

	window := e.history[len(e.history)-e.cfg.AdaptationThreshold:]
	byType := make(map[string][]domain.PerformanceMetric)
	for _, m := range window {
		byType[m.StrategyType] = append(byType[m.StrategyType], m)
	}

	for _, s := range StrategyOrder {
		metrics, ok := byType[s]
		if !ok {
			continue
		}
		e.evolveLocked(s, metrics, len(byType))
	}

	e.updateWeightsLocked(window)
	e.logger.Info("adaptation pass complete")
}

// evolveLocked mutates one strategy's DNA based on window fitness.
// Strategies without a DNA entry (grant writing, market making) only
// participate via selection weights.
func (e *Engine) evolveLocked(strategyType string, metrics []domain.PerformanceMetric, typesInWindow int) {
	dna, ok := e.dna[strategyType]
	if !ok {
		return
	}

	var totalRevenue, totalTime, successSum float64
	for _, m := range metrics {
		totalRevenue += m.Revenue
		totalTime += m.ExecutionTime
		successSum += m.SuccessRate()
	}
	if totalTime < 1 {
		totalTime = 1
	}
	fitness := (totalRevenue / totalTime) * (successSum / float64(len(metrics)))

	baseline, ok := fitnessBaselines[strategyType]
	if !ok {
		baseline = defaultBaseline
	}

	if fitness > baseline {
		// Reinforce: small drift across every parameter.
		for _, p := range sortedKeys(dna) {
			dna[p] = clamp(dna[p]+e.rng.NormFloat64()*0.02, dnaMin, dnaMax)
		}
	} else {
		// Explore: occasional larger jumps.
		for _, p := range sortedKeys(dna) {
			if e.rng.Float64() < e.cfg.MutationRate {
				dna[p] = clamp(dna[p]+e.rng.NormFloat64()*0.1, dnaMin, dnaMax)
			}
		}
	}

	if e.cfg.GeneticAlgorithm && typesInWindow > 1 {
		e.crossoverLocked(strategyType, dna)
	}

	e.logger.Info("evolved strategy dna",
		slog.String("strategy", strategyType),
		slog.Float64("fitness", fitness),
		slog.Float64("baseline", baseline),
	)
}

// crossoverLocked averages shared parameters with the best-weighted
// strategy's DNA, parameter-wise at 50% probability.
func (e *Engine) crossoverLocked(strategyType string, dna map[string]float64) {
	best := StrategyOrder[0]
	for _, s := range StrategyOrder[1:] {
		if e.weights[s] > e.weights[best] {
			best = s
		}
	}
	if best == strategyType || e.rng.Float64() >= e.cfg.CrossoverRate {
		return
	}
	bestDNA, ok := e.dna[best]
	if !ok {
		return
	}
	for _, p := range sortedKeys(dna) {
		bv, shared := bestDNA[p]
		if shared && e.rng.Float64() < 0.5 {
			dna[p] = (dna[p] + bv) / 2
		}
	}
}

// updateWeightsLocked moves each strategy's selection weight toward its
// average window revenue (scaled to ~1.0 per $100) via an EMA. Strategies
// absent from the window keep their weight unchanged.
func (e *Engine) updateWeightsLocked(window []domain.PerformanceMetric) {
	revenues := make(map[string]float64)
	counts := make(map[string]int)
	for _, m := range window {
		revenues[m.StrategyType] += m.Revenue
		counts[m.StrategyType]++
	}
	for _, s := range StrategyOrder {
		n := counts[s]
		if n == 0 {
			continue
		}
		avg := revenues[s] / float64(n)
		w := e.weights[s]*(1-e.cfg.LearningRate) + (avg/100)*e.cfg.LearningRate
		e.weights[s] = clamp(w, weightMin, weightMax)
	}
}

// Recommend returns the strategy with the highest weight after adjusting
// for market volatility: arbitrage is favored in volatile markets
// (v > 0.5, x1.5), yield farming in calm ones (v < 0.3, x1.3). Ties go to
// the earliest strategy in the canonical order.
func (e *Engine) Recommend(volatility float64) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	best := ""
	bestWeight := -1.0
	for _, s := range StrategyOrder {
		w := e.weights[s]
		switch {
		case s == "arbitrage_trading" && volatility > 0.5:
			w *= 1.5
		case s == "yield_farming" && volatility < 0.3:
			w *= 1.3
		}
		if w > bestWeight {
			best = s
			bestWeight = w
		}
	}
	return best
}

// Parameters returns a copy of the strategy's current DNA, or nil when
// the strategy carries none.
func (e *Engine) Parameters(strategyType string) map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	dna, ok := e.dna[strategyType]
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(dna))
	for k, v := range dna {
		out[k] = v
	}
	return out
}

// Weights returns a copy of the current selection weights.
func (e *Engine) Weights() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]float64, len(e.weights))
	for k, v := range e.weights {
		out[k] = v
	}
	return out
}

// Summary is the dashboard view of the learning state.
type Summary struct {
	LearningCycles     int                           `json:"total_learning_cycles"`
	TotalSamples       int                           `json:"total_samples"`
	AvgRevenuePerHour  float64                       `json:"avg_revenue_per_hour"`
	OverallSuccessRate float64                       `json:"overall_success_rate"`
	Weights            map[string]float64            `json:"strategy_weights"`
	DNA                map[string]map[string]float64 `json:"strategy_dna"`
	MutationRate       float64                       `json:"mutation_rate"`
	CrossoverRate      float64                       `json:"crossover_rate"`
	LearningRate       float64                       `json:"learning_rate"`
	Recommended        string                        `json:"recommended_strategy"`
	LastSample         time.Time                     `json:"last_sample,omitzero"`
}

// Summarize assembles the learning summary using the given market
// volatility for the strategy recommendation.
func (e *Engine) Summarize(volatility float64) Summary {
	recommended := e.Recommend(volatility)

	e.mu.Lock()
	defer e.mu.Unlock()

	hours := e.timeSum / 3600
	if hours < 1 {
		hours = 1
	}
	samples := e.samples
	successRate := 0.0
	if samples > 0 {
		successRate = e.successSum / float64(samples)
	}

	s := Summary{
		LearningCycles:     samples / e.cfg.AdaptationThreshold,
		TotalSamples:       samples,
		AvgRevenuePerHour:  e.revenueSum / hours,
		OverallSuccessRate: successRate,
		Weights:            make(map[string]float64, len(e.weights)),
		DNA:                make(map[string]map[string]float64, len(e.dna)),
		MutationRate:       e.cfg.MutationRate,
		CrossoverRate:      e.cfg.CrossoverRate,
		LearningRate:       e.cfg.LearningRate,
		Recommended:        recommended,
	}
	for k, v := range e.weights {
		s.Weights[k] = v
	}
	for st, dna := range e.dna {
		cp := make(map[string]float64, len(dna))
		for k, v := range dna {
			cp[k] = v
		}
		s.DNA[st] = cp
	}
	if n := len(e.history); n > 0 {
		s.LastSample = e.history[n-1].Timestamp
	}
	return s
}

// learnedState is the export/import wire format for learned parameters.
type learnedState struct {
	Timestamp time.Time                     `json:"timestamp"`
	Weights   map[string]float64            `json:"strategy_weights"`
	DNA       map[string]map[string]float64 `json:"strategy_dna"`
	History   struct {
		TotalMetrics   int     `json:"total_metrics"`
		TotalRevenue   float64 `json:"total_revenue"`
		AvgSuccessRate float64 `json:"avg_success_rate"`
	} `json:"performance_history_summary"`
}

// ExportState serializes the learned weights and DNA for backup.
func (e *Engine) ExportState() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := learnedState{
		Timestamp: e.now(),
		Weights:   e.weights,
		DNA:       e.dna,
	}
	st.History.TotalMetrics = e.samples
	st.History.TotalRevenue = e.revenueSum
	if e.samples > 0 {
		st.History.AvgSuccessRate = e.successSum / float64(e.samples)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("evolution: export state: %w", err)
	}
	return data, nil
}

// ImportState merges previously exported weights and DNA over the
// current state. Unknown strategies are added. Imported values are
// clamped to the same ranges mutations respect, so a hand-edited or
// stale backup cannot push the engine outside its operating bounds.
func (e *Engine) ImportState(data []byte) error {
	var st learnedState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("evolution: import state: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range st.Weights {
		e.weights[k] = clamp(v, weightMin, weightMax)
	}
	for strat, dna := range st.DNA {
		merged := make(map[string]float64, len(dna))
		for p, v := range dna {
			merged[p] = clamp(v, dnaMin, dnaMax)
		}
		e.dna[strat] = merged
	}
	e.logger.Info("imported learned parameters",
		slog.Int("weights", len(st.Weights)),
		slog.Int("dna_strategies", len(st.DNA)),
	)
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
