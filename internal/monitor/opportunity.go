// Package monitor watches market quotes for actionable opportunities:
// cross-venue arbitrage spreads and strong directional trends. Detected
// opportunities are kept in a bounded alert ring, fanned out to alert
// sinks best-effort, and optionally handed to the task pool.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phindlabs/revloop/internal/domain"
)

// QuoteFeed supplies the market observations one evaluation pass reads.
type QuoteFeed interface {
	Fetch(ctx context.Context) ([]domain.Quote, error)
}

// AlertSink receives detected opportunities. Failures are logged, never
// propagated.
type AlertSink interface {
	Send(ctx context.Context, o domain.Opportunity) error
}

// TaskHandoff submits follow-up work for a detected opportunity.
type TaskHandoff interface {
	Submit(ctx context.Context, description, userID string) error
}

// maxAlerts bounds the in-memory alert ring.
const maxAlerts = 100

// DefaultThresholds returns the monitor's initial detection thresholds.
func DefaultThresholds() map[string]float64 {
	return map[string]float64{
		"price_differential": 0.015,
		"volatility_min":     0.025,
		"trend_strength_min": 0.6,
		"volume_spike":       2.5,
	}
}

// Config holds the monitor's tunables.
type Config struct {
	// Interval between evaluation passes.
	Interval time.Duration
	// Thresholds overrides merge over DefaultThresholds.
	Thresholds map[string]float64
}

// Monitor is the opportunity alert system. All methods are safe for
// concurrent use; Start and Stop are idempotent.
type Monitor struct {
	feed     QuoteFeed
	interval time.Duration

	mu         sync.Mutex
	thresholds map[string]float64
	alerts     []domain.Opportunity
	counter    int
	cancel     context.CancelFunc
	done       chan struct{}

	sinks   []AlertSink
	handoff TaskHandoff
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures optional Monitor collaborators.
type Option func(*Monitor)

// WithAlertSink adds a fan-out target for detected opportunities.
func WithAlertSink(s AlertSink) Option { return func(m *Monitor) { m.sinks = append(m.sinks, s) } }

// WithTaskHandoff routes arbitrage detections into the task pool.
func WithTaskHandoff(h TaskHandoff) Option { return func(m *Monitor) { m.handoff = h } }

// WithClock injects the time source.
func WithClock(now func() time.Time) Option { return func(m *Monitor) { m.now = now } }

// New creates a Monitor over the given feed. A zero interval defaults
// to 10 seconds.
func New(feed QuoteFeed, cfg Config, logger *slog.Logger, opts ...Option) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	th := DefaultThresholds()
	for k, v := range cfg.Thresholds {
		th[k] = v
	}
	m := &Monitor{
		feed:       feed,
		interval:   cfg.Interval,
		thresholds: th,
		logger:     logger.With(slog.String("component", "opportunity_monitor")),
		now:        time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start launches the background evaluation loop. Calling Start on a
// running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		m.logger.InfoContext(loopCtx, "opportunity monitor started",
			slog.Duration("interval", m.interval))

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if err := m.RunOnce(loopCtx); err != nil && loopCtx.Err() == nil {
					m.logger.WarnContext(loopCtx, "evaluation pass failed",
						slog.String("error", err.Error()))
				}
			}
		}
	}(m.done)
}

// Stop cancels the loop and waits for it to exit. Safe to call twice or
// on a never-started monitor.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Info("opportunity monitor stopped")
}

// RunOnce executes a single evaluation pass over the feed.
func (m *Monitor) RunOnce(ctx context.Context) error {
	quotes, err := m.feed.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("monitor: fetch quotes: %w", err)
	}

	byPair := make(map[string][]domain.Quote)
	var pairs []string
	for _, q := range quotes {
		if _, seen := byPair[q.Pair]; !seen {
			pairs = append(pairs, q.Pair)
		}
		byPair[q.Pair] = append(byPair[q.Pair], q)
	}

	for _, pair := range pairs {
		pq := byPair[pair]
		if opp, ok := m.EvaluateArbitrage(pair, pq); ok {
			m.alert(ctx, opp)
		}
		for _, q := range pq {
			if opp, ok := m.EvaluateTrend(q); ok {
				m.alert(ctx, opp)
			}
		}
	}
	return nil
}

// EvaluateArbitrage checks the cross-venue spread for one pair. The
// spread must clear the price_differential threshold; the estimate
// knocks 20 bps off for fees.
func (m *Monitor) EvaluateArbitrage(pair string, quotes []domain.Quote) (domain.Opportunity, bool) {
	if len(quotes) < 2 {
		return domain.Opportunity{}, false
	}

	low, high := quotes[0], quotes[0]
	for _, q := range quotes[1:] {
		if q.Price <= 0 {
			continue
		}
		if q.Price < low.Price || low.Price <= 0 {
			low = q
		}
		if q.Price > high.Price {
			high = q
		}
	}
	if low.Price <= 0 || high.Price <= 0 || low.Venue == high.Venue {
		return domain.Opportunity{}, false
	}

	diff := (high.Price - low.Price) / low.Price

	m.mu.Lock()
	threshold := m.thresholds["price_differential"]
	m.mu.Unlock()
	if diff < threshold {
		return domain.Opportunity{}, false
	}

	riskLevel := "low"
	if diff >= 0.03 {
		riskLevel = "medium"
	}
	return domain.Opportunity{
		Type:            domain.OpportunityArbitrage,
		Pair:            pair,
		RiskLevel:       riskLevel,
		EstimatedProfit: diff - 0.002,
		Signals: map[string]float64{
			"differential_percent": diff * 100,
			"buy_price":            low.Price,
			"sell_price":           high.Price,
		},
		ActionItems: []string{
			fmt.Sprintf("Buy %s on %s at $%.2f", pair, low.Venue, low.Price),
			fmt.Sprintf("Sell %s on %s at $%.2f", pair, high.Venue, high.Price),
		},
		Status: domain.OpportunityDetected,
	}, true
}

// EvaluateTrend checks one quote for a strong directional trend.
func (m *Monitor) EvaluateTrend(q domain.Quote) (domain.Opportunity, bool) {
	if q.Pair == "" || q.Price <= 0 || q.TrendStrength <= 0 {
		return domain.Opportunity{}, false
	}

	m.mu.Lock()
	threshold := m.thresholds["trend_strength_min"]
	m.mu.Unlock()
	if q.TrendStrength < threshold {
		return domain.Opportunity{}, false
	}

	direction := "down"
	verb := "Sell"
	if q.TrendUp {
		direction = "up"
		verb = "Buy"
	}
	return domain.Opportunity{
		Type:      domain.OpportunityTrend,
		Pair:      q.Pair,
		Direction: direction,
		RiskLevel: "medium",
		Signals: map[string]float64{
			"trend_strength": q.TrendStrength,
			"price":          q.Price,
		},
		ActionItems: []string{
			fmt.Sprintf("%s %s at $%.2f", verb, q.Pair, q.Price),
		},
		Status: domain.OpportunityDetected,
	}, true
}

// alert registers the opportunity and fans it out.
func (m *Monitor) alert(ctx context.Context, opp domain.Opportunity) {
	m.mu.Lock()
	opp.ID = fmt.Sprintf("%s-%d", opp.Type, m.counter)
	m.counter++
	opp.DetectedAt = m.now()
	m.alerts = append(m.alerts, opp)
	if len(m.alerts) > maxAlerts {
		m.alerts = m.alerts[len(m.alerts)-maxAlerts:]
	}
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "opportunity detected",
		slog.String("id", opp.ID),
		slog.String("type", string(opp.Type)),
		slog.String("pair", opp.Pair),
	)

	for _, sink := range m.sinks {
		if err := sink.Send(ctx, opp); err != nil {
			m.logger.WarnContext(ctx, "alert sink failed",
				slog.String("id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if m.handoff != nil && opp.Type == domain.OpportunityArbitrage {
		desc := fmt.Sprintf("arbitrage opportunity on %s", opp.Pair)
		if err := m.handoff.Submit(ctx, desc, "opportunity_monitor"); err != nil {
			m.logger.WarnContext(ctx, "task handoff failed",
				slog.String("id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Opportunities returns up to limit alerts, newest last, optionally
// filtered by type. A zero or negative limit means 20.
func (m *Monitor) Opportunities(oppType domain.OpportunityType, limit int) []domain.Opportunity {
	if limit <= 0 {
		limit = 20
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Opportunity, 0, limit)
	for _, o := range m.alerts {
		if oppType != "" && o.Type != oppType {
			continue
		}
		out = append(out, o)
		if len(out) == limit {
			break
		}
	}
	return out
}

// MarkActioned transitions an alert to "actioned" or "ignored".
func (m *Monitor) MarkActioned(id, action string) bool {
	if action != domain.OpportunityActioned && action != domain.OpportunityIgnored {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.alerts {
		if m.alerts[i].ID == id {
			m.alerts[i].Status = action
			m.alerts[i].ActionedAt = m.now()
			return true
		}
	}
	return false
}

// UpdateThresholds merges the given thresholds and returns the full set.
func (m *Monitor) UpdateThresholds(updates map[string]float64) map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range updates {
		m.thresholds[k] = v
	}
	out := make(map[string]float64, len(m.thresholds))
	for k, v := range m.thresholds {
		out[k] = v
	}
	return out
}

// Summary is the dashboard view of the alert ring.
type Summary struct {
	Active     int                            `json:"active_opportunities"`
	Actioned   int                            `json:"actioned_opportunities"`
	Ignored    int                            `json:"ignored_opportunities"`
	ByType     map[domain.OpportunityType]int `json:"opportunity_types"`
	Thresholds map[string]float64             `json:"thresholds"`
}

// Summarize assembles the dashboard summary.
func (m *Monitor) Summarize() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{
		ByType:     make(map[domain.OpportunityType]int),
		Thresholds: make(map[string]float64, len(m.thresholds)),
	}
	for _, o := range m.alerts {
		switch o.Status {
		case domain.OpportunityDetected:
			s.Active++
		case domain.OpportunityActioned:
			s.Actioned++
		case domain.OpportunityIgnored:
			s.Ignored++
		}
		s.ByType[o.Type]++
	}
	for k, v := range m.thresholds {
		s.Thresholds[k] = v
	}
	return s
}
