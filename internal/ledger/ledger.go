// Package ledger tracks income and expense events and derives the profit
// reporting the dashboard shows. The in-memory event log is authoritative;
// the configured store is a durable mirror and a persistence failure never
// loses an accepted event.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phindlabs/revloop/internal/domain"
)

// Config holds the ledger's tunables.
type Config struct {
	DailyTarget float64
}

// Ledger is the profit tracking service. All methods are safe for
// concurrent use.
type Ledger struct {
	mu        sync.Mutex
	events    []domain.LedgerEvent
	startedAt time.Time

	dailyTarget float64
	store       domain.LedgerStore
	bus         domain.SignalBus
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures optional Ledger collaborators.
type Option func(*Ledger)

// WithSignalBus mirrors income events onto the bus, best-effort.
func WithSignalBus(b domain.SignalBus) Option { return func(l *Ledger) { l.bus = b } }

// WithClock injects the time source.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

// New creates a Ledger backed by the given store. A nil store keeps the
// ledger memory-only. A non-positive target falls back to $200/day.
func New(cfg Config, store domain.LedgerStore, logger *slog.Logger, opts ...Option) *Ledger {
	if cfg.DailyTarget <= 0 {
		cfg.DailyTarget = 200
	}
	l := &Ledger{
		dailyTarget: cfg.DailyTarget,
		store:       store,
		logger:      logger.With(slog.String("component", "ledger")),
		now:         time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	l.startedAt = l.now()
	return l
}

// Load replays persisted events into memory. Startup time rewinds to the
// earliest persisted event so running-day math survives restarts.
func (l *Ledger) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	events, err := l.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("ledger: load: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = events
	for _, ev := range events {
		if ev.Timestamp.Before(l.startedAt) {
			l.startedAt = ev.Timestamp
		}
	}
	l.logger.InfoContext(ctx, "ledger loaded", slog.Int("events", len(events)))
	return nil
}

// RecordIncome appends an income event. The amount must be positive.
func (l *Ledger) RecordIncome(ctx context.Context, amount float64, label string, details map[string]string) error {
	return l.record(ctx, domain.EventIncome, amount, label, details)
}

// RecordExpense appends an expense event. The amount must be positive.
func (l *Ledger) RecordExpense(ctx context.Context, amount float64, label string, details map[string]string) error {
	return l.record(ctx, domain.EventExpense, amount, label, details)
}

func (l *Ledger) record(ctx context.Context, kind domain.EventKind, amount float64, label string, details map[string]string) error {
	if amount <= 0 {
		return fmt.Errorf("ledger: record %s %q: %w", kind, label, domain.ErrInvalidAmount)
	}

	ev := domain.LedgerEvent{
		ID:        uuid.NewString(),
		Timestamp: l.now(),
		Kind:      kind,
		Amount:    amount,
		Label:     label,
		Details:   details,
	}

	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "ledger event recorded",
		slog.String("kind", string(kind)),
		slog.Float64("amount", amount),
		slog.String("label", label),
	)

	if l.store != nil {
		if err := l.store.Append(ctx, ev); err != nil {
			// Memory stays authoritative; persistence catches up on the
			// next successful append of the full set, or is lost.
			l.logger.WarnContext(ctx, "ledger store append failed",
				slog.String("event_id", ev.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if kind == domain.EventIncome && l.bus != nil {
		if err := l.bus.Publish(ctx, "ledger.income", ev); err != nil {
			l.logger.WarnContext(ctx, "ledger bus publish failed", slog.String("error", err.Error()))
		}
		if err := l.bus.StreamAppend(ctx, "ledger:income", ev); err != nil {
			l.logger.WarnContext(ctx, "ledger stream append failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// DailyIncome sums income for the given "2006-01-02" day bucket.
func (l *Ledger) DailyIncome(date string) float64 {
	return l.dailySum(domain.EventIncome, date)
}

// DailyExpense sums expenses for the given "2006-01-02" day bucket.
func (l *Ledger) DailyExpense(date string) float64 {
	return l.dailySum(domain.EventExpense, date)
}

func (l *Ledger) dailySum(kind domain.EventKind, date string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var sum float64
	for _, ev := range l.events {
		if ev.Kind == kind && ev.Date() == date {
			sum += ev.Amount
		}
	}
	return sum
}

// Summary aggregates the ledger into today's numbers, lifetime totals,
// and naive projections of the daily average.
func (l *Ledger) Summary() domain.ProfitSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	today := now.Format("2006-01-02")

	var s domain.ProfitSummary
	for _, ev := range l.events {
		switch ev.Kind {
		case domain.EventIncome:
			s.TotalIncome += ev.Amount
			if ev.Date() == today {
				s.DailyIncome += ev.Amount
			}
		case domain.EventExpense:
			s.TotalExpense += ev.Amount
			if ev.Date() == today {
				s.DailyExpense += ev.Amount
			}
		}
	}
	s.DailyProfit = s.DailyIncome - s.DailyExpense
	s.TotalProfit = s.TotalIncome - s.TotalExpense

	days := int(now.Sub(l.startedAt).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	s.DaysRunning = days
	s.DailyAverage = s.TotalIncome / float64(days)
	s.WeeklyProjection = s.DailyAverage * 7
	s.MonthlyProjection = s.DailyAverage * 30
	s.AnnualProjection = s.DailyAverage * 365

	if s.TotalExpense > 0 {
		s.ROIPercent = s.TotalProfit / s.TotalExpense * 100
	}
	if l.dailyTarget > 0 {
		s.TargetPercent = s.DailyIncome / l.dailyTarget * 100
	}
	return s
}

// TopIncomeSources returns up to n income labels by descending total.
func (l *Ledger) TopIncomeSources(n int) []domain.IncomeSource {
	l.mu.Lock()
	totals := make(map[string]float64)
	for _, ev := range l.events {
		if ev.Kind == domain.EventIncome {
			totals[ev.Label] += ev.Amount
		}
	}
	l.mu.Unlock()

	sources := make([]domain.IncomeSource, 0, len(totals))
	for label, amount := range totals {
		sources = append(sources, domain.IncomeSource{Label: label, Amount: amount})
	}
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Amount != sources[j].Amount {
			return sources[i].Amount > sources[j].Amount
		}
		return sources[i].Label < sources[j].Label
	})
	if len(sources) > n {
		sources = sources[:n]
	}
	return sources
}

// Events returns a copy of all recorded events, oldest first.
func (l *Ledger) Events() []domain.LedgerEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.LedgerEvent, len(l.events))
	copy(out, l.events)
	return out
}

// EventsBefore returns events older than the cutoff, for archival.
func (l *Ledger) EventsBefore(cutoff time.Time) []domain.LedgerEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.LedgerEvent
	for _, ev := range l.events {
		if ev.Timestamp.Before(cutoff) {
			out = append(out, ev)
		}
	}
	return out
}

// Snapshot assembles the profit dashboard payload: money rounded to
// cents, percentages to one decimal, top five income sources.
func (l *Ledger) Snapshot() domain.ProfitSnapshot {
	s := l.Summary()
	return domain.ProfitSnapshot{
		DailyIncome:       round2(s.DailyIncome),
		DailyExpense:      round2(s.DailyExpense),
		DailyProfit:       round2(s.DailyProfit),
		TotalIncome:       round2(s.TotalIncome),
		TotalExpense:      round2(s.TotalExpense),
		TotalProfit:       round2(s.TotalProfit),
		DailyAverage:      round2(s.DailyAverage),
		WeeklyProjection:  round2(s.WeeklyProjection),
		MonthlyProjection: round2(s.MonthlyProjection),
		AnnualProjection:  round2(s.AnnualProjection),
		ROIPercent:        round1(s.ROIPercent),
		TargetPercent:     round1(s.TargetPercent),
		DaysRunning:       s.DaysRunning,
		TopSources:        l.TopIncomeSources(5),
		GeneratedAt:       l.now(),
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }
