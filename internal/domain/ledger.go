package domain

import "time"

// EventKind separates money flowing in from money flowing out.
type EventKind string

const (
	EventIncome  EventKind = "income"
	EventExpense EventKind = "expense"
)

// LedgerEvent is a single recorded cash movement. Amount is always
// positive; Kind carries the sign.
type LedgerEvent struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Kind      EventKind         `json:"kind"`
	Amount    float64           `json:"amount"`
	Label     string            `json:"label"`
	Details   map[string]string `json:"details,omitempty"`
}

// Date returns the event's day bucket in the form "2006-01-02".
func (e LedgerEvent) Date() string {
	return e.Timestamp.Format("2006-01-02")
}

// ProfitSummary aggregates the ledger for reporting. Projections are
// naive extrapolations of the daily average.
type ProfitSummary struct {
	DailyIncome       float64
	DailyExpense      float64
	DailyProfit       float64
	TotalIncome       float64
	TotalExpense      float64
	TotalProfit       float64
	DailyAverage      float64
	WeeklyProjection  float64
	MonthlyProjection float64
	AnnualProjection  float64
	ROIPercent        float64
	TargetPercent     float64
	DaysRunning       int
}

// IncomeSource is one label's contribution to total income.
type IncomeSource struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}
