package domain

import "time"

// Severity grades a risk violation by how far the observed value overshoots
// its threshold.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RiskCategory groups metrics for mitigation dispatch.
type RiskCategory string

const (
	RiskFinancial   RiskCategory = "financial"
	RiskOperational RiskCategory = "operational"
	RiskTechnical   RiskCategory = "technical"
	RiskMarket      RiskCategory = "market"
)

// RiskViolation is an append-only record of a threshold breach. Violations
// are prunable by age but are otherwise never mutated.
type RiskViolation struct {
	Metric    string
	Category  RiskCategory
	Value     float64
	Threshold float64
	Severity  Severity
	Timestamp time.Time
}

// RiskMetric is the last observed reading for a monitored metric.
type RiskMetric struct {
	Value     float64
	Threshold float64
	Category  RiskCategory
	Timestamp time.Time
}

// RiskStatus is the aggregate risk picture exposed to the dashboard.
type RiskStatus struct {
	Score            float64
	Level            string
	MonitoringActive bool
	TotalViolations  int
	RecentViolations int
	Metrics          map[string]RiskMetric
	Thresholds       map[string]float64
	UpdatedAt        time.Time
}
