package domain

import "time"

// OpportunityType classifies what a market alert represents.
type OpportunityType string

const (
	OpportunityArbitrage OpportunityType = "arbitrage"
	OpportunityTrend     OpportunityType = "trend"
)

// Opportunity lifecycle states.
const (
	OpportunityDetected = "detected"
	OpportunityActioned = "actioned"
	OpportunityIgnored  = "ignored"
)

// Opportunity is an actionable market alert produced by the monitor.
type Opportunity struct {
	ID              string             `json:"id"`
	Type            OpportunityType    `json:"type"`
	Pair            string             `json:"pair"`
	Direction       string             `json:"direction,omitempty"`
	RiskLevel       string             `json:"risk_level"`
	EstimatedProfit float64            `json:"estimated_profit,omitempty"`
	Signals         map[string]float64 `json:"signals,omitempty"`
	ActionItems     []string           `json:"action_items,omitempty"`
	Status          string             `json:"status"`
	DetectedAt      time.Time          `json:"detected_at"`
	ActionedAt      time.Time          `json:"actioned_at,omitzero"`
}

// Quote is one market observation handed to the opportunity evaluators.
type Quote struct {
	Pair          string
	Venue         string
	Price         float64
	Volume        float64
	Volatility    float64
	TrendStrength float64
	TrendUp       bool
	Timestamp     time.Time
}
