package domain

import "time"

// CycleType names the work a control cycle performs.
type CycleType string

const (
	CycleMarketAnalysis  CycleType = "market_analysis"
	CycleRiskAssessment  CycleType = "risk_assessment"
	CycleTradeExecution  CycleType = "trade_execution"
	CycleOpportunityScan CycleType = "opportunity_scan"
	CyclePortfolioReview CycleType = "portfolio_review"
)

// TaskView is the dashboard projection of an in-flight task.
type TaskView struct {
	ID              string   `json:"id"`
	Type            TaskType `json:"type"`
	ExpectedRevenue float64  `json:"expected_revenue"`
	Urgency         string   `json:"urgency,omitempty"`
}

// PerformanceSnapshot is the task-pool dashboard payload.
type PerformanceSnapshot struct {
	DailyTarget       float64    `json:"daily_target"`
	CurrentDaily      float64    `json:"current_daily_revenue"`
	Deficit           float64    `json:"revenue_deficit"`
	ProgressPercent   float64    `json:"progress_percent"`
	ActiveAgents      int        `json:"active_agents"`
	CompletedTasks    int        `json:"completed_tasks"`
	SuccessRate       float64    `json:"success_rate"`
	CurrentTier       int        `json:"current_tier"`
	NextThreshold     float64    `json:"next_threshold"`
	AutoScalingActive bool       `json:"auto_scaling_active"`
	ActiveTasks       []TaskView `json:"active_tasks"`
	GeneratedAt       time.Time  `json:"generated_at"`
}

// ProfitSnapshot is the ledger dashboard payload. Money values are
// rounded to cents, percentages to one decimal.
type ProfitSnapshot struct {
	DailyIncome       float64        `json:"daily_income"`
	DailyExpense      float64        `json:"daily_expense"`
	DailyProfit       float64        `json:"daily_profit"`
	TotalIncome       float64        `json:"total_income"`
	TotalExpense      float64        `json:"total_expense"`
	TotalProfit       float64        `json:"total_profit"`
	DailyAverage      float64        `json:"daily_average"`
	WeeklyProjection  float64        `json:"weekly_projection"`
	MonthlyProjection float64        `json:"monthly_projection"`
	AnnualProjection  float64        `json:"annual_projection"`
	ROIPercent        float64        `json:"roi_percent"`
	TargetPercent     float64        `json:"target_achievement_percent"`
	DaysRunning       int            `json:"days_running"`
	TopSources        []IncomeSource `json:"top_income_sources"`
	GeneratedAt       time.Time      `json:"generated_at"`
}
