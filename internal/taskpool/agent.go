package taskpool

import "github.com/phindlabs/revloop/internal/domain"

// outcome is what executing one micro-agent task produced. Realized
// revenue feeds the daily counter; expected revenue (grant submissions)
// is informational only until the money actually lands.
type outcome struct {
	realized float64
	expected float64
	details  map[string]string
}

// executeTask runs the deterministic revenue model for a task type.
// Amounts fall back to the bare defaults when the config left them zero.
func executeTask(taskType domain.TaskType, cfg domain.TaskConfig) outcome {
	switch taskType {
	case domain.TaskArbitrage:
		amount := cfg.Amount
		if amount == 0 {
			amount = 1000
		}
		profit := amount * 0.02
		return outcome{
			realized: profit,
			expected: profit,
			details:  map[string]string{"trades_executed": "3", "profit_margin": "0.02"},
		}
	case domain.TaskYield:
		amount := cfg.Amount
		if amount == 0 {
			amount = 5000
		}
		pool := cfg.Pool
		if pool == "" {
			pool = "ETH-USDC"
		}
		dailyYield := amount * 0.001
		return outcome{
			realized: dailyYield,
			expected: dailyYield,
			details:  map[string]string{"apy": "36.5", "pool": pool},
		}
	case domain.TaskGrant:
		grant := cfg.GrantAmount
		if grant == 0 {
			grant = 50000
		}
		// A submission has expected value only; nothing is realized until
		// the grant is awarded.
		return outcome{
			realized: 0,
			expected: grant * 0.15,
			details:  map[string]string{"submission_completed": "true"},
		}
	case domain.TaskContent:
		rate := cfg.Rate
		if rate == 0 {
			rate = 100
		}
		hours := cfg.Hours
		if hours == 0 {
			hours = 4
		}
		revenue := rate * hours
		return outcome{
			realized: revenue,
			expected: revenue,
			details:  map[string]string{"content_pieces": "3"},
		}
	default:
		estimate := cfg.RevenueEstimate
		if estimate == 0 {
			estimate = 50
		}
		return outcome{
			realized: estimate,
			expected: estimate,
			details:  map[string]string{"task_completed": "true"},
		}
	}
}
