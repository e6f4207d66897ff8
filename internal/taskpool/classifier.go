package taskpool

import (
	"strings"

	"github.com/phindlabs/revloop/internal/domain"
)

// rule maps description keywords to a task type and its default config.
// Rules are evaluated in order; the first keyword hit wins.
type rule struct {
	keywords []string
	taskType domain.TaskType
	config   domain.TaskConfig
}

var rules = []rule{
	{
		keywords: []string{"arbitrage", "trading", "buy", "sell", "exchange"},
		taskType: domain.TaskArbitrage,
		config:   domain.TaskConfig{Amount: 10000, RevenueTarget: 200},
	},
	{
		keywords: []string{"yield", "farm", "stake", "liquidity"},
		taskType: domain.TaskYield,
		config:   domain.TaskConfig{Amount: 20000, Pool: "ETH-USDC", RevenueTarget: 100},
	},
	{
		keywords: []string{"grant", "funding", "proposal", "application"},
		taskType: domain.TaskGrant,
		config:   domain.TaskConfig{GrantAmount: 75000, RevenueTarget: 500},
	},
	{
		keywords: []string{"content", "write", "article", "blog", "social"},
		taskType: domain.TaskContent,
		config:   domain.TaskConfig{Rate: 150, Hours: 6, RevenueTarget: 900},
	},
}

// Classify maps a free-text task description to a task type and default
// configuration. Descriptions matching no rule become generic tasks.
func Classify(description string) (domain.TaskType, domain.TaskConfig) {
	lower := strings.ToLower(description)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.taskType, r.config
			}
		}
	}
	return domain.TaskGeneric, domain.TaskConfig{RevenueEstimate: 100}
}
