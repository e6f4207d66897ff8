package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/phindlabs/revloop/internal/domain"
)

// RiskAlerter bridges the risk monitor's alert hook onto the notifier
// under the risk_alert event type.
type RiskAlerter struct {
	n *Notifier
}

// NewRiskAlerter wraps the notifier for risk alerts.
func NewRiskAlerter(n *Notifier) *RiskAlerter {
	return &RiskAlerter{n: n}
}

// Alert forwards a critical risk violation.
func (a *RiskAlerter) Alert(ctx context.Context, title, body string) error {
	return a.n.Notify(ctx, EventRisk, title, body)
}

// OpportunitySink bridges detected opportunities onto the notifier
// under the opportunity event type.
type OpportunitySink struct {
	n *Notifier
}

// NewOpportunitySink wraps the notifier for opportunity alerts.
func NewOpportunitySink(n *Notifier) *OpportunitySink {
	return &OpportunitySink{n: n}
}

// Send formats and forwards one detected opportunity.
func (s *OpportunitySink) Send(ctx context.Context, o domain.Opportunity) error {
	title := fmt.Sprintf("%s opportunity: %s", o.Type, o.Pair)

	var b strings.Builder
	fmt.Fprintf(&b, "Risk: %s", o.RiskLevel)
	if o.EstimatedProfit > 0 {
		fmt.Fprintf(&b, " | Est. profit: %.2f%%", o.EstimatedProfit*100)
	}
	for _, item := range o.ActionItems {
		b.WriteString("\n- ")
		b.WriteString(item)
	}
	return s.n.Notify(ctx, EventOpportunity, title, b.String())
}
