package taskpool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/phindlabs/revloop/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		description string
		wantType    domain.TaskType
	}{
		{"run arbitrage between venues", domain.TaskArbitrage},
		{"buy the dip", domain.TaskArbitrage},
		{"SELL everything", domain.TaskArbitrage},
		{"stake into the best pool", domain.TaskYield},
		{"provide liquidity", domain.TaskYield},
		{"draft a grant proposal", domain.TaskGrant},
		{"apply for funding", domain.TaskGrant},
		{"write a blog post", domain.TaskContent},
		{"social media push", domain.TaskContent},
		{"reticulate splines", domain.TaskGeneric},
		{"", domain.TaskGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			got, _ := Classify(tt.description)
			if got != tt.wantType {
				t.Errorf("Classify(%q) = %v, want %v", tt.description, got, tt.wantType)
			}
		})
	}
}

func TestClassifyRuleOrder(t *testing.T) {
	// "write" matches content, but "trading" matches arbitrage first.
	got, _ := Classify("write about my trading results")
	if got != domain.TaskArbitrage {
		t.Errorf("first matching rule should win, got %v", got)
	}
}

func TestClassifyDefaultConfigs(t *testing.T) {
	_, cfg := Classify("arbitrage now")
	if cfg.Amount != 10000 || cfg.RevenueTarget != 200 {
		t.Errorf("arbitrage config = %+v", cfg)
	}
	_, cfg = Classify("yield hunt")
	if cfg.Amount != 20000 || cfg.Pool != "ETH-USDC" || cfg.RevenueTarget != 100 {
		t.Errorf("yield config = %+v", cfg)
	}
	_, cfg = Classify("grant season")
	if cfg.GrantAmount != 75000 || cfg.RevenueTarget != 500 {
		t.Errorf("grant config = %+v", cfg)
	}
	_, cfg = Classify("write an article")
	if cfg.Rate != 150 || cfg.Hours != 6 || cfg.RevenueTarget != 900 {
		t.Errorf("content config = %+v", cfg)
	}
	_, cfg = Classify("something else")
	if cfg.RevenueEstimate != 100 {
		t.Errorf("generic config = %+v", cfg)
	}
}

func TestExecuteTaskRevenueModel(t *testing.T) {
	tests := []struct {
		name         string
		taskType     domain.TaskType
		cfg          domain.TaskConfig
		wantRealized float64
		wantExpected float64
	}{
		{"arbitrage", domain.TaskArbitrage, domain.TaskConfig{Amount: 10000}, 200, 200},
		{"arbitrage bare default", domain.TaskArbitrage, domain.TaskConfig{}, 20, 20},
		{"yield", domain.TaskYield, domain.TaskConfig{Amount: 20000}, 20, 20},
		{"yield bare default", domain.TaskYield, domain.TaskConfig{}, 5, 5},
		{"grant is expected-only", domain.TaskGrant, domain.TaskConfig{GrantAmount: 75000}, 0, 11250},
		{"grant bare default", domain.TaskGrant, domain.TaskConfig{}, 0, 7500},
		{"content", domain.TaskContent, domain.TaskConfig{Rate: 150, Hours: 6}, 900, 900},
		{"content bare default", domain.TaskContent, domain.TaskConfig{}, 400, 400},
		{"generic", domain.TaskGeneric, domain.TaskConfig{RevenueEstimate: 100}, 100, 100},
		{"generic bare default", domain.TaskGeneric, domain.TaskConfig{}, 50, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := executeTask(tt.taskType, tt.cfg)
			if out.realized != tt.wantRealized {
				t.Errorf("realized = %v, want %v", out.realized, tt.wantRealized)
			}
			if out.expected != tt.wantExpected {
				t.Errorf("expected = %v, want %v", out.expected, tt.wantExpected)
			}
		})
	}
}

type fakeRecorder struct {
	amounts []float64
	labels  []string
	err     error
}

func (f *fakeRecorder) RecordIncome(_ context.Context, amount float64, label string, _ map[string]string) error {
	f.amounts = append(f.amounts, amount)
	f.labels = append(f.labels, label)
	return f.err
}

func TestSubmitEndToEnd(t *testing.T) {
	rec := &fakeRecorder{}
	m := NewManager(Config{DailyTarget: 200}, testLogger(), WithIncomeRecorder(rec))

	res, err := m.Submit(context.Background(), "run arbitrage between venues", "user-1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Revenue != 200 {
		t.Errorf("revenue = %v, want 200", res.Revenue)
	}
	if len(res.TaskIDs) != 1 || res.TaskIDs[0] != "task_0001_arbitrage_trading" {
		t.Errorf("task ids = %v", res.TaskIDs)
	}
	if m.DailyRevenue() != 200 {
		t.Errorf("daily revenue = %v, want 200", m.DailyRevenue())
	}
	if len(rec.amounts) != 1 || rec.amounts[0] != 200 || rec.labels[0] != "arbitrage_trading" {
		t.Errorf("ledger got %v/%v", rec.amounts, rec.labels)
	}
}

func TestSubmitGrantRealizesNothing(t *testing.T) {
	rec := &fakeRecorder{}
	m := NewManager(Config{DailyTarget: 5000}, testLogger(), WithIncomeRecorder(rec))

	res, err := m.Submit(context.Background(), "submit a grant application", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Revenue != 0 {
		t.Errorf("grant realized %v, want 0", res.Revenue)
	}
	if len(rec.amounts) != 0 {
		t.Errorf("grant should not hit the ledger, got %v", rec.amounts)
	}
}

func TestSubmitSurvivesLedgerFailure(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("store down")}
	m := NewManager(Config{DailyTarget: 200}, testLogger(), WithIncomeRecorder(rec))

	res, err := m.Submit(context.Background(), "write a blog post", "")
	if err != nil {
		t.Fatalf("ledger failure must not fail the submit: %v", err)
	}
	if res.Revenue != 900 {
		t.Errorf("revenue = %v, want 900", res.Revenue)
	}
}

func TestAutoscaleCreatesDeficitTask(t *testing.T) {
	m := NewManager(Config{DailyTarget: 1000}, testLogger())

	// Arbitrage realizes 200, leaving an 800 deficit.
	if _, err := m.Submit(context.Background(), "arbitrage run", ""); err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := m.Snapshot()
	if snap.ActiveAgents != 1 {
		t.Fatalf("active agents = %d, want 1 autoscale task", snap.ActiveAgents)
	}
	av := snap.ActiveTasks[0]
	if av.Type != domain.TaskArbitrage || av.Urgency != "high" {
		t.Errorf("autoscale task = %+v", av)
	}

	m.mu.Lock()
	scaled := m.active[av.ID]
	m.mu.Unlock()
	if scaled.Config.Amount != 800*50 {
		t.Errorf("autoscale amount = %v, want %v", scaled.Config.Amount, 800*50)
	}
	if scaled.Config.RevenueTarget != 800 {
		t.Errorf("autoscale target = %v, want 800", scaled.Config.RevenueTarget)
	}
	if scaled.Status != domain.TaskCreated {
		t.Errorf("autoscale task status = %v, want created (never executed)", scaled.Status)
	}
}

func TestNoAutoscaleForSmallDeficit(t *testing.T) {
	m := NewManager(Config{DailyTarget: 250}, testLogger())

	// Deficit after the 200 arbitrage is 50, under the 100 floor.
	if _, err := m.Submit(context.Background(), "arbitrage run", ""); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if snap := m.Snapshot(); snap.ActiveAgents != 0 {
		t.Errorf("active agents = %d, want 0", snap.ActiveAgents)
	}
}

func TestScalingTiers(t *testing.T) {
	tests := []struct {
		revenue       float64
		wantTier      int
		wantThreshold float64
	}{
		{0, 1, 200},
		{199, 1, 200},
		{200, 1, 500},
		{499, 1, 500},
		{500, 3, 1000},
		{1999, 5, 2000},
		{5000, 20, 5000},
		{9999, 20, 5000},
	}
	for _, tt := range tests {
		m := NewManager(Config{DailyTarget: 200}, testLogger())
		m.mu.Lock()
		m.dailyRevenue = tt.revenue
		tier := m.currentTierLocked()
		next := m.nextThresholdLocked()
		m.mu.Unlock()
		if tier != tt.wantTier {
			t.Errorf("revenue %v: tier = %d, want %d", tt.revenue, tier, tt.wantTier)
		}
		if next != tt.wantThreshold {
			t.Errorf("revenue %v: next threshold = %v, want %v", tt.revenue, next, tt.wantThreshold)
		}
	}
}

func TestSnapshot(t *testing.T) {
	m := NewManager(Config{DailyTarget: 200}, testLogger())
	if _, err := m.Submit(context.Background(), "arbitrage run", ""); err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := m.Snapshot()
	if snap.DailyTarget != 200 || snap.CurrentDaily != 200 {
		t.Errorf("snapshot revenue = %+v", snap)
	}
	if snap.Deficit != 0 {
		t.Errorf("deficit = %v, want 0", snap.Deficit)
	}
	if snap.ProgressPercent != 100 {
		t.Errorf("progress = %v, want 100", snap.ProgressPercent)
	}
	if snap.CompletedTasks != 1 || snap.ActiveAgents != 0 {
		t.Errorf("counts = %+v", snap)
	}
	if snap.SuccessRate != 1 {
		t.Errorf("success rate = %v, want 1", snap.SuccessRate)
	}
	if snap.AutoScalingActive {
		t.Error("autoscaling should be inactive at target")
	}
}

func TestSubmitCancelledContext(t *testing.T) {
	m := NewManager(Config{DailyTarget: 200}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Submit(ctx, "arbitrage run", ""); err == nil {
		t.Fatal("cancelled context should fail the submit")
	}
}
