package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phindlabs/revloop/internal/domain"
	"github.com/phindlabs/revloop/internal/monitor"
	"github.com/phindlabs/revloop/internal/taskpool"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTasks struct {
	submitted []string
	err       error
}

func (f *fakeTasks) Submit(_ context.Context, description, _ string) (*taskpool.SubmitResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.submitted = append(f.submitted, description)
	return &taskpool.SubmitResult{TaskIDs: []string{"task_0001_arbitrage_trading"}, Revenue: 200}, nil
}

func (f *fakeTasks) Snapshot() domain.PerformanceSnapshot {
	return domain.PerformanceSnapshot{DailyTarget: 200}
}

func TestSubmitTask(t *testing.T) {
	f := &fakeTasks{}
	h := NewTaskHandler(f, discard())

	req := httptest.NewRequest(http.MethodPost, "/api/tasks",
		strings.NewReader(`{"description":"find arbitrage opportunities"}`))
	rec := httptest.NewRecorder()
	h.SubmitTask(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var res taskpool.SubmitResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Revenue != 200 {
		t.Errorf("revenue = %v", res.Revenue)
	}
	if len(f.submitted) != 1 {
		t.Errorf("submitted = %v", f.submitted)
	}
}

func TestSubmitTaskValidation(t *testing.T) {
	h := NewTaskHandler(&fakeTasks{}, discard())

	tests := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"blank description", `{"description":"   "}`},
		{"malformed json", `{"description":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.SubmitTask(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

type fakeRisk struct {
	thresholds map[string]float64
	violations []domain.RiskViolation
}

func (f *fakeRisk) Status() domain.RiskStatus {
	return domain.RiskStatus{Level: "minimal", Thresholds: f.thresholds}
}

func (f *fakeRisk) UpdateThresholds(updates map[string]float64) {
	for k, v := range updates {
		f.thresholds[k] = v
	}
}

func (f *fakeRisk) Violations() []domain.RiskViolation { return f.violations }

func TestUpdateRiskThresholds(t *testing.T) {
	f := &fakeRisk{thresholds: map[string]float64{"slippage": 0.05}}
	h := NewRiskHandler(f, discard())

	req := httptest.NewRequest(http.MethodPut, "/api/risk/thresholds",
		strings.NewReader(`{"slippage":0.08}`))
	rec := httptest.NewRecorder()
	h.UpdateThresholds(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if f.thresholds["slippage"] != 0.08 {
		t.Errorf("thresholds = %v", f.thresholds)
	}
}

func TestUpdateRiskThresholdsRejectsNonPositive(t *testing.T) {
	f := &fakeRisk{thresholds: map[string]float64{}}
	h := NewRiskHandler(f, discard())

	req := httptest.NewRequest(http.MethodPut, "/api/risk/thresholds",
		strings.NewReader(`{"slippage":-1}`))
	rec := httptest.NewRecorder()
	h.UpdateThresholds(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListViolationsLimit(t *testing.T) {
	f := &fakeRisk{}
	for i := 0; i < 10; i++ {
		f.violations = append(f.violations, domain.RiskViolation{Metric: "slippage"})
	}
	h := NewRiskHandler(f, discard())

	req := httptest.NewRequest(http.MethodGet, "/api/risk/violations?limit=3", nil)
	rec := httptest.NewRecorder()
	h.ListViolations(rec, req)

	var res listViolationsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Violations) != 3 {
		t.Errorf("violations = %d, want 3", len(res.Violations))
	}
}

type fakeOpps struct {
	opps    []domain.Opportunity
	actions map[string]string
}

func (f *fakeOpps) Opportunities(oppType domain.OpportunityType, limit int) []domain.Opportunity {
	var out []domain.Opportunity
	for _, o := range f.opps {
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

func (f *fakeOpps) MarkActioned(id, action string) bool {
	for _, o := range f.opps {
		if o.ID == id {
			f.actions[id] = action
			return true
		}
	}
	return false
}

func (f *fakeOpps) UpdateThresholds(updates map[string]float64) map[string]float64 {
	return updates
}

func (f *fakeOpps) Summarize() monitor.Summary { return monitor.Summary{} }

func TestListOpportunitiesTypeFilter(t *testing.T) {
	f := &fakeOpps{opps: []domain.Opportunity{
		{ID: "arbitrage-0", Type: domain.OpportunityArbitrage},
		{ID: "trend-1", Type: domain.OpportunityTrend},
	}}
	h := NewOpportunityHandler(f, discard())

	req := httptest.NewRequest(http.MethodGet, "/api/opportunities?type=trend", nil)
	rec := httptest.NewRecorder()
	h.ListOpportunities(rec, req)

	var res listOpportunitiesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Opportunities) != 1 || res.Opportunities[0].ID != "trend-1" {
		t.Errorf("opportunities = %+v", res.Opportunities)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/opportunities?type=bogus", nil)
	rec = httptest.NewRecorder()
	h.ListOpportunities(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestMarkOpportunityActioned(t *testing.T) {
	f := &fakeOpps{
		opps:    []domain.Opportunity{{ID: "arbitrage-0", Type: domain.OpportunityArbitrage}},
		actions: map[string]string{},
	}
	h := NewOpportunityHandler(f, discard())

	req := httptest.NewRequest(http.MethodPost, "/api/opportunities/arbitrage-0/action",
		strings.NewReader(`{"action":"actioned"}`))
	req.SetPathValue("id", "arbitrage-0")
	rec := httptest.NewRecorder()
	h.MarkActioned(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if f.actions["arbitrage-0"] != "actioned" {
		t.Errorf("actions = %v", f.actions)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/opportunities/missing/action",
		strings.NewReader(`{"action":"ignored"}`))
	req.SetPathValue("id", "missing")
	rec = httptest.NewRecorder()
	h.MarkActioned(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/opportunities/arbitrage-0/action",
		strings.NewReader(`{"action":"deleted"}`))
	req.SetPathValue("id", "arbitrage-0")
	rec = httptest.NewRecorder()
	h.MarkActioned(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(discard())
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}
