package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(m *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok {
			if want != lp.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}

func TestOperationCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Operation("draw", "ok")
	m.Operation("draw", "ok")
	m.Operation("draw", "not_eligible")

	if got := counterValue(t, reg, "kixikila_cycle_operations_total", map[string]string{"operation": "draw", "result": "ok"}); got != 2 {
		t.Errorf("draw ok = %v, want 2", got)
	}
	if got := counterValue(t, reg, "kixikila_cycle_operations_total", map[string]string{"operation": "draw", "result": "not_eligible"}); got != 1 {
		t.Errorf("draw not_eligible = %v, want 1", got)
	}
}

func TestPrizePaid(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.PrizePaid(decimal.NewFromInt(300))
	m.PrizePaid(decimal.RequireFromString("50.5"))

	if got := counterValue(t, reg, "kixikila_cycle_prizes_paid_total", nil); got != 350.5 {
		t.Errorf("prizes paid = %v, want 350.5", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Operation("contribution", "ok")
	m.PrizePaid(decimal.NewFromInt(1))
	m.LedgerCall("charge", errors.New("boom"), time.Millisecond)
	m.RPC("/kixikila.v1.GroupService/GetGroup", "ok", time.Millisecond)
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.LedgerCall("payout", nil, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "kixikila_ledger_call_duration_seconds") {
		t.Errorf("expected ledger histogram in output, got:\n%s", rec.Body.String())
	}
}
