package observability

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func TestNopImplementationsDoNotPanic(t *testing.T) {
	var logger NopLogger
	logger.Debug("noop")
	logger.Info("noop", "k", "v")
	logger.Warn("noop")
	logger.Error("noop")

	var metrics NopMetrics
	metrics.Observe("op", true, time.Second)
}

func TestClockFunc(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	clk := ClockFunc(func() time.Time { return fixed })
	if !clk.Now().Equal(fixed) {
		t.Fatalf("clock returned %v", clk.Now())
	}
	if SystemClock().Now().IsZero() {
		t.Fatalf("system clock returned zero time")
	}
}

func TestExpvarMetricsAggregates(t *testing.T) {
	rec := NewExpvarMetrics("")
	rec.Observe("insert_record", true, 10*time.Millisecond)
	rec.Observe("insert_record", true, 5*time.Millisecond)
	rec.Observe("insert_record", false, 1*time.Millisecond)
	rec.Observe("", true, time.Second) // ignored

	snap := rec.Snapshot()
	if got := snap.DurationsMS["insert_record"]; got != 16 {
		t.Fatalf("durations = %v, want 16ms total", got)
	}
	if got := snap.Results["insert_record"]["success"]; got != 2 {
		t.Fatalf("success count = %d", got)
	}
	if got := snap.Results["insert_record"]["error"]; got != 1 {
		t.Fatalf("error count = %d", got)
	}
	if rec.Name() == "" {
		t.Fatalf("expected generated name")
	}
}

func TestPrometheusMetricsCounts(t *testing.T) {
	rec := NewPrometheusMetrics()
	rec.Observe("delete_record", true, 20*time.Millisecond)
	rec.Observe("delete_record", false, 5*time.Millisecond)

	families, err := rec.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var results *dto.MetricFamily
	for _, fam := range families {
		if fam.GetName() == "pumpcore_operation_results_total" {
			results = fam
		}
	}
	if results == nil {
		t.Fatalf("results counter not registered")
	}
	var total float64
	for _, m := range results.GetMetric() {
		total += m.GetCounter().GetValue()
	}
	if total != 2 {
		t.Fatalf("counter total = %v, want 2", total)
	}
}
