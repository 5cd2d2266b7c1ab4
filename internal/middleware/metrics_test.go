package middleware

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if got := len(m.Collectors()); got != 3 {
		t.Errorf("expected 3 collectors, got %d", got)
	}
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Registering the same collectors twice must fail.
	if err := m.Register(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestMetrics_ObserveHTTPRequest(t *testing.T) {
	m := NewMetrics()

	m.ObserveHTTPRequest("GET", "/api/reviews/popular", "200", 0.05, 512)
	m.ObserveHTTPRequest("GET", "/api/reviews/popular", "200", 0.10, 1024)
	m.ObserveHTTPRequest("POST", "/api/admin/popular/recompute", "401", 0.01, 64)

	counter, err := m.httpRequestsTotal.GetMetricWithLabelValues("GET", "/api/reviews/popular", "200")
	if err != nil {
		t.Fatalf("failed to get counter: %v", err)
	}
	var dtoMetric dto.Metric
	if err := counter.Write(&dtoMetric); err != nil {
		t.Fatalf("failed to write counter: %v", err)
	}
	if got := dtoMetric.GetCounter().GetValue(); got != 2 {
		t.Errorf("requests_total = %v, want 2", got)
	}

	observer, err := m.httpRequestDuration.GetMetricWithLabelValues("GET", "/api/reviews/popular", "200")
	if err != nil {
		t.Fatalf("failed to get histogram: %v", err)
	}
	dtoMetric.Reset()
	if err := observer.(prometheus.Metric).Write(&dtoMetric); err != nil {
		t.Fatalf("failed to write histogram: %v", err)
	}
	if got := dtoMetric.GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("duration sample count = %d, want 2", got)
	}
	if got := dtoMetric.GetHistogram().GetSampleSum(); got < 0.14 || got > 0.16 {
		t.Errorf("duration sample sum = %v, want ~0.15", got)
	}

	sizeObserver, err := m.httpResponseSize.GetMetricWithLabelValues("POST", "/api/admin/popular/recompute", "401")
	if err != nil {
		t.Fatalf("failed to get size histogram: %v", err)
	}
	dtoMetric.Reset()
	if err := sizeObserver.(prometheus.Metric).Write(&dtoMetric); err != nil {
		t.Fatalf("failed to write size histogram: %v", err)
	}
	if got := dtoMetric.GetHistogram().GetSampleSum(); got != 64 {
		t.Errorf("response size sum = %v, want 64", got)
	}
}
