package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
)

func gatherCount(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return total
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	// Registering twice on fresh registries must not panic
	NewMetrics(prometheus.NewRegistry())
	NewMetrics(prometheus.NewRegistry())
}

func TestRecordAssessment(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordAssessment(domain.Assessment{Score: 95, Level: domain.Critical})
	m.RecordAssessment(domain.Assessment{Score: 0, Level: domain.Informational, ExtractionFailed: true})
	m.RecordAssessment(domain.Assessment{
		Score:      20,
		Level:      domain.Low,
		Prediction: &domain.Prediction{Label: domain.LabelLegit},
	})

	if got := gatherCount(t, reg, "phishwatch_assessments_total"); got != 3 {
		t.Errorf("Expected 3 assessments, got %v", got)
	}
	if got := gatherCount(t, reg, "phishwatch_threat_score"); got != 3 {
		t.Errorf("Expected 3 score observations, got %v", got)
	}
	if got := gatherCount(t, reg, "phishwatch_extraction_failures_total"); got != 1 {
		t.Errorf("Expected 1 extraction failure, got %v", got)
	}
	if got := gatherCount(t, reg, "phishwatch_predictions_total"); got != 1 {
		t.Errorf("Expected 1 prediction, got %v", got)
	}
}

func TestRecordFeedFetch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordFeedFetch("openphish", 120, nil)
	m.RecordFeedFetch("phishtank", 0, errors.New("timeout"))

	if got := gatherCount(t, reg, "phishwatch_feed_fetches_total"); got != 2 {
		t.Errorf("Expected 2 fetches, got %v", got)
	}
	if got := gatherCount(t, reg, "phishwatch_feed_iocs"); got != 120 {
		t.Errorf("Expected gauge of 120 IOCs, got %v", got)
	}
}

func TestRecordLookupAndHTTPErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	tests := []struct {
		checker string
		result  string
	}{
		{"virustotal", "malicious"},
		{"virustotal", "clean"},
		{"virustotal", "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.result, func(t *testing.T) {
			m.RecordLookup(tt.checker, tt.result)
		})
	}
	m.RecordHTTPError("virustotal", "rate_limit")
	m.RecordCircuitState("virustotal", true)

	if got := gatherCount(t, reg, "phishwatch_reputation_lookups_total"); got != 3 {
		t.Errorf("Expected 3 lookups, got %v", got)
	}
	if got := gatherCount(t, reg, "phishwatch_http_client_errors_total"); got != 1 {
		t.Errorf("Expected 1 HTTP error, got %v", got)
	}
	if got := gatherCount(t, reg, "phishwatch_circuit_breaker_open"); got != 1 {
		t.Errorf("Expected open circuit gauge, got %v", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	// Should not panic
	m.RecordAssessment(domain.Assessment{Level: domain.High})
	m.RecordLookup("virustotal", "clean")
	m.RecordFeedFetch("openphish", 1, nil)
	m.RecordHTTPError("virustotal", "auth")
	m.RecordCircuitState("virustotal", false)
}
