package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
)

// Metrics holds every Prometheus collector of the scanner. A nil *Metrics is
// valid and records nothing, so adapters can take it unconditionally.
type Metrics struct {
	assessmentsTotal   *prometheus.CounterVec
	scoreHistogram     prometheus.Histogram
	extractionFailures prometheus.Counter
	predictionsTotal   *prometheus.CounterVec
	lookupsTotal       *prometheus.CounterVec
	feedFetchesTotal   *prometheus.CounterVec
	feedIOCs           *prometheus.GaugeVec
	httpErrorsTotal    *prometheus.CounterVec
	circuitState       *prometheus.GaugeVec
}

// NewMetrics registers the collectors on reg. Passing a fresh
// prometheus.NewRegistry() keeps tests independent of the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		assessmentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phishwatch_assessments_total",
				Help: "Total number of URL assessments by threat level",
			},
			[]string{"level"},
		),
		scoreHistogram: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "phishwatch_threat_score",
				Help:    "Distribution of threat scores (0-100)",
				Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		),
		extractionFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "phishwatch_extraction_failures_total",
				Help: "Total number of URLs whose features could not be extracted",
			},
		),
		predictionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phishwatch_predictions_total",
				Help: "Total number of model predictions by label",
			},
			[]string{"label"},
		),
		lookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phishwatch_reputation_lookups_total",
				Help: "Total number of reputation lookups by checker and result",
			},
			[]string{"checker", "result"},
		),
		feedFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phishwatch_feed_fetches_total",
				Help: "Total number of threat feed downloads by provider and status",
			},
			[]string{"provider", "status"},
		),
		feedIOCs: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "phishwatch_feed_iocs",
				Help: "Number of indicators returned by the last download of each feed",
			},
			[]string{"provider"},
		),
		httpErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phishwatch_http_client_errors_total",
				Help: "Total number of outbound HTTP errors by client and error type",
			},
			[]string{"client", "error_type"},
		),
		circuitState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "phishwatch_circuit_breaker_open",
				Help: "1 while the named circuit breaker is open, 0 otherwise",
			},
			[]string{"name"},
		),
	}
}

func (m *Metrics) RecordAssessment(a domain.Assessment) {
	if m == nil {
		return
	}
	m.assessmentsTotal.WithLabelValues(string(a.Level)).Inc()
	m.scoreHistogram.Observe(float64(a.Score))
	if a.ExtractionFailed {
		m.extractionFailures.Inc()
	}
	if a.Prediction != nil {
		m.predictionsTotal.WithLabelValues(string(a.Prediction.Label)).Inc()
	}
}

func (m *Metrics) RecordLookup(checker, result string) {
	if m == nil {
		return
	}
	m.lookupsTotal.WithLabelValues(checker, result).Inc()
}

func (m *Metrics) RecordFeedFetch(provider string, iocs int, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	} else {
		m.feedIOCs.WithLabelValues(provider).Set(float64(iocs))
	}
	m.feedFetchesTotal.WithLabelValues(provider, status).Inc()
}

// RecordHTTPError counts outbound request failures (auth, rate_limit,
// server_error, connection, circuit_open, ...).
func (m *Metrics) RecordHTTPError(client, errorType string) {
	if m == nil {
		return
	}
	m.httpErrorsTotal.WithLabelValues(client, errorType).Inc()
}

func (m *Metrics) RecordCircuitState(name string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.circuitState.WithLabelValues(name).Set(v)
}
