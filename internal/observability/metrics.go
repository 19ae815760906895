package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "floodguard"

// Metrics holds the Prometheus collectors for the telemetry dashboard.
type Metrics struct {
	Fetches          *prometheus.CounterVec // labels: outcome={success,failure,discarded}
	FetchDuration    prometheus.Histogram
	ReadingsPerFetch prometheus.Histogram

	AlertTier *prometheus.GaugeVec // labels: device; 0 normal, 1 warning, 2 critical

	ConnectivityOnline prometheus.Gauge
	ConnectivityProbes *prometheus.CounterVec // labels: result={online,offline}

	AlertsPublished *prometheus.CounterVec // labels: outcome={success,error}
	StreamClients   prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Fetches,
		m.FetchDuration,
		m.ReadingsPerFetch,
		m.AlertTier,
		m.ConnectivityOnline,
		m.ConnectivityProbes,
		m.AlertsPublished,
		m.StreamClients,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Telemetry fetches by outcome. Discarded fetches resolved after the selection moved on.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a telemetry read including normalization.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ReadingsPerFetch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "readings_per_fetch",
			Help:      "Number of readings in a successfully applied series.",
			Buckets:   []float64{0, 1, 10, 50, 100, 500, 1000, 5000},
		}),
		AlertTier: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_tier",
			Help:      "Current alert tier per device: 0 normal, 1 warning, 2 critical.",
		}, []string{"device"}),
		ConnectivityOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connectivity_online",
			Help:      "1 when the liveness signal is online, 0 otherwise.",
		}),
		ConnectivityProbes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connectivity_probes_total",
			Help:      "Liveness probes by result.",
		}, []string{"result"}),
		AlertsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_published_total",
			Help:      "Alert tier transitions handed to the notifier, by outcome.",
		}, []string{"outcome"}),
		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Open snapshot stream connections.",
		}),
	}
}
