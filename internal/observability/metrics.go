package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the notifier.
type Metrics struct {
	CyclesTotal     *prometheus.CounterVec // labels: outcome
	CycleDuration   prometheus.Histogram
	StageDuration   *prometheus.HistogramVec // labels: stage
	PipelineRunning prometheus.Gauge

	// Map rendering metrics.
	MapFetchAttempts *prometheus.CounterVec // labels: result={success,client_error,error}
	MapsRendered     *prometheus.CounterVec // labels: result={rendered,unavailable,failed}

	// Enrichment metrics.
	PlacesCache *prometheus.CounterVec // labels: result={hit,miss}

	// Delivery metrics.
	Deliveries             *prometheus.CounterVec // labels: kind={photo,text}, outcome={success,error}
	LastPublishedMagnitude prometheus.Gauge
	ArchiveErrors          prometheus.Counter
}

// NewMetrics creates and registers all notifier metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates the notifier metrics and registers them with reg.
// Commands that never serve /metrics pass a private registry.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quakewatch",
			Name:      "cycles_total",
			Help:      "Poll cycles by terminal outcome.",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quakewatch",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete poll cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quakewatch",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quakewatch",
			Name:      "pipeline_running",
			Help:      "1 when the poll loop is active, 0 when shut down.",
		}),
		MapFetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quakewatch",
			Name:      "map_fetch_attempts_total",
			Help:      "Static map requests by result.",
		}, []string{"result"}),
		MapsRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quakewatch",
			Name:      "maps_rendered_total",
			Help:      "Map render calls by result.",
		}, []string{"result"}),
		PlacesCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quakewatch",
			Name:      "places_cache_total",
			Help:      "Nearby-place cache lookups by result.",
		}, []string{"result"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quakewatch",
			Name:      "deliveries_total",
			Help:      "Channel deliveries by kind and outcome.",
		}, []string{"kind", "outcome"}),
		LastPublishedMagnitude: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quakewatch",
			Name:      "last_published_magnitude",
			Help:      "Magnitude of the most recently published event.",
		}),
		ArchiveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quakewatch",
			Name:      "archive_errors_total",
			Help:      "Publications that could not be written to the archive topic.",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.StageDuration,
		m.PipelineRunning,
		m.MapFetchAttempts,
		m.MapsRendered,
		m.PlacesCache,
		m.Deliveries,
		m.LastPublishedMagnitude,
		m.ArchiveErrors,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		CyclesTotal:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quakewatch", Name: "cycles_total"}, []string{"outcome"}),
		CycleDuration:          prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "quakewatch", Name: "cycle_duration_seconds"}),
		StageDuration:          prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "quakewatch", Name: "stage_duration_seconds"}, []string{"stage"}),
		PipelineRunning:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "quakewatch", Name: "pipeline_running"}),
		MapFetchAttempts:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quakewatch", Name: "map_fetch_attempts_total"}, []string{"result"}),
		MapsRendered:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quakewatch", Name: "maps_rendered_total"}, []string{"result"}),
		PlacesCache:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quakewatch", Name: "places_cache_total"}, []string{"result"}),
		Deliveries:             prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quakewatch", Name: "deliveries_total"}, []string{"kind", "outcome"}),
		LastPublishedMagnitude: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "quakewatch", Name: "last_published_magnitude"}),
		ArchiveErrors:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "quakewatch", Name: "archive_errors_total"}),
	}
}
