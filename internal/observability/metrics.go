package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "modvolc"

// Metrics holds the Prometheus counters, histograms, and gauges for report runs.
type Metrics struct {
	Registry *prometheus.Registry

	FetchRequests *prometheus.CounterVec // labels: outcome={success,error,cache_hit}
	FetchDuration prometheus.Histogram
	PayloadBytes  prometheus.Histogram

	LinesParsed     prometheus.Counter
	LinesSkipped    prometheus.Counter
	RecordsFiltered prometheus.Gauge

	ArtifactsWritten *prometheus.CounterVec // labels: kind={plot,csv,map,raw}
	Runs             *prometheus.CounterVec // labels: status={ok,empty,error}
	RunDuration      prometheus.Histogram
	LastSuccess      prometheus.Gauge

	GeocodeRequests *prometheus.CounterVec // labels: method={forward,reverse}, outcome={success,error}
	Published       prometheus.Counter
}

// NewMetrics creates the pipeline metrics and registers them, together with
// the Go and process collectors, on a dedicated registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// NewMetricsForTesting creates Metrics on a fresh registry without the
// runtime collectors.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Archive requests by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of archive requests, retries included.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		PayloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payload_bytes",
			Help:      "Size of archive payloads.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}),
		LinesParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payload_lines_parsed_total",
			Help:      "Alert lines parsed into records.",
		}),
		LinesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payload_lines_skipped_total",
			Help:      "Malformed alert lines dropped by the parser.",
		}),
		RecordsFiltered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_in_radius",
			Help:      "Records inside the search radius in the last run.",
		}),
		ArtifactsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_written_total",
			Help:      "Output files written by kind.",
		}, []string{"kind"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by status.",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-parse-aggregate-render run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that completed without error.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Records published to Kafka.",
		}),
	}

	m.Registry.MustRegister(
		m.FetchRequests,
		m.FetchDuration,
		m.PayloadBytes,
		m.LinesParsed,
		m.LinesSkipped,
		m.RecordsFiltered,
		m.ArtifactsWritten,
		m.Runs,
		m.RunDuration,
		m.LastSuccess,
		m.GeocodeRequests,
		m.Published,
	)
	return m
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
