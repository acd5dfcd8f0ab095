// Package metrics defines the Prometheus metric collectors used across the
// pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	EventsReadTotal    *prometheus.CounterVec
	EventsInvalidTotal prometheus.Counter
	EventsInFlight     prometheus.Gauge
	PairsSelectedTotal *prometheus.CounterVec
	SelectionDuration  prometheus.Histogram
	FilesProcessed     *prometheus.CounterVec
	CheckpointSkips    prometheus.Counter
	SnapshotsTotal     *prometheus.CounterVec
	PairsPublished     *prometheus.CounterVec
	LeptonMultiplicity *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		EventsReadTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_read_total",
				Help: "Total event records read, by source (file, kafka).",
			},
			[]string{"source"},
		),
		EventsInvalidTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "events_invalid_total",
				Help: "Total event records rejected by validation.",
			},
		),
		EventsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "events_in_flight",
				Help: "Number of events currently being processed.",
			},
		),
		PairsSelectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairs_selected_total",
				Help: "Total selected dilepton pairs by channel (ee, emu, mumu).",
			},
			[]string{"channel"},
		),
		SelectionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "selection_duration_seconds",
				Help:    "Per-event selection latency across all three channels.",
				Buckets: []float64{1e-7, 5e-7, 1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 1e-3},
			},
		),
		FilesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "files_processed_total",
				Help: "Total event files processed by status (ok, error, skipped).",
			},
			[]string{"status"},
		),
		CheckpointSkips: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "checkpoint_skips_total",
				Help: "Files skipped because a checkpoint marked them done.",
			},
		),
		SnapshotsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapshots_total",
				Help: "Histogram snapshot writes and yield saves by status.",
			},
			[]string{"status"},
		),
		PairsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairs_published_total",
				Help: "Selected pairs published to Kafka by status.",
			},
			[]string{"status"},
		),
		LeptonMultiplicity: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lepton_multiplicity",
				Help:    "Candidate lepton multiplicity per event by species.",
				Buckets: []float64{0, 1, 2, 3, 4, 5, 6, 8, 10, 16},
			},
			[]string{"species"},
		),
	}

	prometheus.MustRegister(
		m.EventsReadTotal,
		m.EventsInvalidTotal,
		m.EventsInFlight,
		m.PairsSelectedTotal,
		m.SelectionDuration,
		m.FilesProcessed,
		m.CheckpointSkips,
		m.SnapshotsTotal,
		m.PairsPublished,
		m.LeptonMultiplicity,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
