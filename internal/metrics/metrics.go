// Package metrics exposes the detector's counters on a Prometheus registry.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	// Classification loop counters
	FramesRead        atomic.Uint64
	FramesClassified  atomic.Uint64
	FramesPublished   atomic.Uint64
	RegionOutOfBounds atomic.Uint64

	// CurrentState mirrors the last classification: 0 unknown, 1 red,
	// 2 yellow, 3 green.
	CurrentState     atomic.Uint64
	StateTransitions atomic.Uint64

	// Config surface
	ConfigReloads  atomic.Uint64
	ConfigRejected atomic.Uint64

	// Latency tracking
	ClassifyLatencyMs atomic.Uint64
	EncodeLatencyMs   atomic.Uint64

	// Stream client tracking
	ActiveStreamClients atomic.Uint64
	TotalStreamClients  atomic.Uint64

	registry *prometheus.Registry
}

// New creates a Metrics instance with its collectors registered on a private
// registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	gauge := func(name, help string, load func() uint64) {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: name, Help: help},
			func() float64 { return float64(load()) },
		))
	}

	gauge("detector_frames_read_total", "Total raw frames pulled from the provider", m.FramesRead.Load)
	gauge("detector_frames_classified_total", "Total frames classified", m.FramesClassified.Load)
	gauge("detector_frames_published_total", "Total encoded frames published", m.FramesPublished.Load)
	gauge("detector_region_out_of_bounds_total", "Cycles where the master region fell outside the frame", m.RegionOutOfBounds.Load)

	gauge("detector_state", "Current state (0=unknown 1=red 2=yellow 3=green)", m.CurrentState.Load)
	gauge("detector_state_transitions_total", "Total state transitions", m.StateTransitions.Load)

	gauge("detector_config_reloads_total", "Total configuration reloads applied", m.ConfigReloads.Load)
	gauge("detector_config_rejected_total", "Total rejected configuration uploads", m.ConfigRejected.Load)

	gauge("detector_classify_latency_ms", "Latest classification latency in milliseconds", m.ClassifyLatencyMs.Load)
	gauge("detector_encode_latency_ms", "Latest JPEG encode latency in milliseconds", m.EncodeLatencyMs.Load)

	gauge("detector_stream_clients", "Currently connected stream clients", m.ActiveStreamClients.Load)
	gauge("detector_stream_clients_total", "Total stream clients ever connected", m.TotalStreamClients.Load)
}

// UpdateClassifyLatency records the latest classification duration.
func (m *Metrics) UpdateClassifyLatency(d time.Duration) {
	m.ClassifyLatencyMs.Store(uint64(d.Milliseconds()))
}

// UpdateEncodeLatency records the latest encode duration.
func (m *Metrics) UpdateEncodeLatency(d time.Duration) {
	m.EncodeLatencyMs.Store(uint64(d.Milliseconds()))
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server on addr.
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
