// Package metrics exposes Prometheus collectors for client side request,
// streaming and integrity accounting.
//
// A Metrics value owns its registry so several clients in one process can
// be observed independently. All methods are safe on a nil *Metrics, which
// lets callers pass metrics around unconditionally.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "manta"

// Stream directions used as the "direction" label.
const (
	Download = "download"
	Upload   = "upload"
)

// Stream failure kinds used as the "kind" label.
const (
	FailureDecode  = "decode"
	FailureTrailer = "trailer"
	FailureRead    = "read"
)

// Metrics holds the client collectors and the registry they are registered with.
type Metrics struct {
	reg       *prometheus.Registry
	inflight  prometheus.Gauge
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	bytes     *prometheus.CounterVec
	integrity prometheus.Counter
	streams   *prometheus.CounterVec
	deleted   prometheus.Counter
}

// New creates a Metrics instance with a fresh registry and registers collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		reg: reg,
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "inflight_requests",
			Help:      "Current number of requests awaiting a response.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total number of requests issued, partitioned by operation and status code.",
		}, []string{"op", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Time from sending a request to receiving response headers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "bytes_total",
			Help:      "Object body bytes transferred, partitioned by direction.",
		}, []string{"direction"}),
		integrity: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "checksum_mismatches_total",
			Help:      "Object bodies whose content-md5 did not match the bytes received.",
		}),
		streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "failures_total",
			Help:      "Event streams that terminated with an error, partitioned by kind.",
		}, []string{"kind"}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "deleted_entries_total",
			Help:      "Objects and directories removed by recursive deletes.",
		}),
	}

	reg.MustRegister(m.inflight, m.requests, m.latency, m.bytes, m.integrity, m.streams, m.deleted)
	return m
}

// Handler returns an http.Handler that serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// StartRequest marks a request as in flight. The returned func records its
// outcome; code is 0 when the transport failed before a response arrived.
func (m *Metrics) StartRequest(op string) func(code int) {
	if m == nil {
		return func(int) {}
	}
	start := time.Now()
	m.inflight.Inc()
	return func(code int) {
		m.inflight.Dec()
		label := "error"
		if code > 0 {
			label = strconv.Itoa(code)
		}
		m.requests.WithLabelValues(op, label).Inc()
		m.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// AddBytes counts n body bytes moved in direction.
func (m *Metrics) AddBytes(direction string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytes.WithLabelValues(direction).Add(float64(n))
}

// ChecksumMismatch counts one object body that failed verification.
func (m *Metrics) ChecksumMismatch() {
	if m == nil {
		return
	}
	m.integrity.Inc()
}

// StreamFailure counts one event stream that ended with an error of kind.
func (m *Metrics) StreamFailure(kind string) {
	if m == nil {
		return
	}
	m.streams.WithLabelValues(kind).Inc()
}

// Deleted counts one entry removed during a recursive delete.
func (m *Metrics) Deleted() {
	if m == nil {
		return
	}
	m.deleted.Inc()
}
