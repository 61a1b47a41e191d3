// ABOUTME: Prometheus instrumentation for CRAS stream sessions
// ABOUTME: Counts buffers, committed frames, protocol errors and teardown
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the stream session collectors
type Metrics struct {
	// Buffer exchange
	Buffers         *prometheus.CounterVec // by direction
	FramesCommitted *prometheus.CounterVec // by direction

	// Failures
	Errors        *prometheus.CounterVec // buffer request failures by kind
	ReleaseErrors *prometheus.CounterVec // swallowed release/teardown failures by op

	// Lifecycle
	ActiveStreams prometheus.Gauge
	Disconnects   prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg uses
// the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Buffers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cras_stream_buffers_total",
			Help: "Total number of buffers handed to the caller",
		}, []string{"direction"}),
		FramesCommitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cras_stream_frames_committed_total",
			Help: "Total number of frames committed to shared memory",
		}, []string{"direction"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cras_stream_errors_total",
			Help: "Total number of failed buffer requests",
		}, []string{"kind"}),
		ReleaseErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cras_stream_release_errors_total",
			Help: "Total number of logged failures while releasing buffers or tearing down streams",
		}, []string{"op"}),
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cras_streams_active",
			Help: "Current number of open streams",
		}),
		Disconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "cras_stream_disconnects_total",
			Help: "Total number of disconnect messages sent",
		}),
	}
}

// BufferHanded records a buffer returned to the caller
func (m *Metrics) BufferHanded(direction string) {
	if m == nil {
		return
	}
	m.Buffers.WithLabelValues(direction).Inc()
}

// FramesCommit records frames committed by a buffer release
func (m *Metrics) FramesCommit(direction string, frames int) {
	if m == nil {
		return
	}
	m.FramesCommitted.WithLabelValues(direction).Add(float64(frames))
}

// RequestFailed records a failed buffer request
func (m *Metrics) RequestFailed(kind string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(kind).Inc()
}

// ReleaseFailed records a failure that was logged instead of returned
func (m *Metrics) ReleaseFailed(op string) {
	if m == nil {
		return
	}
	m.ReleaseErrors.WithLabelValues(op).Inc()
}

// StreamOpened records a new stream
func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.ActiveStreams.Inc()
}

// StreamClosed records a stream teardown
func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.ActiveStreams.Dec()
}

// DisconnectSent records a disconnect message handed to the server socket
func (m *Metrics) DisconnectSent() {
	if m == nil {
		return
	}
	m.Disconnects.Inc()
}
