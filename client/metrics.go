package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for the requests counter.
const (
	outcomeOK        = "ok"
	outcomeTimeout   = "timeout"
	outcomeTransport = "transport"
	outcomeBusiness  = "business"
	outcomeDecode    = "decode"
	outcomeCanceled  = "canceled"
)

// Metrics tracks exchanges and streams. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	requests     *prometheus.CounterVec
	inFlight     prometheus.Gauge
	latency      *prometheus.HistogramVec
	streams      *prometheus.CounterVec
	streamEvents prometheus.Counter
}

// NewMetrics registers the client collectors on reg. Passing nil uses a
// private registry, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmops",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Dispatched exchanges by method and outcome",
		}, []string{"method", "outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "llmops",
			Subsystem: "client",
			Name:      "requests_in_flight",
			Help:      "Exchanges waiting on the transport or the deadline",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "llmops",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Time until the deadline race settled",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 100},
		}, []string{"method"}),
		streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmops",
			Subsystem: "client",
			Name:      "streams_total",
			Help:      "Streams by terminal state",
		}, []string{"state"}),
		streamEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "llmops",
			Subsystem: "client",
			Name:      "stream_events_total",
			Help:      "Events delivered to stream consumers",
		}),
	}

	reg.MustRegister(m.requests, m.inFlight, m.latency, m.streams, m.streamEvents)
	return m
}

func (m *Metrics) startRequest() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) endRequest(method Method, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.requests.WithLabelValues(string(method), outcome).Inc()
	m.latency.WithLabelValues(string(method)).Observe(latency.Seconds())
}

func (m *Metrics) streamState(state string) {
	if m == nil {
		return
	}
	m.streams.WithLabelValues(state).Inc()
}

func (m *Metrics) streamEvent() {
	if m == nil {
		return
	}
	m.streamEvents.Inc()
}
