// Package metrics exposes gateway counters in Prometheus format. All recording
// methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wagate"

// Metrics holds every collector on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	signals            *prometheus.CounterVec
	illegalTransitions prometheus.Counter
	storeWriteFailures prometheus.Counter
	liveSessions       prometheus.Gauge
	messages           *prometheus.CounterVec
	groupScans         *prometheus.CounterVec
	observers          prometheus.Gauge
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_signals_total",
			Help:      "Lifecycle signals received from messaging clients.",
		}, []string{"kind"}),
		illegalTransitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "illegal_transitions_total",
			Help:      "Lifecycle signals ignored because the session state did not allow them.",
		}),
		storeWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_write_failures_total",
			Help:      "Failed attempts to persist the session collection.",
		}),
		liveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions",
			Help:      "Sessions currently registered in this process.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Send requests by outcome.",
		}, []string{"target", "result"}),
		groupScans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "group_scans_total",
			Help:      "Qualifying-group enumerations by outcome.",
		}, []string{"result"}),
		observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observers",
			Help:      "Connected notification channel observers.",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.signals,
		m.illegalTransitions,
		m.storeWriteFailures,
		m.liveSessions,
		m.messages,
		m.groupScans,
		m.observers,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) SignalReceived(kind string) {
	if m != nil {
		m.signals.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IllegalTransition() {
	if m != nil {
		m.illegalTransitions.Inc()
	}
}

func (m *Metrics) StoreWriteFailed() {
	if m != nil {
		m.storeWriteFailures.Inc()
	}
}

func (m *Metrics) SetLiveSessions(n int) {
	if m != nil {
		m.liveSessions.Set(float64(n))
	}
}

// MessageResult records a send outcome. target is "direct" or "group".
func (m *Metrics) MessageResult(target, result string) {
	if m != nil {
		m.messages.WithLabelValues(target, result).Inc()
	}
}

func (m *Metrics) GroupScan(result string) {
	if m != nil {
		m.groupScans.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ObserverConnected() {
	if m != nil {
		m.observers.Inc()
	}
}

func (m *Metrics) ObserverDisconnected() {
	if m != nil {
		m.observers.Dec()
	}
}
