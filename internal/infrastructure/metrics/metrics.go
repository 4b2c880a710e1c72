// Package metrics holds the hub's Prometheus instruments.
//
// All instruments live on a private registry so tests can create as many
// independent Metrics values as they like.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hemma"

// Drop reasons for RouterDropped.
const (
	DropMalformed   = "malformed"
	DropCertificate = "certificate"
	DropDecrypt     = "decrypt"
	DropPlaintext   = "plaintext"
)

// Bridge request outcomes for BridgeRequests.
const (
	OutcomeOK      = "ok"
	OutcomeTimeout = "timeout"
)

// Metrics contains every instrument the hub records.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsActive   prometheus.Gauge
	RequestsReceived    prometheus.Counter
	RouterDropped       *prometheus.CounterVec
	RepliesSent         prometheus.Counter
	BroadcastsSent      prometheus.Counter
	BroadcastFailures   prometheus.Counter
	CertificatesIssued  prometheus.Counter
	SourceMessages      *prometheus.CounterVec
	BridgeRequests      *prometheus.CounterVec
	UpstreamConnected   prometheus.Gauge
	UpstreamReconnects  prometheus.Counter
	RequestQueueBacklog prometheus.Gauge
	HTTPRequests        *prometheus.CounterVec
}

// New creates and registers all instruments plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "connections_active",
			Help:      "Number of connections currently registered for broadcast",
		}),
		RequestsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "requests_total",
			Help:      "Client frames taken off the request queue",
		}),
		RouterDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "dropped_total",
			Help:      "Client frames silently dropped, by reason",
		}, []string{"reason"}),
		RepliesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "replies_total",
			Help:      "Encrypted replies sent to a single client",
		}),
		BroadcastsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "broadcasts_total",
			Help:      "Broadcast payloads sealed and fanned out",
		}),
		BroadcastFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "broadcast_failures_total",
			Help:      "Connections dropped because a broadcast send failed",
		}),
		CertificatesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_issued_total",
			Help:      "Certificates issued by the handshake endpoint",
		}),
		SourceMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "messages_total",
			Help:      "Messages received from sources",
		}, []string{"source"}),
		BridgeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "requests_total",
			Help:      "Correlated bridge requests, by outcome",
		}, []string{"outcome"}),
		UpstreamConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "connected",
			Help:      "Upstream link status (0=disconnected, 1=connected)",
		}),
		UpstreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "connect_attempts_total",
			Help:      "Upstream connection attempts",
		}),
		RequestQueueBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "request_queue_length",
			Help:      "Items waiting on the request queue",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Completed HTTP requests, by listener and status code",
		}, []string{"listener", "code"}),
	}

	m.registry.MustRegister(
		m.ConnectionsActive,
		m.RequestsReceived,
		m.RouterDropped,
		m.RepliesSent,
		m.BroadcastsSent,
		m.BroadcastFailures,
		m.CertificatesIssued,
		m.SourceMessages,
		m.BridgeRequests,
		m.UpstreamConnected,
		m.UpstreamReconnects,
		m.RequestQueueBacklog,
		m.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
