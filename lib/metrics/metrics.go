// Package metrics provides Prometheus collectors for the CBC service.
//
// All methods are nil-safe: a nil *Metrics disables collection.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cbcservice"

// Rejection reasons recorded before a message reaches the dispatcher.
const (
	ReasonUndersized = "undersized"
	ReasonOversized  = "oversized"
	ReasonQueueFull  = "queue_full"
	ReasonRateLimit  = "rate_limited"
)

// Metrics holds the service collectors.
type Metrics struct {
	// RequestsTotal counts dispatched requests by operation and response status.
	RequestsTotal *prometheus.CounterVec

	// ActiveSessions tracks the number of live session slots.
	ActiveSessions prometheus.Gauge

	// RejectedTotal counts messages dropped or refused before dispatch.
	RejectedTotal *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. If reg is nil the
// collectors are created but not registered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of dispatched requests by operation and status",
		}, []string{"operation", "status"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of session slots currently in use",
		}),
		RejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_messages_total",
			Help:      "Total number of messages rejected before dispatch by reason",
		}, []string{"reason"}),
	}

	if reg != nil {
		reg.MustRegister(m.RequestsTotal, m.ActiveSessions, m.RejectedTotal)
	}

	return m
}

// RecordRequest counts one dispatched request.
func (m *Metrics) RecordRequest(operation, status string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
}

// SetActiveSessions records the current live session count.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// RecordRejected counts one message rejected before dispatch.
func (m *Metrics) RecordRejected(reason string) {
	if m == nil {
		return
	}
	m.RejectedTotal.WithLabelValues(reason).Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
