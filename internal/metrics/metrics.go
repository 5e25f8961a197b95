// Package metrics exposes Prometheus counters for the membership engines.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector methods are safe to call on a nil receiver, which records nothing.
type Collector struct {
	operations    *prometheus.CounterVec
	requests      *prometheus.CounterVec
	authEvents    *prometheus.CounterVec
	notifications *prometheus.CounterVec
	gatherer      prometheus.Gatherer
}

func NewCollector(reg *prometheus.Registry) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookclub",
			Name:      "membership_operations_total",
			Help:      "Membership engine operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookclub",
			Name:      "membership_requests_total",
			Help:      "Membership requests by lifecycle event.",
		}, []string{"event"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookclub",
			Name:      "auth_events_total",
			Help:      "Credential lifecycle events.",
		}, []string{"event"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookclub",
			Name:      "notifications_total",
			Help:      "Notifications by type and emission result.",
		}, []string{"type", "result"}),
		gatherer: reg,
	}

	reg.MustRegister(c.operations, c.requests, c.authEvents, c.notifications)
	return c
}

// RecordOperation counts one engine call. outcome is "ok" or an error kind.
func (c *Collector) RecordOperation(operation, outcome string) {
	if c == nil {
		return
	}
	c.operations.WithLabelValues(operation, outcome).Inc()
}

func (c *Collector) RecordRequestEvent(event string) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(event).Inc()
}

func (c *Collector) RecordAuthEvent(event string) {
	if c == nil {
		return
	}
	c.authEvents.WithLabelValues(event).Inc()
}

func (c *Collector) RecordNotification(notificationType, result string) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues(notificationType, result).Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
