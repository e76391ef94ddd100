// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "management"

var (
	MessagesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "messages_created_total",
		Help:      "Group messages inserted.",
	})

	MessagesDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "messages_deleted_total",
		Help:      "Group messages removed, including cascaded replies.",
	})

	// CascadeSize observes how many rows a single delete removed.
	CascadeSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "delete_cascade_rows",
		Help:      "Rows removed per message delete (root plus descendants).",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	IntegrityErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "integrity_errors_total",
		Help:      "Writes rejected because the referenced parent message does not exist.",
	})

	WSClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "clients",
		Help:      "Connected chatroom WebSocket clients on this instance.",
	})

	RouteRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "route_requests_total",
		Help:      "Requests dispatched through the route tables, by route name and status.",
	}, []string{"route", "status"})
)

func init() {
	prometheus.MustRegister(
		MessagesCreated,
		MessagesDeleted,
		CascadeSize,
		IntegrityErrors,
		WSClients,
		RouteRequests,
	)
}
