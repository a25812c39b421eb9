// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Emit results.
const (
	ResultDelivered = "delivered"
	ResultNoMembers = "no_members"
)

var (
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notify_hub_connections",
		Help: "Currently open hub connections",
	})

	Groups = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "notify_hub_groups",
		Help: "Groups with at least one member",
	})

	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_hub_registrations_total",
			Help: "Registration messages by outcome (joined, duplicate, forbidden)",
		},
		[]string{"outcome"},
	)

	Emits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_hub_emits_total",
			Help: "Emit calls by result",
		},
		[]string{"result"},
	)

	Deliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_hub_deliveries_total",
		Help: "Messages handed to connection send buffers",
	})

	SlowConsumers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_hub_slow_consumers_total",
		Help: "Connections dropped because their send buffer was full",
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_hub_rate_limited_messages_total",
		Help: "Inbound client messages discarded by the per-connection limiter",
	})
)
