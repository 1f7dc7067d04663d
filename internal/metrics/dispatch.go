package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CommandsDispatched counts commands handed to the dispatcher by outcome.
	CommandsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterplane_commands_dispatched_total",
			Help: "Total number of backend commands dispatched",
		},
		[]string{"command", "status"},
	)

	// RelayDeliveries counts outbox deliveries to the backend by outcome.
	RelayDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterplane_relay_deliveries_total",
			Help: "Total number of outbox commands delivered to the backend",
		},
		[]string{"command", "status"},
	)

	// RelayPending tracks commands waiting in the outbox after the last relay pass.
	RelayPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterplane_relay_pending_commands",
			Help: "Number of commands pending delivery",
		},
	)
)

func registerDispatchMetrics() error {
	return registerAll(CommandsDispatched, RelayDeliveries, RelayPending)
}
