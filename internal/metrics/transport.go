// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransportMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lykos_transport_messages_total",
		Help: "Chat lines handled by the transport by direction",
	}, []string{"direction"})

	TransportThrottledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lykos_transport_throttled_total",
		Help: "Outbound lines that had to wait for a token",
	}, []string{"limit_type"})
)

// IncTransportMessage records one inbound or outbound line.
func IncTransportMessage(direction string) {
	TransportMessagesTotal.WithLabelValues(labelOrUnknown(direction)).Inc()
}

// IncTransportThrottled records a line delayed by limitType.
func IncTransportThrottled(limitType string) {
	TransportThrottledTotal.WithLabelValues(labelOrUnknown(limitType)).Inc()
}
