// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lykos_reporter_breaker_state",
		Help: "Breaker state of an outbound diagnostic service such as the paste reporter, 1 for the current state",
	}, []string{"service", "state"})

	BreakerTripsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lykos_reporter_breaker_trips_total",
		Help: "Times the breaker stopped calls to a diagnostic service, by trigger",
	}, []string{"service", "trigger"})
)

var breakerStates = []string{"closed", "half-open", "open"}

// SetCircuitBreakerState marks state as the only active state of service.
func SetCircuitBreakerState(service, state string) {
	service = labelOrUnknown(service)
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		BreakerState.WithLabelValues(service, s).Set(v)
	}
}

// RecordCircuitBreakerTrip counts one transition to open.
func RecordCircuitBreakerTrip(service, trigger string) {
	BreakerTripsTotal.WithLabelValues(labelOrUnknown(service), labelOrUnknown(trigger)).Inc()
}
