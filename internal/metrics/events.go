// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lykos_events_dispatched_total",
		Help: "Total number of event dispatches by event name",
	}, []string{"event"})

	EventsStoppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lykos_events_stopped_total",
		Help: "Total number of dispatches truncated by a listener",
	}, []string{"event"})

	ListenersRegistered = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lykos_listeners_registered",
		Help: "Number of listeners currently registered per event name",
	}, []string{"event"})
)

// IncEventDispatch records one dispatch of event.
func IncEventDispatch(event string) {
	EventsDispatchedTotal.WithLabelValues(labelOrUnknown(event)).Inc()
}

// IncEventStopped records an early-stopped dispatch.
func IncEventStopped(event string) {
	EventsStoppedTotal.WithLabelValues(labelOrUnknown(event)).Inc()
}

// SetListeners publishes the listener count for event.
func SetListeners(event string, n int) {
	ListenersRegistered.WithLabelValues(labelOrUnknown(event)).Set(float64(n))
}

func labelOrUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
