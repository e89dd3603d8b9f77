// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lykos_sessions_total",
		Help: "Game sessions by lifecycle outcome",
	}, []string{"result"})

	PhaseTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lykos_phase_transitions_total",
		Help: "Completed phase transitions by phase entered",
	}, []string{"phase"})

	Players = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lykos_players",
		Help: "Players in the current roster",
	})
)

// IncSession records a session reaching result (started, finished, stopped).
func IncSession(result string) {
	SessionsTotal.WithLabelValues(labelOrUnknown(result)).Inc()
}

// IncPhaseTransition records entering phase.
func IncPhaseTransition(phase string) {
	PhaseTransitionsTotal.WithLabelValues(labelOrUnknown(phase)).Inc()
}

// SetPlayers publishes the roster size.
func SetPlayers(n int) {
	Players.Set(float64(n))
}
