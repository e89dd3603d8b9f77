// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var CommandDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lykos_command_decisions_total",
	Help: "Authorization decisions by command, verdict and deciding step",
}, []string{"command", "verdict", "step"})

// IncCommandDecision records one authorization decision.
func IncCommandDecision(command, verdict, step string) {
	CommandDecisionsTotal.WithLabelValues(labelOrUnknown(command), labelOrUnknown(verdict), labelOrUnknown(step)).Inc()
}
