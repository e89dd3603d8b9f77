// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BehaviorFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lykos_behavior_failures_total",
		Help: "Listener and handler failures caught by the failure boundary",
	}, []string{"kind"})

	DiagnosticsReportedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lykos_diagnostics_reported_total",
		Help: "External diagnostic reports by result (reported, cached, failed, dropped)",
	}, []string{"result"})
)

// IncBehaviorFailure records a caught failure for a site kind (listener, command).
func IncBehaviorFailure(kind string) {
	BehaviorFailuresTotal.WithLabelValues(labelOrUnknown(kind)).Inc()
}

// IncDiagnosticReport records the outcome of an external report attempt.
func IncDiagnosticReport(result string) {
	DiagnosticsReportedTotal.WithLabelValues(labelOrUnknown(result)).Inc()
}
