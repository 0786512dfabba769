// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "zonectl_session_state",
		Help: "Lifecycle state per resource (one-hot across offline, starting, online, stopping)",
	}, []string{"resource", "state"})

	SessionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonectl_session_transitions_total",
		Help: "Lifecycle state transitions",
	}, []string{"from", "to"})

	SessionLogLinesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonectl_session_log_lines_total",
		Help: "Inbound log lines by handling result (forwarded, stale, duplicate, filtered, ignored)",
	}, []string{"result"})

	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonectl_commands_total",
		Help: "Operator commands by command id and result (ok, rejected, unknown, usage)",
	}, []string{"command", "result"})

	ModTogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonectl_mod_toggles_total",
		Help: "Mod toggles during start by result (ok, failed, skipped)",
	}, []string{"result"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zonectl_sessions_active",
		Help: "Number of sessions owned by the supervisor",
	})
)

var lifecycleStates = []string{"offline", "starting", "online", "stopping"}

// SetSessionState records the active lifecycle state for a resource.
func SetSessionState(resource, state string) {
	for _, s := range lifecycleStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		sessionState.WithLabelValues(resource, s).Set(value)
	}
}

// RecordTransition counts one lifecycle transition.
func RecordTransition(from, to string) {
	SessionTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordLogLine counts one inbound log line by result.
func RecordLogLine(result string) {
	SessionLogLinesTotal.WithLabelValues(result).Inc()
}

// RecordCommand counts one operator command by result.
func RecordCommand(command, result string) {
	CommandsTotal.WithLabelValues(command, result).Inc()
}

// RecordModToggle counts one mod toggle call.
func RecordModToggle(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	ModTogglesTotal.WithLabelValues(result).Inc()
}

// RecordModToggleSkipped counts a mod left untouched because it has no
// remote id.
func RecordModToggleSkipped() {
	ModTogglesTotal.WithLabelValues("skipped").Inc()
}
