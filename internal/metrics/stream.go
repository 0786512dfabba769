// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StreamConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "zonectl_stream_connected",
		Help: "Whether the control-plane stream of a resource is connected (1) or not (0)",
	}, []string{"resource"})

	StreamReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonectl_stream_reconnects_total",
		Help: "Reconnect attempts scheduled per resource",
	}, []string{"resource"})

	StreamDisconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonectl_stream_disconnects_total",
		Help: "Stream disconnects by reason (dial_failed, read_error, peer_closed, closed)",
	}, []string{"reason"})

	StreamFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonectl_stream_frames_total",
		Help: "Inbound frames by discriminator type; invalid and unknown frames are dropped",
	}, []string{"type"})
)

// SetStreamConnected toggles the connection gauge for a resource.
func SetStreamConnected(resource string, connected bool) {
	v := 0.0
	if connected {
		v = 1.0
	}
	StreamConnected.WithLabelValues(resource).Set(v)
}

// RecordFrame counts one inbound frame.
func RecordFrame(frameType string) {
	if frameType == "" {
		frameType = "invalid"
	}
	StreamFramesTotal.WithLabelValues(frameType).Inc()
}

// RecordDisconnect counts one disconnect by reason.
func RecordDisconnect(reason string) {
	StreamDisconnectsTotal.WithLabelValues(reason).Inc()
}

// RecordReconnect counts one scheduled reconnect for a resource.
func RecordReconnect(resource string) {
	StreamReconnectsTotal.WithLabelValues(resource).Inc()
}

// ForgetResource drops per-resource series once a session is destroyed.
func ForgetResource(resource string) {
	StreamConnected.DeleteLabelValues(resource)
	StreamReconnectsTotal.DeleteLabelValues(resource)
	for _, s := range lifecycleStates {
		sessionState.DeleteLabelValues(resource, s)
	}
}
