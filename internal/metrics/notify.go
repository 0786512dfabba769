// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonectl_notifications_total",
		Help: "Notification deliveries by sink and result",
	}, []string{"sink", "result"})

	configReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonectl_config_reloads_total",
		Help: "Configuration reload attempts by result",
	}, []string{"result"})
)

// RecordNotification counts one notification delivery attempt.
func RecordNotification(sink string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	NotificationsTotal.WithLabelValues(sink, result).Inc()
}

// RecordConfigReload counts one configuration reload attempt.
func RecordConfigReload(err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	configReloadsTotal.WithLabelValues(result).Inc()
}
