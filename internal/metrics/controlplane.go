// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ControlPlaneRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonectl_controlplane_requests_total",
		Help: "Control-plane HTTP calls by operation and result (ok, status, error, breaker_open)",
	}, []string{"op", "result"})

	controlPlaneDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zonectl_controlplane_request_duration_seconds",
		Help:    "Control-plane HTTP call latency by operation",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
)

// ObserveControlPlaneRequest records the outcome and latency of one call.
func ObserveControlPlaneRequest(op, result string, d time.Duration) {
	ControlPlaneRequestsTotal.WithLabelValues(op, result).Inc()
	controlPlaneDuration.WithLabelValues(op).Observe(d.Seconds())
}
