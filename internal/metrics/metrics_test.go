// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, g.Write(m))
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestSetSessionStateIsOneHot(t *testing.T) {
	SetSessionState("g/one-hot", "online")
	assert.Equal(t, 1.0, gaugeValue(t, sessionState.WithLabelValues("g/one-hot", "online")))
	assert.Equal(t, 0.0, gaugeValue(t, sessionState.WithLabelValues("g/one-hot", "offline")))

	SetSessionState("g/one-hot", "stopping")
	assert.Equal(t, 0.0, gaugeValue(t, sessionState.WithLabelValues("g/one-hot", "online")))
	assert.Equal(t, 1.0, gaugeValue(t, sessionState.WithLabelValues("g/one-hot", "stopping")))
}

func TestSetCircuitBreakerStateIsOneHot(t *testing.T) {
	SetCircuitBreakerState("cp-test", "open")
	assert.Equal(t, 1.0, gaugeValue(t, circuitBreakerState.WithLabelValues("cp-test", "open")))
	assert.Equal(t, 0.0, gaugeValue(t, circuitBreakerState.WithLabelValues("cp-test", "closed")))
}

func TestRecordFrameDefaultsToInvalid(t *testing.T) {
	before := counterValue(t, StreamFramesTotal.WithLabelValues("invalid"))
	RecordFrame("")
	assert.Equal(t, before+1, counterValue(t, StreamFramesTotal.WithLabelValues("invalid")))
}

func TestStreamConnectedGauge(t *testing.T) {
	SetStreamConnected("g/conn", true)
	assert.Equal(t, 1.0, gaugeValue(t, StreamConnected.WithLabelValues("g/conn")))
	SetStreamConnected("g/conn", false)
	assert.Equal(t, 0.0, gaugeValue(t, StreamConnected.WithLabelValues("g/conn")))
}
