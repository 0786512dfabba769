// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestNewProviderDisabledIsNoop(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false, ServiceName: "test"})
	require.NoError(t, err)
	assert.False(t, provider.Enabled())

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording())
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProviderInvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ExporterType: "invalid"})
	require.EqualError(t, err, "unsupported exporter type: invalid (supported: grpc, http)")
}

func TestNewProviderHTTPExporter(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "zonectl-test",
		ExporterType: ExporterHTTP,
		Endpoint:     "localhost:4318",
		Insecure:     true,
		SamplingRate: 0.5,
	})
	require.NoError(t, err)
	require.True(t, provider.Enabled())
	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestSamplerKeepsSampledParent(t *testing.T) {
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01},
		SpanID:     trace.SpanID{0x01},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	tests := []struct {
		name   string
		rate   float64
		parent bool
		want   sdktrace.SamplingDecision
	}{
		{"root never", 0, false, sdktrace.Drop},
		{"root always", 1, false, sdktrace.RecordAndSample},
		{"sampled parent overrides zero rate", 0, true, sdktrace.RecordAndSample},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.parent {
				ctx = trace.ContextWithRemoteSpanContext(ctx, parent)
			}
			res := newSampler(tt.rate).ShouldSample(sdktrace.SamplingParameters{
				ParentContext: ctx,
				TraceID:       trace.TraceID{0x02},
				Name:          "zonectl.controlplane.start",
			})
			assert.Equal(t, tt.want, res.Decision)
		})
	}
}

func TestResourceAttributesCarryService(t *testing.T) {
	attrs := resourceAttributes(Config{ServiceName: "zonectl", ServiceVersion: "1.2.3", Environment: "staging"})
	got := map[string]string{}
	for _, kv := range attrs {
		got[string(kv.Key)] = kv.Value.AsString()
	}
	assert.Equal(t, "zonectl", got[ServiceNameKey])
	assert.Equal(t, "1.2.3", got[ServiceVersionKey])
	assert.Equal(t, "staging", got[DeploymentEnvironmentKey])
}

func TestControlPlaneAttributesOmitsEmpty(t *testing.T) {
	attrs := ControlPlaneAttributes("start", "slot1", "")
	require.Len(t, attrs, 2)
	assert.Equal(t, ControlPlaneOpKey, string(attrs[0].Key))
	assert.Equal(t, "slot1", attrs[1].Value.AsString())
}
