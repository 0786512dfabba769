// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// Resource attributes
	ServiceNameKey           = "service.name"
	ServiceVersionKey        = "service.version"
	DeploymentEnvironmentKey = "deployment.environment"
	ServiceInstanceKey       = "service.instance.id"

	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPURLKey        = "http.url"

	// Control-plane attributes
	ControlPlaneOpKey   = "controlplane.op"
	ControlPlaneSlotKey = "controlplane.slot"
	ControlPlaneModKey  = "controlplane.mod_id"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// ControlPlaneAttributes creates span attributes for one control-plane call.
// Empty values are omitted.
func ControlPlaneAttributes(op, slot, modID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(ControlPlaneOpKey, op)}
	if slot != "" {
		attrs = append(attrs, attribute.String(ControlPlaneSlotKey, slot))
	}
	if modID != "" {
		attrs = append(attrs, attribute.String(ControlPlaneModKey, modID))
	}
	return attrs
}
