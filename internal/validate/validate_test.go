// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_URL(t *testing.T) {
	tests := []struct {
		name           string
		value          string
		allowedSchemes []string
		wantErr        bool
	}{
		{"valid http", "http://example.com", []string{"http", "https"}, false},
		{"valid wss", "wss://example.com/ws", []string{"ws", "wss"}, false},
		{"empty url", "", []string{"http"}, true},
		{"no host", "http://", []string{"http"}, true},
		{"invalid scheme", "ftp://example.com", []string{"http", "https"}, true},
		{"no scheme", "example.com", []string{"http"}, true},
		{"with port", "http://example.com:8080", []string{"http"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.URL("testURL", tt.value, tt.allowedSchemes)
			assert.Equal(t, tt.wantErr, !v.IsValid(), "err: %v", v.Err())
		})
	}
}

func TestValidator_NumericChecks(t *testing.T) {
	v := New()
	v.Range("concurrency", 0, 1, 64)
	v.Range("ok", 5, 1, 64)
	v.Positive("burst", 0)
	v.NonNegative("db", -1)
	v.FloatRange("sampling", 1.5, 0, 1)
	v.PositiveDuration("timeout", 0)
	v.PositiveDuration("fine", time.Second)

	fields := make([]string, 0, len(v.Errors()))
	for _, e := range v.Errors() {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{"concurrency", "burst", "db", "sampling", "timeout"}, fields)
}

func TestValidator_OneOfAndNotEmpty(t *testing.T) {
	v := New()
	v.OneOf("backend", "sqlite", []string{"memory", "sqlite"})
	v.NotEmpty("prefix", "   ")
	v.OneOf("backend", "mysql", []string{"memory", "sqlite"})

	require.Len(t, v.Errors(), 2)
	assert.Equal(t, "prefix", v.Errors()[0].Field)
	assert.Contains(t, v.Errors()[1].Message, `"mysql"`)
}

func TestValidator_LogLevel(t *testing.T) {
	v := New()
	v.LogLevel("logLevel", "")
	v.LogLevel("logLevel", "debug")
	require.True(t, v.IsValid())

	v.LogLevel("logLevel", "chatty")
	require.False(t, v.IsValid())
}

func TestValidator_Custom(t *testing.T) {
	v := New()
	v.Custom("servers[0]", "x", func(any) error { return errors.New("duplicate key") })
	require.Len(t, v.Errors(), 1)
	assert.Equal(t, "validation failed for servers[0]: duplicate key", v.Errors()[0].Error())
}

func TestValidationError_JoinsMessages(t *testing.T) {
	v := New()
	require.NoError(t, v.Err())

	v.AddError("a", "first", nil)
	v.AddError("b", "second", nil)
	err := v.Err()

	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors(), 2)
	assert.Equal(t, "validation failed for a: first; validation failed for b: second", err.Error())

	// the returned error is detached from later additions
	v.AddError("c", "third", nil)
	assert.Len(t, verr.Errors(), 2)
}
