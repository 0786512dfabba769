// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldResourceID    = "resource_id"
	FieldGuildID       = "guild_id"
	FieldServerName    = "server"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldLaunchID      = "launch_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldCommand   = "command"
	FieldFrameType = "frame_type"
	FieldOperation = "op"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldStatus   = "status"

	// Connection fields
	FieldURL     = "url"
	FieldAttempt = "attempt"
	FieldDelay   = "delay"
)
