// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lifecycle

import "errors"

var (
	ErrNotLifecycleEvent = errors.New("event does not drive the lifecycle")
	ErrNoTransition      = errors.New("no transition for event")
)
