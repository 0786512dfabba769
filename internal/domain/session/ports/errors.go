// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ports

import "errors"

var (
	ErrNotFound         = errors.New("record not found")
	ErrUnexpectedStatus = errors.New("unexpected control-plane status")
)
