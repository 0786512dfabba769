// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAppliesWAL(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "state.sqlite"), DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)
}

func TestVerifyIntegrityHealthy(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "ok.sqlite"), Config{})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = db.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)")
	require.NoError(t, err)

	issues, err := VerifyIntegrity(context.Background(), db, "quick")
	require.NoError(t, err)
	assert.Nil(t, issues)

	issues, err = VerifyIntegrity(context.Background(), db, "full")
	require.NoError(t, err)
	assert.Nil(t, issues)
}
