// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lifecycle

import (
	"testing"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFullCycle(t *testing.T) {
	state := model.StateOffline
	events := []struct {
		ev   model.Event
		want model.LifecycleState
	}{
		{model.LifecycleStarting{LaunchID: "l1"}, model.StateStarting},
		{model.LifecycleRunning{LaunchID: "l1", Address: "1.2.3.4:34197"}, model.StateOnline},
		{model.LifecycleStopping{}, model.StateStopping},
		{model.LifecycleIdle{}, model.StateOffline},
	}
	for _, step := range events {
		out, err := Apply(state, step.ev)
		require.NoError(t, err)
		assert.True(t, out.Changed)
		assert.Equal(t, step.want, out.To)
		state = out.To
	}
}

func TestApplySameStateIsNoop(t *testing.T) {
	out, err := Apply(model.StateOnline, model.LifecycleRunning{LaunchID: "l1"})
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Equal(t, model.StateOnline, out.To)
}

func TestApplyRejectsNonLifecycleEvents(t *testing.T) {
	_, err := Apply(model.StateOffline, model.Secret{Secret: "s"})
	require.ErrorIs(t, err, ErrNotLifecycleEvent)
}

func TestEveryTargetIsValid(t *testing.T) {
	for _, tr := range transitionsTable {
		assert.True(t, tr.To.Valid(), tr.Event)
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Online at 1.2.3.4", Describe(model.StateOnline, "1.2.3.4"))
	assert.Equal(t, "Server offline", Describe(model.StateOffline, ""))
	assert.Equal(t, "Server booting up", Describe(model.StateStarting, ""))
	assert.Equal(t, "Server shutting down", Describe(model.StateStopping, ""))
}
