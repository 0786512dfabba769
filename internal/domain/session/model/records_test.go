// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRemoteMod(t *testing.T) {
	cases := []struct {
		text, name, version string
	}{
		{"Foo v1", "Foo", "v1"},
		{"  Even  Distribution 1.0.10 ", "Even Distribution", "1.0.10"},
		{"Solo", "Solo", "0"},
		{"", "", "0"},
	}
	for _, tc := range cases {
		name, version := ParseRemoteMod(RemoteMod{Text: tc.text})
		assert.Equal(t, tc.name, name, tc.text)
		assert.Equal(t, tc.version, version, tc.text)
	}
}

func TestMergeModsCarriesActivationForward(t *testing.T) {
	existing := []Mod{
		{Name: "Foo", Version: "v0", RemoteModID: "old", ActiveOnSlots: NewSlotSet("slot1")},
		{Name: "Gone", Version: "v9", RemoteModID: "x", ActiveOnSlots: NewSlotSet("slot2")},
	}
	incoming := []RemoteMod{{ID: "1", Text: "Foo v1"}, {ID: "2", Text: "Bar v2"}}

	got := MergeMods(existing, incoming)

	want := []Mod{
		{Name: "Foo", Version: "v1", RemoteModID: "1", ActiveOnSlots: NewSlotSet("slot1")},
		{Name: "Bar", Version: "v2", RemoteModID: "2", ActiveOnSlots: FullSlotSet()},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merged mods mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeModsDoesNotAliasExistingSets(t *testing.T) {
	existing := []Mod{{Name: "Foo", ActiveOnSlots: NewSlotSet("slot1")}}
	got := MergeMods(existing, []RemoteMod{{ID: "1", Text: "Foo 1"}})
	got[0].ActiveOnSlots["slot2"] = struct{}{}
	assert.False(t, existing[0].ActiveOnSlots.Has("slot2"))
}

func TestSlotSetJSONIsSortedArray(t *testing.T) {
	set := NewSlotSet("slot9", "slot1", "bogus", "slot3")
	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `["slot1","slot3","slot9"]`, string(data))

	var back SlotSet
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Has("slot3"))
	assert.Len(t, back, 3)
}

func TestParseSlotID(t *testing.T) {
	_, ok := ParseSlotID("slot5")
	assert.True(t, ok)
	for _, bad := range []string{"slot0", "slot10", "SLOT1", ""} {
		_, ok := ParseSlotID(bad)
		assert.False(t, ok, bad)
	}
	assert.Len(t, AllSlots(), SlotCount)
}

func TestResourceKeyValidate(t *testing.T) {
	require.NoError(t, ResourceKey{GuildID: "g", Token: "t"}.Validate())
	require.Error(t, ResourceKey{GuildID: "", Token: "t"}.Validate())
	require.Error(t, ResourceKey{GuildID: "g/x", Token: "t"}.Validate())
	assert.Equal(t, "g/t", ResourceKey{GuildID: "g", Token: "t"}.ID())
}

func TestMessageString(t *testing.T) {
	e := &Embed{Title: "Server Mods (1)"}
	e.AddField("Foo v1", "slot1")
	assert.Equal(t, "Server Mods (1)\nFoo v1: slot1", Message{Embed: e}.String())
	assert.Equal(t, "hi", Text("hi").String())
}
