// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "strings"

// Mod is one mod installed on the remote server. The control plane is
// authoritative for existence; activation per slot is tracked locally.
type Mod struct {
	Name          string  `json:"name"`
	Version       string  `json:"version"`
	RemoteModID   string  `json:"modId"`
	ActiveOnSlots SlotSet `json:"activeOn"`
}

// RemoteMod is a mod entry as announced by the control plane.
type RemoteMod struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ParseRemoteMod splits "<name words> <version>" on whitespace. A single
// token is a name with version "0".
func ParseRemoteMod(rm RemoteMod) (name, version string) {
	fields := strings.Fields(rm.Text)
	switch len(fields) {
	case 0:
		return "", "0"
	case 1:
		return fields[0], "0"
	}
	return strings.Join(fields[:len(fields)-1], " "), fields[len(fields)-1]
}

// MergeMods computes the authoritative mod set from an incoming list,
// carrying slot activation forward by exact name match and defaulting new
// mods to all slots.
func MergeMods(existing []Mod, incoming []RemoteMod) []Mod {
	byName := make(map[string]Mod, len(existing))
	for _, m := range existing {
		byName[m.Name] = m
	}

	out := make([]Mod, 0, len(incoming))
	for _, rm := range incoming {
		name, version := ParseRemoteMod(rm)
		if name == "" {
			continue
		}
		active := FullSlotSet()
		if prev, ok := byName[name]; ok && prev.ActiveOnSlots != nil {
			active = prev.ActiveOnSlots.Clone()
		}
		out = append(out, Mod{
			Name:          name,
			Version:       version,
			RemoteModID:   rm.ID,
			ActiveOnSlots: active,
		})
	}
	return out
}

// FindMod returns the mod with the exact name.
func FindMod(mods []Mod, name string) (Mod, bool) {
	for _, m := range mods {
		if m.Name == name {
			return m, true
		}
	}
	return Mod{}, false
}

// Saves holds the nine opaque save descriptors of a resource.
type Saves struct {
	Key   ResourceKey       `json:"key"`
	Slots map[SlotID]string `json:"slots"`
}

// NewSaves returns an empty record with all nine slots present.
func NewSaves(key ResourceKey) Saves {
	s := Saves{Key: key, Slots: make(map[SlotID]string, SlotCount)}
	for _, id := range allSlots {
		s.Slots[id] = ""
	}
	return s
}
