// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// SlotID names one of the nine save/configuration buckets.
type SlotID string

// SlotCount is the fixed number of slots per resource.
const SlotCount = 9

var allSlots = func() []SlotID {
	out := make([]SlotID, SlotCount)
	for i := range out {
		out[i] = SlotID(fmt.Sprintf("slot%d", i+1))
	}
	return out
}()

// AllSlots returns slot1..slot9 in order.
func AllSlots() []SlotID {
	return append([]SlotID(nil), allSlots...)
}

// ParseSlotID validates a raw slot id.
func ParseSlotID(raw string) (SlotID, bool) {
	id := SlotID(raw)
	return id, id.Valid()
}

// Valid reports whether the id is one of the nine slots.
func (s SlotID) Valid() bool {
	return s.index() >= 0
}

func (s SlotID) index() int {
	for i, v := range allSlots {
		if v == s {
			return i
		}
	}
	return -1
}

// SlotSet is a set of slot ids. It marshals as a sorted JSON array.
type SlotSet map[SlotID]struct{}

// NewSlotSet builds a set, silently dropping invalid ids.
func NewSlotSet(ids ...SlotID) SlotSet {
	set := make(SlotSet, len(ids))
	for _, id := range ids {
		if id.Valid() {
			set[id] = struct{}{}
		}
	}
	return set
}

// FullSlotSet returns a set containing all nine slots.
func FullSlotSet() SlotSet {
	return NewSlotSet(allSlots...)
}

// Has reports membership.
func (s SlotSet) Has(id SlotID) bool {
	_, ok := s[id]
	return ok
}

// Clone returns an independent copy.
func (s SlotSet) Clone() SlotSet {
	out := make(SlotSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Sorted returns members in slot order.
func (s SlotSet) Sorted() []SlotID {
	out := make([]SlotID, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index() < out[j].index() })
	return out
}

func (s SlotSet) String() string {
	parts := make([]string, 0, len(s))
	for _, id := range s.Sorted() {
		parts = append(parts, string(id))
	}
	return strings.Join(parts, ", ")
}

func (s SlotSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *SlotSet) UnmarshalJSON(data []byte) error {
	var ids []SlotID
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewSlotSet(ids...)
	return nil
}
