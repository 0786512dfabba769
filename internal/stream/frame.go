// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ManuGH/zonectl/internal/domain/session/model"
)

// Frame discriminators sent by the control plane.
const (
	FrameVisit    = "visit"
	FrameOptions  = "options"
	FrameMods     = "mods"
	FrameStarting = "starting"
	FrameRunning  = "running"
	FrameStopping = "stopping"
	FrameIdle     = "idle"
	FrameLog      = "log"
	FrameInfo     = "info"
	FrameConsole  = "console"
	FrameSlot     = "slot"
)

// Option set names carried by FrameOptions.
const (
	OptionsSaves    = "saves"
	OptionsVersions = "versions"
	OptionsRegions  = "regions"
)

type frame struct {
	Type     string            `json:"type"`
	Secret   string            `json:"secret"`
	Name     string            `json:"name"`
	Options  json.RawMessage   `json:"options"`
	Mods     []model.RemoteMod `json:"mods"`
	LaunchID string            `json:"launchId"`
	Socket   string            `json:"socket"`
	Line     string            `json:"line"`
	Time     *float64          `json:"time"`
}

// ParseFrame decodes one text frame. ok is false for frames that are not a
// JSON object, lack a known type, or miss the payload their type requires.
// It also returns the discriminator for metrics ("" when undecodable).
func ParseFrame(data []byte) (ev model.Event, frameType string, ok bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, "", false
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", false
	}

	switch f.Type {
	case FrameVisit:
		if f.Secret == "" {
			return nil, f.Type, false
		}
		return model.Secret{Secret: f.Secret}, f.Type, true

	case FrameOptions:
		ev, ok := parseOptions(f)
		return ev, f.Type, ok

	case FrameMods:
		if f.Mods == nil {
			return nil, f.Type, false
		}
		return model.ModList{Mods: f.Mods}, f.Type, true

	case FrameStarting:
		return model.LifecycleStarting{LaunchID: f.LaunchID}, f.Type, true

	case FrameRunning:
		return model.LifecycleRunning{LaunchID: f.LaunchID, Address: f.Socket}, f.Type, true

	case FrameStopping:
		return model.LifecycleStopping{}, f.Type, true

	case FrameIdle:
		return model.LifecycleIdle{}, f.Type, true

	case FrameLog:
		// a missing time is treated as fresh
		line := model.InfoLine{Line: f.Line}
		if f.Time != nil {
			line.Time = time.UnixMilli(int64(*f.Time))
		}
		return line, f.Type, true

	case FrameInfo, FrameConsole, FrameSlot:
		return model.Diagnostic{Kind: f.Type, Line: f.Line}, f.Type, true
	}
	return nil, f.Type, false
}

func parseOptions(f frame) (model.Event, bool) {
	if len(f.Options) == 0 {
		return nil, false
	}
	switch f.Name {
	case OptionsSaves:
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(f.Options, &raw); err != nil {
			return nil, false
		}
		slots := make(map[model.SlotID]string, model.SlotCount)
		for _, id := range model.AllSlots() {
			slots[id] = scalarString(raw[string(id)])
		}
		return model.SaveSlots{Slots: slots}, true

	case OptionsVersions:
		list, err := orderedValues(f.Options)
		if err != nil {
			return nil, false
		}
		return model.Versions{Versions: list}, true

	case OptionsRegions:
		list, err := orderedValues(f.Options)
		if err != nil {
			return nil, false
		}
		return model.Regions{Regions: list}, true
	}
	return nil, false
}

// orderedValues accepts either an array (strings or scalars) or an object,
// whose keys are returned in document order.
func orderedValues(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty options")
	}
	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			if s := scalarString(it); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	case '{':
		dec := json.NewDecoder(bytes.NewReader(raw))
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		var out []string
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, _ := tok.(string)
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			if key != "" {
				out = append(out, key)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("options must be an array or object")
}

func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return ""
	}
	return string(bytes.TrimSpace(raw))
}
