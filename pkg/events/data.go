// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package events

import (
	"encoding/json"
	"fmt"
)

// toStringMap normalizes event data into a string-keyed map. The server
// sends data either as a nested object or as a JSON string; CBOR maps
// decode with interface{} keys.
func toStringMap(v interface{}) (map[string]interface{}, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		return val, nil
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(val))
		for key, item := range val {
			k, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("expected string map key, got %T", key)
			}
			m[k] = item
		}
		return m, nil
	case string:
		if val == "" {
			return nil, nil
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(val), &m); err != nil {
			return nil, fmt.Errorf("data string is not a JSON object: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("expected object, got %T", v)
	}
}

// Map value extraction helpers

// GetUint extracts a non-negative integer from event data
func GetUint(m map[string]interface{}, key string) (uint64, bool) {
	if m == nil {
		return 0, false
	}
	switch val := m[key].(type) {
	case uint64:
		return val, true
	case int64:
		if val >= 0 {
			return uint64(val), true
		}
	case float64:
		if val >= 0 {
			return uint64(val), true
		}
	}
	return 0, false
}

// GetString extracts a string from event data
func GetString(m map[string]interface{}, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok
}

// GetBool extracts a bool from event data
func GetBool(m map[string]interface{}, key string) (bool, bool) {
	if m == nil {
		return false, false
	}
	b, ok := m[key].(bool)
	return b, ok
}

// NukeData is the data carried by launch, alert and resolution events
type NukeData struct {
	UnitID   uint32
	HasUnit  bool
	NukeType string
}

// Nuke extracts nuke fields ("unitId", "nukeType")
func (e *Event) Nuke() NukeData {
	var d NukeData
	if id, ok := GetUint(e.Data, "unitId"); ok && id <= 0xFFFFFFFF {
		d.UnitID = uint32(id)
		d.HasUnit = true
	}
	d.NukeType, _ = GetString(e.Data, "nukeType")
	return d
}

// SoundData is the data carried by SOUND_PLAY events
type SoundData struct {
	Index        uint16
	Interrupt    bool
	HighPriority bool
}

// Sound extracts SOUND_PLAY fields. "soundIndex" wins over "soundId".
func (e *Event) Sound() (SoundData, error) {
	var d SoundData
	if idx, ok := GetUint(e.Data, "soundIndex"); ok && idx <= 0xFFFF {
		d.Index = uint16(idx)
	} else if id, ok := GetString(e.Data, "soundId"); ok {
		d.Index = SoundIndexForID(id)
		if d.Index == 0 {
			return SoundData{}, fmt.Errorf("unknown soundId %q", id)
		}
	} else {
		return SoundData{}, fmt.Errorf("event has no soundIndex or soundId")
	}
	d.Interrupt, _ = GetBool(e.Data, "interrupt")
	if p, ok := GetString(e.Data, "priority"); ok {
		d.HighPriority = p == "high"
	}
	return d, nil
}
