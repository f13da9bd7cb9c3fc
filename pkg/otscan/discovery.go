// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otscan

import (
	"fmt"

	"github.com/Thermoquad/otsbridge/pkg/result"
)

// ModuleInfo is the content of a MODULE_ANNOUNCE frame.
//
// Layout: [type, fw_major, fw_minor, caps, block_base, node_id, 0, 0]
type ModuleInfo struct {
	Type         uint8
	FirmwareMaj  uint8
	FirmwareMin  uint8
	Capabilities uint8
	BlockBase    uint8 // upper byte of the module's CAN id block
	NodeID       uint8
}

// announceMinLength is the shortest MODULE_ANNOUNCE accepted
const announceMinLength = 6

// BuildModuleQuery creates a MODULE_QUERY frame (0x411).
// moduleType selects a single type, or QueryEnumerateAll.
func BuildModuleQuery(moduleType uint8) Frame {
	f := Frame{ID: IDModuleQuery, Length: MaxDataLength}
	f.Data[0] = moduleType
	return f
}

// BuildModuleAnnounce creates a MODULE_ANNOUNCE frame (0x410)
func BuildModuleAnnounce(info ModuleInfo) Frame {
	f := Frame{ID: IDModuleAnnounce, Length: MaxDataLength}
	f.Data[0] = info.Type
	f.Data[1] = info.FirmwareMaj
	f.Data[2] = info.FirmwareMin
	f.Data[3] = info.Capabilities
	f.Data[4] = info.BlockBase
	f.Data[5] = info.NodeID
	return f
}

// ParseModuleQuery returns the requested module type
func ParseModuleQuery(f *Frame) (uint8, error) {
	if f == nil {
		return 0, fmt.Errorf("MODULE_QUERY: nil frame: %w", result.ErrInvalidArgument)
	}
	if f.ID != IDModuleQuery || f.Length < 1 {
		return 0, fmt.Errorf("MODULE_QUERY: id 0x%03X len %d: %w", f.ID, f.Length, result.ErrNotFound)
	}
	return f.Data[0], nil
}

// ParseModuleAnnounce decodes a MODULE_ANNOUNCE frame. Announces shorter
// than six bytes are rejected.
func ParseModuleAnnounce(f *Frame) (ModuleInfo, error) {
	if f == nil {
		return ModuleInfo{}, fmt.Errorf("MODULE_ANNOUNCE: nil frame: %w", result.ErrInvalidArgument)
	}
	if f.ID != IDModuleAnnounce {
		return ModuleInfo{}, fmt.Errorf("MODULE_ANNOUNCE: id 0x%03X: %w", f.ID, result.ErrNotFound)
	}
	if f.Length < announceMinLength {
		return ModuleInfo{}, fmt.Errorf("MODULE_ANNOUNCE: length %d, want >= %d: %w",
			f.Length, announceMinLength, result.ErrNotFound)
	}
	d := f.Data
	return ModuleInfo{
		Type:         d[0],
		FirmwareMaj:  d[1],
		FirmwareMin:  d[2],
		Capabilities: d[3],
		BlockBase:    d[4],
		NodeID:       d[5],
	}, nil
}

// ModuleName returns the human-readable module type
func ModuleName(moduleType uint8) string {
	switch moduleType {
	case ModuleTypeNone:
		return "NONE"
	case ModuleTypeAudio:
		return "AUDIO"
	default:
		return "UNKNOWN"
	}
}

// String renders the announce in one line
func (m ModuleInfo) String() string {
	return fmt.Sprintf("%s v%d.%d node=%d block=0x%02X0 caps=0x%02X",
		ModuleName(m.Type), m.FirmwareMaj, m.FirmwareMin, m.NodeID, m.BlockBase, m.Capabilities)
}
