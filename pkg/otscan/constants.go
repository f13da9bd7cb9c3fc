// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package otscan provides the CAN message set spoken between the OTS main
// controller and its expansion modules.
//
// Every message is a fixed 8-byte classic CAN frame. Multi-byte fields are
// little-endian and are split byte by byte on encode and reassembled on
// decode, so the wire format never depends on host layout. This package
// provides frame construction, parsing, module discovery and formatting.
package otscan

// Frame limits
const (
	MaxDataLength = 8
	MaxStandardID = 0x7FF
	MaxExtendedID = 0x1FFFFFFF
)

// Message identifiers - Discovery 0x410-0x41F
const (
	IDModuleAnnounce = 0x410 // module → main
	IDModuleQuery    = 0x411 // main → all modules
)

// Message identifiers - Audio module 0x420-0x42F
const (
	IDPlaySound   = 0x420 // main → audio
	IDStopSound   = 0x421 // main → audio
	IDSoundStatus = 0x422 // audio → main
	IDSoundAck    = 0x423 // audio → main
)

// Command tags (payload byte 0)
const (
	CmdPlaySound = 0x01
	CmdStopSound = 0x02
	CmdStatus    = 0x80
	CmdAck       = 0x81
)

// PLAY_SOUND flags (byte 1)
const (
	FlagInterrupt    = 1 << 0
	FlagHighPriority = 1 << 1
	FlagLoop         = 1 << 2
)

// STOP_SOUND flags (byte 1)
const (
	FlagStopAll = 1 << 0
)

// SOUND_STATUS state bits (byte 1)
const (
	StatusReady     = 1 << 0
	StatusSDMounted = 1 << 1
	StatusPlaying   = 1 << 2
	StatusMuted     = 1 << 3
	StatusError     = 1 << 4
)

// Special values
const (
	SoundIndexAny = 0xFFFF // stop: any/current sound; status: nothing playing
	VolumeUsePot  = 0xFF   // use the module's volume potentiometer
)

// AudioError represents error codes carried in SOUND_STATUS and SOUND_ACK
type AudioError uint8

// Audio error values
const (
	AudioErrOK             AudioError = 0x00
	AudioErrFileNotFound   AudioError = 0x01
	AudioErrSDError        AudioError = 0x02
	AudioErrBusy           AudioError = 0x03
	AudioErrInvalidIndex   AudioError = 0x04
	AudioErrMixerFull      AudioError = 0x05
	AudioErrInvalidQueueID AudioError = 0x06
)

// Module discovery
const (
	QueryEnumerateAll = 0xFF

	ModuleTypeNone  = 0x00
	ModuleTypeAudio = 0x01

	ModuleCapStatus  = 1 << 0
	ModuleCapOTA     = 1 << 1
	ModuleCapBattery = 1 << 2

	AudioBlockBase = 0x42 // 0x420-0x42F
)

// Timing
const (
	StatusIntervalMs = 5000 // SOUND_STATUS period
	DiscoveryWaitMs  = 500  // how long the controller listens for announces
)
