// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package events defines the game events pushed by the game server and
// their WebSocket wire format (JSON text or CBOR binary frames).
package events

// Type is a game event type
type Type uint8

// Event types. Wire names must stay in sync with the game server.
const (
	Info Type = iota
	Error
	GameSpawning
	GameStart
	GameEnd
	Win
	Lose
	SoundPlay
	HardwareDiagnostic
	NukeLaunched
	HydroLaunched
	MIRVLaunched
	NukeExploded
	NukeIntercepted
	AlertAtom
	AlertHydro
	AlertMIRV
	AlertLand
	AlertNaval
	TroopUpdate
	HardwareTest
	Invalid
)

var typeNames = [...]string{
	Info:               "INFO",
	Error:              "ERROR",
	GameSpawning:       "GAME_SPAWNING",
	GameStart:          "GAME_START",
	GameEnd:            "GAME_END",
	Win:                "WIN",
	Lose:               "LOSE",
	SoundPlay:          "SOUND_PLAY",
	HardwareDiagnostic: "HARDWARE_DIAGNOSTIC",
	NukeLaunched:       "NUKE_LAUNCHED",
	HydroLaunched:      "HYDRO_LAUNCHED",
	MIRVLaunched:       "MIRV_LAUNCHED",
	NukeExploded:       "NUKE_EXPLODED",
	NukeIntercepted:    "NUKE_INTERCEPTED",
	AlertAtom:          "ALERT_ATOM",
	AlertHydro:         "ALERT_HYDRO",
	AlertMIRV:          "ALERT_MIRV",
	AlertLand:          "ALERT_LAND",
	AlertNaval:         "ALERT_NAVAL",
	TroopUpdate:        "TROOP_UPDATE",
	HardwareTest:       "HARDWARE_TEST",
}

// String returns the wire name
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "INVALID"
}

// ParseType maps a wire name to a Type. The nuke shortcuts "atom",
// "hydro" and "mirv" all map to NukeLaunched. Unknown names give Invalid.
func ParseType(s string) Type {
	for i, name := range typeNames {
		if name == s {
			return Type(i)
		}
	}
	switch s {
	case "atom", "hydro", "mirv":
		return NukeLaunched
	}
	return Invalid
}

// IsLaunch reports whether t is an outgoing launch
func (t Type) IsLaunch() bool {
	return t == NukeLaunched || t == HydroLaunched || t == MIRVLaunched
}

// IsAlert reports whether t is an incoming alert
func (t Type) IsAlert() bool {
	return t >= AlertAtom && t <= AlertNaval
}

// IsGameState reports whether t affects the game phase
func (t Type) IsGameState() bool {
	switch t {
	case GameSpawning, GameStart, GameEnd, Win, Lose:
		return true
	}
	return false
}
