// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package events

// Fallback sound indices used when an event carries no soundIndex
const (
	SoundGameStart     = 1
	SoundAlertAtom     = 10
	SoundAlertHydro    = 11
	SoundAlertMIRV     = 12
	SoundAlertLand     = 13
	SoundAlertNaval    = 14
	SoundNukeLaunch    = 20
	SoundNukeExplode   = 21
	SoundNukeIntercept = 22
	SoundVictory       = 30
	SoundDefeat        = 31
	SoundTestBeep      = 100
)

// SoundIndexFor maps an event type to its fallback sound. Zero means the
// event has no sound.
func SoundIndexFor(t Type) uint16 {
	switch t {
	case GameStart:
		return SoundGameStart
	case AlertAtom:
		return SoundAlertAtom
	case AlertHydro:
		return SoundAlertHydro
	case AlertMIRV:
		return SoundAlertMIRV
	case AlertLand:
		return SoundAlertLand
	case AlertNaval:
		return SoundAlertNaval
	case NukeLaunched, HydroLaunched, MIRVLaunched:
		return SoundNukeLaunch
	case NukeExploded:
		return SoundNukeExplode
	case NukeIntercepted:
		return SoundNukeIntercept
	case Win:
		return SoundVictory
	case Lose:
		return SoundDefeat
	case HardwareTest:
		return SoundTestBeep
	default:
		return 0
	}
}

// SoundIndexForID maps a server soundId string to an index
func SoundIndexForID(id string) uint16 {
	switch id {
	case "game_start":
		return 1
	case "game_player_death":
		return 2
	case "game_victory":
		return 3
	case "game_defeat":
		return 4
	default:
		return 0
	}
}
