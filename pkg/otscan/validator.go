// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otscan

import "fmt"

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyLengthMismatch AnomalyType = iota
	AnomalyBadTag
	AnomalyReservedNonZero
	AnomalyUnknownFlags
	AnomalyInvalidVolume
	AnomalyInvalidError
	AnomalyUnknownID
)

// ValidationError represents a frame validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

const (
	knownPlayFlags = FlagInterrupt | FlagHighPriority | FlagLoop
	knownStatus    = StatusReady | StatusSDMounted | StatusPlaying | StatusMuted | StatusError
)

// ValidateFrame inspects a frame for anomalies a parser tolerates: nonzero
// reserved bytes, unknown flag bits and out-of-range values.
// Returns an empty slice if the frame is clean.
func ValidateFrame(f *Frame) []ValidationError {
	errs := []ValidationError{}

	switch f.ID {
	case IDPlaySound, IDStopSound, IDSoundStatus, IDSoundAck:
		if f.Length != MaxDataLength {
			return []ValidationError{{
				Type:    AnomalyLengthMismatch,
				Message: fmt.Sprintf("%s length %d (expected 8)", FormatMessageType(f.ID), f.Length),
			}}
		}
	case IDModuleAnnounce:
		if f.Length < announceMinLength {
			return []ValidationError{{
				Type:    AnomalyLengthMismatch,
				Message: fmt.Sprintf("MODULE_ANNOUNCE length %d (expected >= 6)", f.Length),
			}}
		}
		return errs
	case IDModuleQuery:
		return errs
	default:
		return []ValidationError{{
			Type:    AnomalyUnknownID,
			Message: fmt.Sprintf("unknown id 0x%03X", f.ID),
		}}
	}

	d := f.Data
	expectedTag := map[uint32]byte{
		IDPlaySound:   CmdPlaySound,
		IDStopSound:   CmdStopSound,
		IDSoundStatus: CmdStatus,
		IDSoundAck:    CmdAck,
	}[f.ID]
	if d[0] != expectedTag {
		return []ValidationError{{
			Type:    AnomalyBadTag,
			Message: fmt.Sprintf("%s tag 0x%02X (expected 0x%02X)", FormatMessageType(f.ID), d[0], expectedTag),
		}}
	}

	switch f.ID {
	case IDPlaySound:
		if d[1]&^knownPlayFlags != 0 {
			errs = append(errs, ValidationError{
				Type:    AnomalyUnknownFlags,
				Message: fmt.Sprintf("PLAY_SOUND unknown flags 0x%02X", d[1]&^knownPlayFlags),
			})
		}
		if d[4] > 100 && d[4] != VolumeUsePot {
			errs = append(errs, ValidationError{
				Type:    AnomalyInvalidVolume,
				Message: fmt.Sprintf("PLAY_SOUND volume=%d (max 100)", d[4]),
			})
		}
		if d[5] != 0 {
			errs = append(errs, reservedError("PLAY_SOUND", 5, d[5]))
		}

	case IDStopSound:
		if d[1]&^FlagStopAll != 0 {
			errs = append(errs, ValidationError{
				Type:    AnomalyUnknownFlags,
				Message: fmt.Sprintf("STOP_SOUND unknown flags 0x%02X", d[1]&^FlagStopAll),
			})
		}
		for _, i := range []int{4, 5} {
			if d[i] != 0 {
				errs = append(errs, reservedError("STOP_SOUND", i, d[i]))
			}
		}

	case IDSoundStatus:
		if d[1]&^knownStatus != 0 {
			errs = append(errs, ValidationError{
				Type:    AnomalyUnknownFlags,
				Message: fmt.Sprintf("SOUND_STATUS unknown state bits 0x%02X", d[1]&^knownStatus),
			})
		}
		if AudioError(d[4]) > AudioErrInvalidQueueID {
			errs = append(errs, invalidErrorCode("SOUND_STATUS", d[4]))
		}
		if d[5] > 100 {
			errs = append(errs, ValidationError{
				Type:    AnomalyInvalidVolume,
				Message: fmt.Sprintf("SOUND_STATUS volume=%d (max 100)", d[5]),
			})
		}

	case IDSoundAck:
		if AudioError(d[4]) > AudioErrInvalidQueueID {
			errs = append(errs, invalidErrorCode("SOUND_ACK", d[4]))
		}
		if d[5] != 0 {
			errs = append(errs, reservedError("SOUND_ACK", 5, d[5]))
		}
	}

	return errs
}

func reservedError(name string, index int, value byte) ValidationError {
	return ValidationError{
		Type:    AnomalyReservedNonZero,
		Message: fmt.Sprintf("%s reserved byte %d = 0x%02X", name, index, value),
	}
}

func invalidErrorCode(name string, code byte) ValidationError {
	return ValidationError{
		Type:    AnomalyInvalidError,
		Message: fmt.Sprintf("%s error code 0x%02X (max 0x%02X)", name, code, uint8(AudioErrInvalidQueueID)),
	}
}
