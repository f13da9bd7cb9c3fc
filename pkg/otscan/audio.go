// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otscan

import (
	"fmt"

	"github.com/Thermoquad/otsbridge/pkg/result"
)

// Audio module message builders and parsers.
//
// Payload layouts (byte offsets):
//
//	PLAY_SOUND   [0x01, flags, idx_lo, idx_hi, volume, 0, req_lo, req_hi]
//	STOP_SOUND   [0x02, flags, idx_lo, idx_hi, 0,      0, req_lo, req_hi]
//	SOUND_STATUS [0x80, state, cur_lo, cur_hi, error, volume, up_lo, up_hi]
//	SOUND_ACK    [0x81, ok,    idx_lo, idx_hi, error, 0, req_lo, req_hi]

// PlaySound is the decoded PLAY_SOUND command
type PlaySound struct {
	Flags      uint8
	SoundIndex uint16
	Volume     uint8 // 0-100, or VolumeUsePot
	RequestID  uint16
}

// StopSound is the decoded STOP_SOUND command
type StopSound struct {
	Flags      uint8
	SoundIndex uint16 // SoundIndexAny stops the current sound
	RequestID  uint16
}

// SoundStatus is the periodic audio module heartbeat
type SoundStatus struct {
	State        uint8
	CurrentSound uint16
	Error        AudioError
	Volume       uint8
	UptimeSec    uint16
}

// SoundAck acknowledges a PLAY_SOUND or STOP_SOUND
type SoundAck struct {
	OK         bool
	SoundIndex uint16
	Error      AudioError
	RequestID  uint16
}

// Playing reports whether the status says a sound is currently playing
func (s SoundStatus) Playing() bool { return s.State&StatusPlaying != 0 }

// Ready reports whether the module has finished initialization
func (s SoundStatus) Ready() bool { return s.State&StatusReady != 0 }

// BuildPlaySound creates a PLAY_SOUND frame (0x420)
func BuildPlaySound(soundIndex uint16, flags uint8, volume uint8, requestID uint16) Frame {
	f := Frame{ID: IDPlaySound, Length: MaxDataLength}
	f.Data[0] = CmdPlaySound
	f.Data[1] = flags
	f.Data[2] = byte(soundIndex)
	f.Data[3] = byte(soundIndex >> 8)
	f.Data[4] = volume
	f.Data[5] = 0
	f.Data[6] = byte(requestID)
	f.Data[7] = byte(requestID >> 8)
	return f
}

// BuildStopSound creates a STOP_SOUND frame (0x421).
// Use SoundIndexAny with FlagStopAll to silence everything.
func BuildStopSound(soundIndex uint16, flags uint8, requestID uint16) Frame {
	f := Frame{ID: IDStopSound, Length: MaxDataLength}
	f.Data[0] = CmdStopSound
	f.Data[1] = flags
	f.Data[2] = byte(soundIndex)
	f.Data[3] = byte(soundIndex >> 8)
	f.Data[6] = byte(requestID)
	f.Data[7] = byte(requestID >> 8)
	return f
}

// BuildSoundStatus creates a SOUND_STATUS frame (0x422), as sent by the audio module
func BuildSoundStatus(s SoundStatus) Frame {
	f := Frame{ID: IDSoundStatus, Length: MaxDataLength}
	f.Data[0] = CmdStatus
	f.Data[1] = s.State
	f.Data[2] = byte(s.CurrentSound)
	f.Data[3] = byte(s.CurrentSound >> 8)
	f.Data[4] = byte(s.Error)
	f.Data[5] = s.Volume
	f.Data[6] = byte(s.UptimeSec)
	f.Data[7] = byte(s.UptimeSec >> 8)
	return f
}

// BuildSoundAck creates a SOUND_ACK frame (0x423), as sent by the audio module
func BuildSoundAck(a SoundAck) Frame {
	f := Frame{ID: IDSoundAck, Length: MaxDataLength}
	f.Data[0] = CmdAck
	if a.OK {
		f.Data[1] = 1
	}
	f.Data[2] = byte(a.SoundIndex)
	f.Data[3] = byte(a.SoundIndex >> 8)
	f.Data[4] = byte(a.Error)
	f.Data[6] = byte(a.RequestID)
	f.Data[7] = byte(a.RequestID >> 8)
	return f
}

// checkFrame applies the shared decode guard: identifier, length and tag.
func checkFrame(f *Frame, id uint32, tag byte, name string) error {
	if f == nil {
		return fmt.Errorf("%s: nil frame: %w", name, result.ErrInvalidArgument)
	}
	if f.ID != id {
		return fmt.Errorf("%s: id 0x%03X, want 0x%03X: %w", name, f.ID, id, result.ErrNotFound)
	}
	if f.Length < MaxDataLength {
		return fmt.Errorf("%s: length %d, want %d: %w", name, f.Length, MaxDataLength, result.ErrNotFound)
	}
	if f.Data[0] != tag {
		return fmt.Errorf("%s: tag 0x%02X, want 0x%02X: %w", name, f.Data[0], tag, result.ErrNotFound)
	}
	return nil
}

// ParseSoundStatus decodes a SOUND_STATUS frame.
// Fails with result.ErrNotFound on id, length or tag mismatch; the
// returned struct is zero on any failure.
func ParseSoundStatus(f *Frame) (SoundStatus, error) {
	if err := checkFrame(f, IDSoundStatus, CmdStatus, "SOUND_STATUS"); err != nil {
		return SoundStatus{}, err
	}
	d := f.Data
	return SoundStatus{
		State:        d[1],
		CurrentSound: uint16(d[2]) | uint16(d[3])<<8,
		Error:        AudioError(d[4]),
		Volume:       d[5],
		UptimeSec:    uint16(d[6]) | uint16(d[7])<<8,
	}, nil
}

// ParseSoundAck decodes a SOUND_ACK frame with the same guard as ParseSoundStatus
func ParseSoundAck(f *Frame) (SoundAck, error) {
	if err := checkFrame(f, IDSoundAck, CmdAck, "SOUND_ACK"); err != nil {
		return SoundAck{}, err
	}
	d := f.Data
	return SoundAck{
		OK:         d[1] != 0,
		SoundIndex: uint16(d[2]) | uint16(d[3])<<8,
		Error:      AudioError(d[4]),
		RequestID:  uint16(d[6]) | uint16(d[7])<<8,
	}, nil
}

// ParsePlaySound decodes a PLAY_SOUND frame (audio module side)
func ParsePlaySound(f *Frame) (PlaySound, error) {
	if err := checkFrame(f, IDPlaySound, CmdPlaySound, "PLAY_SOUND"); err != nil {
		return PlaySound{}, err
	}
	d := f.Data
	return PlaySound{
		Flags:      d[1],
		SoundIndex: uint16(d[2]) | uint16(d[3])<<8,
		Volume:     d[4],
		RequestID:  uint16(d[6]) | uint16(d[7])<<8,
	}, nil
}

// ParseStopSound decodes a STOP_SOUND frame (audio module side)
func ParseStopSound(f *Frame) (StopSound, error) {
	if err := checkFrame(f, IDStopSound, CmdStopSound, "STOP_SOUND"); err != nil {
		return StopSound{}, err
	}
	d := f.Data
	return StopSound{
		Flags:      d[1],
		SoundIndex: uint16(d[2]) | uint16(d[3])<<8,
		RequestID:  uint16(d[6]) | uint16(d[7])<<8,
	}, nil
}

// String returns the audio error name
func (e AudioError) String() string {
	switch e {
	case AudioErrOK:
		return "OK"
	case AudioErrFileNotFound:
		return "FILE_NOT_FOUND"
	case AudioErrSDError:
		return "SD_ERROR"
	case AudioErrBusy:
		return "BUSY"
	case AudioErrInvalidIndex:
		return "INVALID_INDEX"
	case AudioErrMixerFull:
		return "MIXER_FULL"
	case AudioErrInvalidQueueID:
		return "INVALID_QUEUE_ID"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(e))
	}
}
