// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otscan

import (
	"fmt"
	"strings"
	"time"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(ts time.Time, f *Frame) string {
	timestamp := ts.Format("15:04:05.000")
	msgType := FormatMessageType(f.ID)

	idFmt := "%03X"
	if f.Extended {
		idFmt = "%08X"
	}
	out := fmt.Sprintf("[%s] %s (0x"+idFmt+") len=%d", timestamp, msgType, f.ID, f.Length)
	if f.RTR {
		return out + " RTR\n"
	}
	out += " data=" + formatHex(f.Payload()) + "\n"
	out += FormatPayload(f)
	return out
}

// FormatMessageType returns the human-readable name for a CAN identifier
func FormatMessageType(id uint32) string {
	switch id {
	// Discovery (0x410-0x41F)
	case IDModuleAnnounce:
		return "MODULE_ANNOUNCE"
	case IDModuleQuery:
		return "MODULE_QUERY"

	// Audio (0x420-0x42F)
	case IDPlaySound:
		return "PLAY_SOUND"
	case IDStopSound:
		return "STOP_SOUND"
	case IDSoundStatus:
		return "SOUND_STATUS"
	case IDSoundAck:
		return "SOUND_ACK"

	default:
		return "UNKNOWN"
	}
}

// FormatPayload formats the decoded fields of a known message.
// Frames that fail to parse are reported on a single line.
func FormatPayload(f *Frame) string {
	switch f.ID {
	case IDPlaySound:
		p, err := ParsePlaySound(f)
		if err != nil {
			return fmt.Sprintf("  (malformed: %v)\n", err)
		}
		return fmt.Sprintf("  Sound: %d, Volume: %s, Flags: %s, Request: %d\n",
			p.SoundIndex, formatVolume(p.Volume), formatPlayFlags(p.Flags), p.RequestID)

	case IDStopSound:
		s, err := ParseStopSound(f)
		if err != nil {
			return fmt.Sprintf("  (malformed: %v)\n", err)
		}
		return fmt.Sprintf("  Sound: %s, Flags: %s, Request: %d\n",
			formatSoundIndex(s.SoundIndex), formatStopFlags(s.Flags), s.RequestID)

	case IDSoundStatus:
		s, err := ParseSoundStatus(f)
		if err != nil {
			return fmt.Sprintf("  (malformed: %v)\n", err)
		}
		return fmt.Sprintf("  State: %s, Current: %s, Error: %s, Volume: %d%%, Uptime: %s\n",
			formatStatusBits(s.State), formatSoundIndex(s.CurrentSound), s.Error, s.Volume,
			formatDuration(uint64(s.UptimeSec)*1000))

	case IDSoundAck:
		a, err := ParseSoundAck(f)
		if err != nil {
			return fmt.Sprintf("  (malformed: %v)\n", err)
		}
		result := "NACK"
		if a.OK {
			result = "OK"
		}
		return fmt.Sprintf("  %s Sound: %d, Error: %s, Request: %d\n", result, a.SoundIndex, a.Error, a.RequestID)

	case IDModuleQuery:
		t, err := ParseModuleQuery(f)
		if err != nil {
			return fmt.Sprintf("  (malformed: %v)\n", err)
		}
		if t == QueryEnumerateAll {
			return "  Query: ALL\n"
		}
		return fmt.Sprintf("  Query: %s\n", ModuleName(t))

	case IDModuleAnnounce:
		m, err := ParseModuleAnnounce(f)
		if err != nil {
			return fmt.Sprintf("  (malformed: %v)\n", err)
		}
		return "  " + m.String() + "\n"

	default:
		return ""
	}
}

func formatHex(b []byte) string {
	if len(b) == 0 {
		return "-"
	}
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, " ")
}

func formatVolume(v uint8) string {
	if v == VolumeUsePot {
		return "POT"
	}
	return fmt.Sprintf("%d%%", v)
}

func formatSoundIndex(idx uint16) string {
	if idx == SoundIndexAny {
		return "NONE"
	}
	return fmt.Sprintf("%d", idx)
}

func formatPlayFlags(flags uint8) string {
	var names []string
	if flags&FlagInterrupt != 0 {
		names = append(names, "INTERRUPT")
	}
	if flags&FlagHighPriority != 0 {
		names = append(names, "HIGH_PRIORITY")
	}
	if flags&FlagLoop != 0 {
		names = append(names, "LOOP")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

func formatStopFlags(flags uint8) string {
	if flags&FlagStopAll != 0 {
		return "STOP_ALL"
	}
	return "none"
}

func formatStatusBits(state uint8) string {
	var names []string
	if state&StatusReady != 0 {
		names = append(names, "READY")
	}
	if state&StatusSDMounted != 0 {
		names = append(names, "SD")
	}
	if state&StatusPlaying != 0 {
		names = append(names, "PLAYING")
	}
	if state&StatusMuted != 0 {
		names = append(names, "MUTED")
	}
	if state&StatusError != 0 {
		names = append(names, "ERROR")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// formatDuration formats milliseconds as a compact duration
func formatDuration(ms uint64) string {
	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes%60, seconds%60)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	}
	return fmt.Sprintf("%ds", seconds)
}
