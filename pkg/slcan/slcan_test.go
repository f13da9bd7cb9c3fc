// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package slcan

import (
	"errors"
	"testing"

	"github.com/Thermoquad/otsbridge/pkg/otscan"
)

func TestEncode(t *testing.T) {
	play := otscan.BuildPlaySound(0x0014, otscan.FlagInterrupt, 80, 0x0102)
	ext, _ := otscan.NewExtendedFrame(0x1ABCDEF0, []byte{0xDE, 0xAD})
	empty, _ := otscan.NewFrame(0x7FF, nil)

	tests := []struct {
		name  string
		frame otscan.Frame
		want  string
	}{
		{"play sound", play, "t42080101140050000201\r"},
		{"extended", ext, "T1ABCDEF02DEAD\r"},
		{"standard rtr", otscan.Frame{ID: 0x422, RTR: true, Length: 8}, "r4228\r"},
		{"extended rtr", otscan.Frame{ID: 0x10, Extended: true, RTR: true}, "R000000100\r"},
		{"empty payload", empty, "t7FF0\r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(Encode(&tt.frame)); got != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseLine_RoundTrip(t *testing.T) {
	frames := []otscan.Frame{
		otscan.BuildPlaySound(1, 0, 100, 1),
		otscan.BuildStopSound(otscan.SoundIndexAny, otscan.FlagStopAll, 2),
		otscan.BuildSoundStatus(otscan.SoundStatus{State: otscan.StatusReady, CurrentSound: otscan.SoundIndexAny, Volume: 50}),
		otscan.BuildModuleQuery(otscan.QueryEnumerateAll),
		{ID: 0x1FFFFFFF, Extended: true, Length: 1, Data: [8]byte{0x5A}},
	}

	for _, f := range frames {
		line := Encode(&f)
		got, err := ParseLine(line[:len(line)-1])
		if err != nil {
			t.Errorf("ParseLine(%q) error: %v", line, err)
			continue
		}
		if *got != f {
			t.Errorf("ParseLine(%q) = %+v, want %+v", line, *got, f)
		}
	}
}

func TestParseLine_Timestamp(t *testing.T) {
	f, err := ParseLine([]byte("t4232AABB1234"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.ID != 0x423 || f.Length != 2 || f.Data[0] != 0xAA || f.Data[1] != 0xBB {
		t.Errorf("frame = %+v", f)
	}
}

func TestParseLine_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"unknown type", "x1230"},
		{"short", "t12"},
		{"bad hex id", "tG230"},
		{"dlc too large", "t1239"},
		{"truncated data", "t1232AA"},
		{"trailing garbage", "t1231AAB"},
		{"standard id overflow", "t8001AA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseLine([]byte(tt.line)); err == nil {
				t.Errorf("ParseLine(%q) expected error", tt.line)
			}
		})
	}
}

func TestDecoder_Stream(t *testing.T) {
	d := NewDecoder()
	stream := []byte("z\rt4220\r\rt42321122\r")

	var frames []*otscan.Frame
	for _, b := range stream {
		f, err := d.DecodeByte(b)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f != nil {
			frames = append(frames, f)
		}
	}

	if len(frames) != 2 {
		t.Fatalf("decoded %d frames, want 2", len(frames))
	}
	if frames[0].ID != 0x422 || frames[0].Length != 0 {
		t.Errorf("frame 0 = %+v", frames[0])
	}
	if frames[1].ID != 0x423 || frames[1].Data[0] != 0x11 || frames[1].Data[1] != 0x22 {
		t.Errorf("frame 1 = %+v", frames[1])
	}
}

func TestDecoder_AdapterError(t *testing.T) {
	d := NewDecoder()
	d.DecodeByte('t')
	if _, err := d.DecodeByte(BELL); !errors.Is(err, ErrAdapter) {
		t.Errorf("DecodeByte(BELL) = %v, want ErrAdapter", err)
	}
}

func TestDecoder_Overflow(t *testing.T) {
	d := NewDecoder()
	for i := 0; i < MaxLineLength+10; i++ {
		d.DecodeByte('t')
	}
	if _, err := d.DecodeByte(CR); err == nil {
		t.Error("expected overflow error")
	}

	// Decoder recovers on the next line
	var got *otscan.Frame
	for _, b := range []byte("t1000\r") {
		got, _ = d.DecodeByte(b)
	}
	if got == nil || got.ID != 0x100 {
		t.Errorf("frame after overflow = %+v", got)
	}
}

func TestBitrateCommand(t *testing.T) {
	cmd, err := BitrateCommand(500000)
	if err != nil || string(cmd) != "S6\r" {
		t.Errorf("BitrateCommand(500000) = %q, %v", cmd, err)
	}
	if _, err := BitrateCommand(333333); err == nil {
		t.Error("expected error for unsupported bitrate")
	}
}
