// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otscan

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// TestFuzzPlaySound_RoundTrip extracts fields by hand from random
// PLAY_SOUND frames and checks they reproduce the inputs
func TestFuzzPlaySound_RoundTrip(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		idx := uint16(rng.Intn(65536))
		flags := uint8(rng.Intn(256))
		vol := uint8(rng.Intn(256))
		req := uint16(rng.Intn(65536))

		f := BuildPlaySound(idx, flags, vol, req)

		if f.Length != 8 || f.Data[0] != CmdPlaySound || f.Data[5] != 0 {
			t.Fatalf("Round %d: bad header/reserved: % X", i, f.Data)
		}
		if got := uint16(f.Data[2]) | uint16(f.Data[3])<<8; got != idx {
			t.Errorf("Round %d: index %d, want %d", i, got, idx)
		}
		if f.Data[1] != flags || f.Data[4] != vol {
			t.Errorf("Round %d: flags/volume 0x%02X/%d, want 0x%02X/%d", i, f.Data[1], f.Data[4], flags, vol)
		}
		if got := uint16(f.Data[6]) | uint16(f.Data[7])<<8; got != req {
			t.Errorf("Round %d: request %d, want %d", i, got, req)
		}
	}
}

// TestFuzzStatusAck_RoundTrip builds random telemetry frames and parses them back
func TestFuzzStatusAck_RoundTrip(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		st := SoundStatus{
			State:        uint8(rng.Intn(256)),
			CurrentSound: uint16(rng.Intn(65536)),
			Error:        AudioError(rng.Intn(256)),
			Volume:       uint8(rng.Intn(256)),
			UptimeSec:    uint16(rng.Intn(65536)),
		}
		f := BuildSoundStatus(st)
		got, err := ParseSoundStatus(&f)
		if err != nil || got != st {
			t.Errorf("Round %d: status %+v (err %v), want %+v", i, got, err, st)
		}

		ack := SoundAck{
			OK:         rng.Intn(2) == 1,
			SoundIndex: uint16(rng.Intn(65536)),
			Error:      AudioError(rng.Intn(256)),
			RequestID:  uint16(rng.Intn(65536)),
		}
		af := BuildSoundAck(ack)
		gotAck, err := ParseSoundAck(&af)
		if err != nil || gotAck != ack {
			t.Errorf("Round %d: ack %+v (err %v), want %+v", i, gotAck, err, ack)
		}
	}
}

// TestFuzzParse_RandomFrames feeds random frames to every parser and
// formatter and verifies none panic
func TestFuzzParse_RandomFrames(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	ids := []uint32{IDPlaySound, IDStopSound, IDSoundStatus, IDSoundAck, IDModuleAnnounce, IDModuleQuery}

	for i := 0; i < rounds; i++ {
		f := Frame{ID: ids[rng.Intn(len(ids))], Length: uint8(rng.Intn(16))}
		rng.Read(f.Data[:])

		ParseSoundStatus(&f)
		ParseSoundAck(&f)
		ParsePlaySound(&f)
		ParseStopSound(&f)
		ParseModuleAnnounce(&f)
		ValidateFrame(&f)
		FormatFrame(time.Now(), &f)
	}
}
