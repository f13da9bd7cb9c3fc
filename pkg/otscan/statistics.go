// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otscan

import (
	"fmt"
	"time"
)

// Statistics tracks frame statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames    uint64
	ValidFrames    uint64
	DecodeErrors   uint64
	MalformedFrame uint64
	LengthErrors   uint64
	BadTags        uint64
	UnknownIDs     uint64
	Anomalies      uint64
	AckFailures    uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update updates statistics based on a frame and its errors.
// A decode error means the transport could not produce a frame at all.
func (s *Statistics) Update(f *Frame, decodeErr error, validationErrors []ValidationError) {
	s.TotalFrames++

	if decodeErr != nil {
		s.DecodeErrors++
		return
	}

	if len(validationErrors) > 0 {
		for _, err := range validationErrors {
			switch err.Type {
			case AnomalyLengthMismatch:
				s.LengthErrors++
				s.MalformedFrame++
			case AnomalyBadTag:
				s.BadTags++
				s.MalformedFrame++
			case AnomalyUnknownID:
				s.UnknownIDs++
			default:
				s.Anomalies++
			}
		}
	} else {
		s.ValidFrames++
	}

	if f != nil && f.ID == IDSoundAck {
		if ack, err := ParseSoundAck(f); err == nil && !ack.OK {
			s.AckFailures++
		}
	}

	s.LastUpdateTime = time.Now()
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		errorCount := s.DecodeErrors + s.MalformedFrame + s.Anomalies
		s.ErrorRate = float64(errorCount) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, decodePercent, malformedPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
		decodePercent = float64(s.DecodeErrors) * 100.0 / float64(s.TotalFrames)
		malformedPercent = float64(s.MalformedFrame) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	out := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	out += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	out += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)

	if s.DecodeErrors > 0 {
		out += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, decodePercent)
	}
	if s.MalformedFrame > 0 {
		out += fmt.Sprintf("Malformed:       %8d (%.1f%%)\n", s.MalformedFrame, malformedPercent)
		if s.LengthErrors > 0 {
			out += fmt.Sprintf("  Bad Length:       %5d\n", s.LengthErrors)
		}
		if s.BadTags > 0 {
			out += fmt.Sprintf("  Bad Tag:          %5d\n", s.BadTags)
		}
	}
	if s.UnknownIDs > 0 {
		out += fmt.Sprintf("Unknown IDs:     %8d\n", s.UnknownIDs)
	}
	if s.Anomalies > 0 {
		out += fmt.Sprintf("Anomalies:       %8d\n", s.Anomalies)
	}
	if s.AckFailures > 0 {
		out += fmt.Sprintf("Failed Acks:     %8d\n", s.AckFailures)
	}

	out += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	out += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	out += "================================\n"

	return out
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
