// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package espflash

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DirectionStats holds counters for one direction
type DirectionStats struct {
	Frames         uint64 // frames whose direction byte was valid
	Responses      uint64
	Requests       uint64
	DataRegions    uint64
	FramingErrors  uint64
	ProtocolErrors uint64
	Commands       map[string]uint64
}

// Errors returns the total error count
func (d *DirectionStats) Errors() uint64 {
	return d.FramingErrors + d.ProtocolErrors
}

// Statistics tracks decode statistics from the annotation stream.
// It implements Sink and is not safe for concurrent use.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	Annotations uint64
	Directions  [2]DirectionStats

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	s := &Statistics{}
	s.Reset()
	return s
}

// Put updates counters from one annotation
func (s *Statistics) Put(a Annotation) {
	s.Annotations++
	d := &s.Directions[a.Category.Direction]

	switch a.Category.Field {
	case FieldDirection:
		d.Frames++
		if a.Short == "REQ" {
			d.Requests++
		} else {
			d.Responses++
		}
	case FieldCommand:
		d.Commands[a.Short]++
	case FieldData:
		d.DataRegions++
	case FieldError:
		if strings.HasPrefix(a.Long, "Invalid ") {
			d.ProtocolErrors++
		} else {
			d.FramingErrors++
		}
	}

	s.LastUpdateTime = time.Now()
}

// TotalFrames returns frames seen in both directions
func (s *Statistics) TotalFrames() uint64 {
	return s.Directions[0].Frames + s.Directions[1].Frames
}

// TotalErrors returns errors seen in both directions
func (s *Statistics) TotalErrors() uint64 {
	return s.Directions[0].Errors() + s.Directions[1].Errors()
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames()) / elapsed
		s.ErrorRate = float64(s.TotalErrors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()
	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	for _, dir := range []Direction{DirectionProgrammer, DirectionModule} {
		d := &s.Directions[dir]
		result += fmt.Sprintf("%s:\n", dir.Description())
		result += fmt.Sprintf("  Frames:          %8d (req %d, res %d)\n", d.Frames, d.Requests, d.Responses)
		if d.FramingErrors > 0 {
			result += fmt.Sprintf("  Framing Errors:  %8d\n", d.FramingErrors)
		}
		if d.ProtocolErrors > 0 {
			result += fmt.Sprintf("  Protocol Errors: %8d\n", d.ProtocolErrors)
		}
		for _, name := range sortedKeys(d.Commands) {
			result += fmt.Sprintf("    %-20s %5d\n", name, d.Commands[name])
		}
	}
	result += fmt.Sprintf("Frame Rate:        %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:        %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	now := time.Now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.Annotations = 0
	for i := range s.Directions {
		s.Directions[i] = DirectionStats{Commands: make(map[string]uint64)}
	}
	s.FrameRate = 0
	s.ErrorRate = 0
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
