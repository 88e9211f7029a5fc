// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package espflash

import (
	"strings"
	"testing"
)

func TestStatistics_CountsFromDecoder(t *testing.T) {
	stats := NewStatistics()
	r := NewRouter(DefaultRouterConfig(), stats)

	var wire []byte
	wire = append(wire, 0x33) // noise while idle
	sync, _ := EncodeMessage(NewSyncCommand())
	wire = append(wire, sync...)
	wire = append(wire, SlipEnd, 0x00, 0xFE, SlipEnd) // unknown opcode
	wire = append(wire, SlipEnd, 0x09, SlipEnd)       // bad direction

	for _, ev := range eventsFor(ChannelRX, wire, 0) {
		r.Decode(ev)
	}

	pm := stats.Directions[DirectionProgrammer]
	if pm.Frames != 2 || pm.Requests != 2 {
		t.Errorf("frames=%d requests=%d, want 2/2", pm.Frames, pm.Requests)
	}
	if pm.Commands["SYNC"] != 1 {
		t.Errorf("SYNC count = %d, want 1", pm.Commands["SYNC"])
	}
	if pm.DataRegions != 1 {
		t.Errorf("DataRegions = %d, want 1", pm.DataRegions)
	}
	if pm.FramingErrors != 1 {
		t.Errorf("FramingErrors = %d, want 1", pm.FramingErrors)
	}
	if pm.ProtocolErrors != 2 {
		t.Errorf("ProtocolErrors = %d, want 2", pm.ProtocolErrors)
	}
	if stats.TotalErrors() != 3 {
		t.Errorf("TotalErrors = %d, want 3", stats.TotalErrors())
	}
	if stats.Directions[DirectionModule].Frames != 0 {
		t.Error("module direction should be untouched")
	}
}

func TestStatistics_StringAndReset(t *testing.T) {
	stats := NewStatistics()
	stats.Put(Annotation{Category: Category{DirectionModule, FieldDirection}, Short: "RES"})
	stats.Put(Annotation{Category: Category{DirectionModule, FieldCommand}, Short: "READ_REG"})

	out := stats.String()
	for _, want := range []string{"Module->programmer", "READ_REG", "res 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}

	stats.Reset()
	if stats.TotalFrames() != 0 || stats.Annotations != 0 {
		t.Error("Reset should clear counters")
	}
	if stats.Directions[DirectionModule].Commands == nil {
		t.Error("Reset should leave usable command maps")
	}
}
