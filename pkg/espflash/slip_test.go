// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package espflash

import (
	"bytes"
	"strings"
	"testing"
)

// ============================================================
// Frame Decoder Test Helpers
// ============================================================

type frameEvent struct {
	kind    string // "start", "data", "end", "error"
	start   uint64
	end     uint64
	value   byte
	message string
}

type recordingListener struct {
	events []frameEvent
}

func (r *recordingListener) FrameStart(start, end uint64) {
	r.events = append(r.events, frameEvent{kind: "start", start: start, end: end})
}

func (r *recordingListener) FrameData(start, end uint64, value byte) {
	r.events = append(r.events, frameEvent{kind: "data", start: start, end: end, value: value})
}

func (r *recordingListener) FrameEnd(start, end uint64) {
	r.events = append(r.events, frameEvent{kind: "end", start: start, end: end})
}

func (r *recordingListener) FrameError(start, end uint64, message string) {
	r.events = append(r.events, frameEvent{kind: "error", start: start, end: end, message: message})
}

func (r *recordingListener) data() []byte {
	var out []byte
	for _, e := range r.events {
		if e.kind == "data" {
			out = append(out, e.value)
		}
	}
	return out
}

func (r *recordingListener) kinds() string {
	parts := make([]string, len(r.events))
	for i, e := range r.events {
		parts[i] = e.kind
	}
	return strings.Join(parts, ",")
}

// feedFrames feeds bytes with position i covering [10*i, 10*i+9]
func feedFrames(d *FrameDecoder, data []byte) {
	for i, b := range data {
		d.Consume(uint64(i*10), uint64(i*10+9), b)
	}
}

// ============================================================
// Frame Decoder Tests
// ============================================================

func TestFrameDecoder_SimpleFrame(t *testing.T) {
	l := &recordingListener{}
	d := NewFrameDecoder(l)

	feedFrames(d, []byte{SlipEnd, 0x01, 0x02, 0x03, SlipEnd})

	if got := l.kinds(); got != "start,data,data,data,end" {
		t.Fatalf("event sequence = %s", got)
	}
	if !bytes.Equal(l.data(), []byte{0x01, 0x02, 0x03}) {
		t.Errorf("data = % X", l.data())
	}
	if l.events[1].start != 10 || l.events[1].end != 19 {
		t.Errorf("data byte range = [%d,%d], want [10,19]", l.events[1].start, l.events[1].end)
	}
	if d.InFrame() {
		t.Error("decoder should be idle after closing delimiter")
	}
}

func TestFrameDecoder_EscapeSequences(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  byte
	}{
		{"escaped END", []byte{SlipEnd, SlipEsc, SlipEscEnd, SlipEnd}, SlipEnd},
		{"escaped ESC", []byte{SlipEnd, SlipEsc, SlipEscEsc, SlipEnd}, SlipEsc},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &recordingListener{}
			feedFrames(NewFrameDecoder(l), tt.input)

			if got := l.kinds(); got != "start,data,end" {
				t.Fatalf("event sequence = %s, want single data event", got)
			}
			ev := l.events[1]
			if ev.value != tt.want {
				t.Errorf("value = 0x%02X, want 0x%02X", ev.value, tt.want)
			}
			// Span covers the ESC marker and the code byte
			if ev.start != 10 || ev.end != 29 {
				t.Errorf("escaped byte range = [%d,%d], want [10,29]", ev.start, ev.end)
			}
		})
	}
}

func TestFrameDecoder_UnexpectedIdleByte(t *testing.T) {
	l := &recordingListener{}
	d := NewFrameDecoder(l)

	feedFrames(d, []byte{0x42, SlipEnd, 0x01, SlipEnd})

	if got := l.kinds(); got != "error,start,data,end" {
		t.Fatalf("event sequence = %s", got)
	}
	if l.events[0].message != "Unexpected byte while idle: 0x42" {
		t.Errorf("message = %q", l.events[0].message)
	}
}

func TestFrameDecoder_InvalidEscape(t *testing.T) {
	l := &recordingListener{}
	d := NewFrameDecoder(l)

	feedFrames(d, []byte{SlipEnd, 0x01, SlipEsc, 0x33, 0x02, SlipEnd})

	if got := l.kinds(); got != "start,data,error,data,end" {
		t.Fatalf("event sequence = %s", got)
	}
	e := l.events[2]
	if e.message != "Unexpected escape value: 0x33" {
		t.Errorf("message = %q", e.message)
	}
	if e.start != 20 || e.end != 39 {
		t.Errorf("error range = [%d,%d], want [20,39]", e.start, e.end)
	}
	if !bytes.Equal(l.data(), []byte{0x01, 0x02}) {
		t.Errorf("data = % X, decoding should continue after a bad escape", l.data())
	}
}

func TestFrameDecoder_BackToBackFrames(t *testing.T) {
	l := &recordingListener{}
	feedFrames(NewFrameDecoder(l), []byte{SlipEnd, 0xAA, SlipEnd, SlipEnd, 0xBB, SlipEnd})

	if got := l.kinds(); got != "start,data,end,start,data,end" {
		t.Fatalf("event sequence = %s", got)
	}
}

func TestFrameDecoder_Reset(t *testing.T) {
	l := &recordingListener{}
	d := NewFrameDecoder(l)

	feedFrames(d, []byte{SlipEnd, 0x01, SlipEsc})
	d.Reset()
	if d.InFrame() {
		t.Fatal("Reset should return to idle")
	}

	l.events = nil
	feedFrames(d, []byte{SlipEnd, SlipEnd})
	if got := l.kinds(); got != "start,end" {
		t.Errorf("event sequence after reset = %s", got)
	}
}

func TestFrameDecoder_RoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		{0x00},
		{SlipEnd},
		{SlipEsc},
		{SlipEsc, SlipEnd, SlipEscEnd, SlipEscEsc},
		{0x01, SlipEnd, 0x02, SlipEsc, 0x03},
	}

	for _, payload := range payloads {
		l := &recordingListener{}
		feedFrames(NewFrameDecoder(l), EncodeFrame(payload))

		if !bytes.Equal(l.data(), payload) {
			t.Errorf("payload % X decoded as % X", payload, l.data())
		}
		if len(l.events) != len(payload)+2 {
			t.Errorf("payload % X produced %d events, want %d", payload, len(l.events), len(payload)+2)
		}
		if l.events[0].kind != "start" || l.events[len(l.events)-1].kind != "end" {
			t.Errorf("payload % X: frame not bounded by start/end: %s", payload, l.kinds())
		}
	}
}
