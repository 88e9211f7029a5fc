// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package espflash

import "fmt"

// FrameListener receives the events produced by a FrameDecoder.
// All offsets are the opaque positions carried by the input bytes.
type FrameListener interface {
	FrameStart(start, end uint64)
	FrameData(start, end uint64, value byte)
	FrameEnd(start, end uint64)
	FrameError(start, end uint64, message string)
}

// FrameDecoder implements the SLIP framing state machine.
// It consumes one byte at a time and never looks ahead.
type FrameDecoder struct {
	state    int
	escStart uint64
	listener FrameListener
}

// NewFrameDecoder creates a decoder in the idle state
func NewFrameDecoder(listener FrameListener) *FrameDecoder {
	return &FrameDecoder{
		state:    frameIdle,
		listener: listener,
	}
}

// Reset returns the decoder to the idle state.
// The decoder never resets itself; errors leave it where it was.
func (d *FrameDecoder) Reset() {
	d.state = frameIdle
	d.escStart = 0
}

// InFrame reports whether a frame is currently open
func (d *FrameDecoder) InFrame() bool {
	return d.state != frameIdle
}

// Consume processes a single byte spanning [start, end]
func (d *FrameDecoder) Consume(start, end uint64, b byte) {
	switch d.state {
	case frameIdle:
		if b == SlipEnd {
			d.listener.FrameStart(start, end)
			d.state = frameInFrame
			return
		}
		d.listener.FrameError(start, end, fmt.Sprintf("Unexpected byte while idle: 0x%02X", b))

	case frameInFrame:
		switch b {
		case SlipEnd:
			d.listener.FrameEnd(start, end)
			d.state = frameIdle
		case SlipEsc:
			d.escStart = start
			d.state = frameEscape
		default:
			d.listener.FrameData(start, end, b)
		}

	case frameEscape:
		// Escaped bytes span from the ESC marker to the code byte
		switch b {
		case SlipEscEnd:
			d.listener.FrameData(d.escStart, end, SlipEnd)
		case SlipEscEsc:
			d.listener.FrameData(d.escStart, end, SlipEsc)
		default:
			d.listener.FrameError(d.escStart, end, fmt.Sprintf("Unexpected escape value: 0x%02X", b))
		}
		d.state = frameInFrame
	}
}
