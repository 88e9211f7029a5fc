// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package espflash

import "fmt"

// accumulator collects a little-endian integer field of up to 4 bytes
type accumulator struct {
	value uint32
	count int
	start uint64
}

func (a *accumulator) reset() {
	a.value = 0
	a.count = 0
	a.start = 0
}

// add appends one byte and reports whether width bytes have been collected
func (a *accumulator) add(start uint64, b byte, width int) bool {
	if a.count == 0 {
		a.start = start
	}
	a.value |= uint32(b) << (8 * a.count)
	a.count++
	return a.count >= width
}

// FieldDecoder re-assembles bootloader message headers from the de-escaped
// bytes of one direction and emits an annotation for every completed field.
type FieldDecoder struct {
	direction Direction
	sink      Sink

	state   int
	acc     accumulator
	command *CommandDescriptor // nil when the opcode was not recognized
}

// NewFieldDecoder creates a decoder for one traffic direction
func NewFieldDecoder(direction Direction, sink Sink) *FieldDecoder {
	return &FieldDecoder{
		direction: direction,
		sink:      sink,
		state:     fieldDirection,
	}
}

// Direction returns the direction this decoder was created for
func (d *FieldDecoder) Direction() Direction {
	return d.direction
}

// Command returns the descriptor resolved for the current frame, if any
func (d *FieldDecoder) Command() *CommandDescriptor {
	return d.command
}

func (d *FieldDecoder) put(start, end uint64, field Field, long, short string) {
	d.sink.Put(Annotation{
		Start:    start,
		End:      end,
		Category: Category{Direction: d.direction, Field: field},
		Long:     long,
		Short:    short,
	})
}

func (d *FieldDecoder) putError(start, end uint64, message string) {
	d.put(start, end, FieldError, message, message)
}

// enter moves to the next field and clears the accumulator
func (d *FieldDecoder) enter(state int) {
	d.state = state
	d.acc.reset()
}

// FrameStart resets the header state for a new frame
func (d *FieldDecoder) FrameStart(start, end uint64) {
	d.enter(fieldDirection)
	d.command = nil
}

// FrameData consumes one de-escaped byte of the current frame
func (d *FieldDecoder) FrameData(start, end uint64, b byte) {
	switch d.state {
	case fieldDirection:
		var dir string
		switch b {
		case DirRequest:
			dir = "REQ"
		case DirResponse:
			dir = "RES"
		default:
			d.putError(start, end, fmt.Sprintf("Invalid direction: 0x%02X", b))
			d.enter(fieldSkip)
			return
		}
		d.put(start, end, FieldDirection, "DIR: "+dir, dir)
		d.enter(fieldCommand)

	case fieldCommand:
		if cmd, ok := LookupCommand(b); ok {
			d.command = cmd
			d.put(start, end, FieldCommand, "CMD: "+cmd.Name, cmd.Name)
		} else {
			d.putError(start, end, fmt.Sprintf("Invalid command: 0x%02X", b))
		}
		d.enter(fieldSize)

	case fieldSize:
		if !d.acc.add(start, b, lengthSize) {
			return
		}
		hex := fmt.Sprintf("0x%04X", d.acc.value)
		d.put(d.acc.start, end, FieldSize, "Size: "+hex, hex)
		d.enter(fieldChecksum)

	case fieldChecksum:
		if !d.acc.add(start, b, checksumSize) {
			return
		}
		hex := fmt.Sprintf("0x%08X", d.acc.value)
		if d.direction == DirectionProgrammer {
			d.put(d.acc.start, end, FieldChecksum, "Checksum: "+hex, hex)
		} else {
			d.put(d.acc.start, end, FieldValue, "Value: "+hex, hex)
		}
		d.enter(fieldData)

	case fieldData:
		// Only the start and the presence of data are tracked
		if d.acc.count == 0 {
			d.acc.start = start
		}
		d.acc.count++

	case fieldSkip:
	}
}

// FrameEnd emits the data annotation if the frame reached its data region.
// A frame that ends right after the checksum or value field carries no data
// bytes and gets no data annotation, so every data annotation spans at least
// one byte.
func (d *FieldDecoder) FrameEnd(start, end uint64) {
	if d.state != fieldData || d.acc.count == 0 {
		return
	}
	if d.command != nil && d.command.Payload != "" {
		d.put(d.acc.start, start, FieldData, "Data: "+d.command.Payload, "Data")
	} else {
		d.put(d.acc.start, start, FieldData, "Data", "Data")
	}
}

// FrameError surfaces framing errors in this direction's error category
func (d *FieldDecoder) FrameError(start, end uint64, message string) {
	d.putError(start, end, message)
}
