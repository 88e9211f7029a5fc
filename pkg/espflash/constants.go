// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package espflash decodes the ESP32 serial bootloader protocol.
//
// The protocol has two layers: SLIP framing, which turns the raw byte stream
// into frames, and the bootloader command protocol carried inside each frame
// (direction, command, size, checksum or value, then data). The decoders in
// this package never interpret payload contents and never validate checksums;
// they only label the fields they find.
package espflash

// SLIP framing bytes
const (
	SlipEnd    = 0xC0
	SlipEsc    = 0xDB
	SlipEscEnd = 0xDC
	SlipEscEsc = 0xDD
)

// Header direction byte values
const (
	DirRequest  = 0x00
	DirResponse = 0x01
)

// Header field widths in bytes
const (
	dirSize      = 1
	cmdSize      = 1
	lengthSize   = 2
	checksumSize = 4
	HeaderSize   = dirSize + cmdSize + lengthSize + checksumSize
)

// Channel identifies one of the two physical serial lines.
type Channel int

const (
	ChannelRX Channel = 0
	ChannelTX Channel = 1
)

// String returns the conventional line name
func (c Channel) String() string {
	switch c {
	case ChannelRX:
		return "RX"
	case ChannelTX:
		return "TX"
	default:
		return "UNKNOWN"
	}
}

// Direction is a logical traffic direction, independent of the line carrying it.
type Direction int

const (
	// DirectionProgrammer is programmer -> module traffic (requests, carries checksums)
	DirectionProgrammer Direction = iota
	// DirectionModule is module -> programmer traffic (responses, carries values)
	DirectionModule
)

// String returns the short direction tag used in category names
func (d Direction) String() string {
	switch d {
	case DirectionProgrammer:
		return "pm"
	case DirectionModule:
		return "mp"
	default:
		return "??"
	}
}

// Description returns the human-readable direction name
func (d Direction) Description() string {
	switch d {
	case DirectionProgrammer:
		return "Programmer->module"
	case DirectionModule:
		return "Module->programmer"
	default:
		return "Unknown"
	}
}

// Frame decoder states (internal)
const (
	frameIdle = iota
	frameInFrame
	frameEscape
)

// Field decoder states (internal)
const (
	fieldDirection = iota
	fieldCommand
	fieldSize
	fieldChecksum
	fieldData
	fieldSkip // invalid direction byte, rest of the frame is not a header
)
