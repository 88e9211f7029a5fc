// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package espflash

import (
	"encoding/binary"
	"fmt"
)

// Message is an unframed bootloader message
type Message struct {
	Direction uint8 // DirRequest or DirResponse
	Opcode    uint8
	Checksum  uint32 // checksum for requests, value for responses
	Data      []byte
}

// MarshalBinary returns the header and data without SLIP framing.
// The size field is derived from len(Data).
func (m *Message) MarshalBinary() ([]byte, error) {
	if len(m.Data) > 0xFFFF {
		return nil, fmt.Errorf("data too large: %d bytes (max %d)", len(m.Data), 0xFFFF)
	}
	out := make([]byte, HeaderSize, HeaderSize+len(m.Data))
	out[0] = m.Direction
	out[1] = m.Opcode
	binary.LittleEndian.PutUint16(out[2:4], uint16(len(m.Data)))
	binary.LittleEndian.PutUint32(out[4:8], m.Checksum)
	return append(out, m.Data...), nil
}

// EncodeFrame wraps raw bytes in SLIP framing, escaping END and ESC
func EncodeFrame(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/8+2)
	out = append(out, SlipEnd)
	for _, b := range data {
		switch b {
		case SlipEnd:
			out = append(out, SlipEsc, SlipEscEnd)
		case SlipEsc:
			out = append(out, SlipEsc, SlipEscEsc)
		default:
			out = append(out, b)
		}
	}
	return append(out, SlipEnd)
}

// EncodeMessage returns the complete wire form of a message
func EncodeMessage(m *Message) ([]byte, error) {
	raw, err := m.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return EncodeFrame(raw), nil
}

// NewCommand builds a request message
func NewCommand(opcode uint8, data []byte, checksum uint32) *Message {
	return &Message{
		Direction: DirRequest,
		Opcode:    opcode,
		Checksum:  checksum,
		Data:      data,
	}
}

// SyncPayload is the fixed SYNC request body
func SyncPayload() []byte {
	data := []byte{0x07, 0x07, 0x12, 0x20}
	for i := 0; i < 32; i++ {
		data = append(data, 0x55)
	}
	return data
}

// NewSyncCommand builds the SYNC request used to autobaud the ROM loader
func NewSyncCommand() *Message {
	return NewCommand(CmdSync, SyncPayload(), 0)
}
