// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package espflash

import (
	"bytes"
	"testing"
)

func TestEncodeFrame_Escaping(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"empty", nil, []byte{0xC0, 0xC0}},
		{"plain", []byte{0x01, 0x02}, []byte{0xC0, 0x01, 0x02, 0xC0}},
		{"end byte", []byte{0xC0}, []byte{0xC0, 0xDB, 0xDC, 0xC0}},
		{"esc byte", []byte{0xDB}, []byte{0xC0, 0xDB, 0xDD, 0xC0}},
		{"codes alone are literal", []byte{0xDC, 0xDD}, []byte{0xC0, 0xDC, 0xDD, 0xC0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeFrame(tt.in)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeFrame(% X) = % X, want % X", tt.in, got, tt.want)
			}
		})
	}
}

func TestMessage_MarshalBinary(t *testing.T) {
	m := &Message{Direction: DirRequest, Opcode: CmdReadReg, Checksum: 0xDDCCBBAA, Data: []byte{0x10, 0x20, 0x30, 0x40}}
	got, err := m.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	want := []byte{0x00, 0x0A, 0x04, 0x00, 0xAA, 0xBB, 0xCC, 0xDD, 0x10, 0x20, 0x30, 0x40}
	if !bytes.Equal(got, want) {
		t.Errorf("MarshalBinary = % X, want % X", got, want)
	}
}

func TestMessage_MarshalBinaryTooLarge(t *testing.T) {
	m := &Message{Data: make([]byte, 0x10000)}
	if _, err := m.MarshalBinary(); err == nil {
		t.Error("expected error for oversized data")
	}
}

func TestNewSyncCommand(t *testing.T) {
	m := NewSyncCommand()
	if m.Opcode != CmdSync || m.Direction != DirRequest {
		t.Errorf("unexpected header: dir=%d op=0x%02X", m.Direction, m.Opcode)
	}
	if len(m.Data) != 36 {
		t.Fatalf("SYNC payload length = %d, want 36", len(m.Data))
	}
	if !bytes.Equal(m.Data[:4], []byte{0x07, 0x07, 0x12, 0x20}) {
		t.Errorf("SYNC preamble = % X", m.Data[:4])
	}
	for i, b := range m.Data[4:] {
		if b != 0x55 {
			t.Fatalf("SYNC byte %d = 0x%02X, want 0x55", i+4, b)
		}
	}
}
