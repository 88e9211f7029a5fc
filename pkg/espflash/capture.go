// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package espflash

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// captureMagic opens every capture file
const captureMagic = "esptrace-capture"

// captureVersion is bumped when the record layout changes
const captureVersion = 1

type captureHeader struct {
	Magic   string `cbor:"0,keyasint"`
	Version int    `cbor:"1,keyasint"`
	Baud    int    `cbor:"2,keyasint,omitempty"`
}

// captureRecord is the on-disk form of a ByteEvent
type captureRecord struct {
	Start   uint64 `cbor:"0,keyasint"`
	End     uint64 `cbor:"1,keyasint"`
	Channel uint8  `cbor:"2,keyasint"`
	Value   uint8  `cbor:"3,keyasint"`
	Valid   bool   `cbor:"4,keyasint"`
}

// CaptureWriter writes ByteEvents as a CBOR sequence
type CaptureWriter struct {
	enc   *cbor.Encoder
	count uint64
}

// NewCaptureWriter writes the capture header and returns a writer.
// baud is informational and may be zero.
func NewCaptureWriter(w io.Writer, baud int) (*CaptureWriter, error) {
	enc := cbor.NewEncoder(w)
	if err := enc.Encode(captureHeader{Magic: captureMagic, Version: captureVersion, Baud: baud}); err != nil {
		return nil, fmt.Errorf("failed to write capture header: %w", err)
	}
	return &CaptureWriter{enc: enc}, nil
}

// Write appends one event
func (c *CaptureWriter) Write(ev ByteEvent) error {
	rec := captureRecord{
		Start:   ev.Start,
		End:     ev.End,
		Channel: uint8(ev.Channel),
		Value:   ev.Value,
		Valid:   ev.Valid,
	}
	if err := c.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to write capture record %d: %w", c.count, err)
	}
	c.count++
	return nil
}

// Count returns the number of events written
func (c *CaptureWriter) Count() uint64 {
	return c.count
}

// CaptureReader reads ByteEvents written by CaptureWriter
type CaptureReader struct {
	dec  *cbor.Decoder
	baud int
}

// NewCaptureReader validates the capture header
func NewCaptureReader(r io.Reader) (*CaptureReader, error) {
	dec := cbor.NewDecoder(r)
	var hdr captureHeader
	if err := dec.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}
	if hdr.Magic != captureMagic {
		return nil, fmt.Errorf("not a capture file (magic %q)", hdr.Magic)
	}
	if hdr.Version != captureVersion {
		return nil, fmt.Errorf("unsupported capture version %d", hdr.Version)
	}
	return &CaptureReader{dec: dec, baud: hdr.Baud}, nil
}

// Baud returns the baud rate recorded in the header (zero if unknown)
func (c *CaptureReader) Baud() int {
	return c.baud
}

// Next returns the next event, or io.EOF at the end of the capture
func (c *CaptureReader) Next() (ByteEvent, error) {
	var rec captureRecord
	if err := c.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return ByteEvent{}, io.EOF
		}
		return ByteEvent{}, fmt.Errorf("failed to read capture record: %w", err)
	}
	return ByteEvent{
		Start:   rec.Start,
		End:     rec.End,
		Channel: Channel(rec.Channel),
		Value:   rec.Value,
		Valid:   rec.Valid,
	}, nil
}
