// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Thermoquad/esptrace/pkg/espflash"
)

// syncTestRouter mirrors the sync_test wiring: requests on TX, replies on RX
func syncTestRouter(sink espflash.Sink) *espflash.Router {
	return espflash.NewRouter(espflash.DirectRouterConfig(), sink)
}

func feed(t *testing.T, r *espflash.Router, ch espflash.Channel, m *espflash.Message) {
	t.Helper()
	wire, err := espflash.EncodeMessage(m)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	for _, ev := range hexEvents(wire, ch, 86) {
		r.Decode(ev)
	}
}

func isDone(w *syncWatcher) bool {
	select {
	case <-w.Done():
		return true
	default:
		return false
	}
}

func TestSyncWatcher(t *testing.T) {
	tests := []struct {
		name     string
		channel  espflash.Channel
		message  *espflash.Message
		wantDone bool
	}{
		{
			name:     "sync response",
			channel:  espflash.ChannelRX,
			message:  &espflash.Message{Direction: espflash.DirResponse, Opcode: espflash.CmdSync, Checksum: 0x20120707, Data: []byte{0, 0}},
			wantDone: true,
		},
		{
			name:     "other response",
			channel:  espflash.ChannelRX,
			message:  &espflash.Message{Direction: espflash.DirResponse, Opcode: espflash.CmdReadReg, Data: []byte{0, 0}},
			wantDone: false,
		},
		{
			name:     "our own request",
			channel:  espflash.ChannelTX,
			message:  espflash.NewSyncCommand(),
			wantDone: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newSyncWatcher()
			feed(t, syncTestRouter(w), tt.channel, tt.message)
			if got := isDone(w); got != tt.wantDone {
				t.Errorf("done = %v, want %v", got, tt.wantDone)
			}
		})
	}
}

func TestSyncWatcher_ResponseValue(t *testing.T) {
	w := newSyncWatcher()
	r := syncTestRouter(w)

	// Noise and an unrelated reply first
	for _, ev := range hexEvents([]byte{0x55, 0x55}, espflash.ChannelRX, 86) {
		r.Decode(ev)
	}
	feed(t, r, espflash.ChannelRX, &espflash.Message{Direction: espflash.DirResponse, Opcode: espflash.CmdReadReg})
	if isDone(w) {
		t.Fatal("done before SYNC response")
	}

	feed(t, r, espflash.ChannelRX, &espflash.Message{Direction: espflash.DirResponse, Opcode: espflash.CmdSync, Checksum: 0x12345678})
	feed(t, r, espflash.ChannelRX, &espflash.Message{Direction: espflash.DirResponse, Opcode: espflash.CmdSync})

	if !isDone(w) {
		t.Fatal("SYNC response not detected")
	}
	if w.response.Short != "0x12345678" {
		t.Errorf("response = %q, want first SYNC value", w.response.Short)
	}
}

// errWriter fails every write
type errWriter struct{}

func (errWriter) Write(p []byte) (int, error) { return 0, errors.New("line down") }

func TestSendSync(t *testing.T) {
	want, err := espflash.EncodeMessage(espflash.NewSyncCommand())
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	if err := sendSync(ctx, &buf, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("sent %x, want %x", buf.Bytes(), want)
	}

	if err := sendSync(context.Background(), errWriter{}, time.Millisecond); err == nil {
		t.Error("expected write error")
	}
}
