// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Thermoquad/esptrace/pkg/espflash"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 seconds"},
		{500 * time.Millisecond, "0 seconds"},
		{time.Second, "1 second"},
		{59 * time.Second, "59 seconds"},
		{61 * time.Second, "1 minute and 1 second"},
		{time.Hour + 2*time.Minute, "1 hour and 2 minutes"},
		{26*time.Hour + 3*time.Minute + 4*time.Second, "1 day, 2 hours, 3 minutes, and 4 seconds"},
	}

	for _, tt := range tests {
		if got := formatElapsed(tt.d); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func annotation(dir espflash.Direction, field espflash.Field, long, short string) annotationMsg {
	return annotationMsg(espflash.Annotation{
		Category: espflash.Category{Direction: dir, Field: field},
		Long:     long,
		Short:    short,
	})
}

func send(m model, msgs ...tea.Msg) model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(model)
	}
	return m
}

func TestModel_Annotations(t *testing.T) {
	m := initialModel("Serial: RX=/dev/ttyUSB0", "routing", false)
	m = send(m,
		tea.WindowSizeMsg{Width: 120, Height: 40},
		annotation(espflash.DirectionProgrammer, espflash.FieldDirection, "DIR: REQ", "REQ"),
		annotation(espflash.DirectionProgrammer, espflash.FieldCommand, "CMD: SYNC", "SYNC"),
		annotation(espflash.DirectionModule, espflash.FieldError, "Invalid command: 0xFF", "Invalid command: 0xFF"),
	)

	if m.stats.Directions[espflash.DirectionProgrammer].Frames != 1 {
		t.Errorf("pm frames = %d, want 1", m.stats.Directions[espflash.DirectionProgrammer].Frames)
	}
	if m.stats.Directions[espflash.DirectionModule].ProtocolErrors != 1 {
		t.Errorf("mp protocol errors = %d, want 1", m.stats.Directions[espflash.DirectionModule].ProtocolErrors)
	}
	if len(m.log) != 3 {
		t.Fatalf("log has %d entries, want 3", len(m.log))
	}

	view := m.View()
	for _, want := range []string{"ESPTRACE - BOOTLOADER MONITOR", "CMD: SYNC", "Invalid command: 0xFF", "SYNC×1"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_Keys(t *testing.T) {
	m := initialModel("conn", "routing", false)
	m = send(m,
		annotation(espflash.DirectionModule, espflash.FieldDirection, "DIR: RES", "RES"),
		annotation(espflash.DirectionModule, espflash.FieldError, "Unexpected escape value: 0x00", "Unexpected escape value: 0x00"),
	)

	m = send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	if !m.errorsOnly {
		t.Fatal("e did not enable errors-only")
	}
	if strings.Contains(m.viewport.View(), "DIR: RES") {
		t.Error("errors-only view still shows non-error annotations")
	}

	m = send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	if !m.paused {
		t.Fatal("p did not pause")
	}

	m = send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	if len(m.log) != 0 || m.stats.Annotations != 0 {
		t.Errorf("clear left %d entries, %d annotations", len(m.log), m.stats.Annotations)
	}

	m = send(m, sourceClosedMsg{})
	if !strings.Contains(m.View(), "Connection closed") {
		t.Error("closed source not shown")
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !next.(model).quitting || cmd == nil {
		t.Error("q did not quit")
	}
}
