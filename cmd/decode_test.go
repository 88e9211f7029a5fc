// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Thermoquad/esptrace/pkg/espflash"
)

func TestPrintSink(t *testing.T) {
	ok := espflash.Annotation{
		Start: 0, End: 9,
		Category: espflash.Category{Direction: espflash.DirectionModule, Field: espflash.FieldCommand},
		Long:     "CMD: SYNC", Short: "SYNC",
	}
	bad := espflash.Annotation{
		Start: 10, End: 19,
		Category: espflash.Category{Direction: espflash.DirectionModule, Field: espflash.FieldError},
		Long:     "Unexpected byte while idle: 0x55", Short: "Unexpected byte while idle: 0x55",
	}

	var all bytes.Buffer
	sink := &printSink{out: &all}
	sink.Put(ok)
	sink.Put(bad)
	if lines := strings.Count(all.String(), "\n"); lines != 2 {
		t.Errorf("printed %d lines, want 2", lines)
	}
	if !strings.Contains(all.String(), "mp-cmd      CMD: SYNC") {
		t.Errorf("unexpected output: %q", all.String())
	}

	var errs bytes.Buffer
	sink = &printSink{out: &errs, errorsOnly: true}
	sink.Put(ok)
	sink.Put(bad)
	if got := errs.String(); strings.Contains(got, "SYNC") || !strings.Contains(got, "mp-error") {
		t.Errorf("errors-only output: %q", got)
	}
}

func TestDecodeStream(t *testing.T) {
	wire, err := espflash.EncodeMessage(espflash.NewSyncCommand())
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	events := make(chan espflash.ByteEvent, len(wire))
	for _, ev := range hexEvents(wire, espflash.ChannelRX, 86) {
		events <- ev
	}
	close(events)

	stats := espflash.NewStatistics()
	n := decodeStream(events, espflash.NewRouter(espflash.DefaultRouterConfig(), stats))
	if n != uint64(len(wire)) {
		t.Errorf("decoded %d bytes, want %d", n, len(wire))
	}
	if got := stats.Directions[espflash.DirectionProgrammer].Commands["SYNC"]; got != 1 {
		t.Errorf("SYNC count = %d, want 1", got)
	}
}

func TestDescribeRouting(t *testing.T) {
	got := describeRouting(espflash.RouterConfig{ProgrammerChannel: espflash.ChannelTX, ModuleChannel: espflash.ChannelTX})
	if got != "programmer->module on TX, module->programmer on TX" {
		t.Errorf("got %q", got)
	}
}

func TestDialPublisher_Disabled(t *testing.T) {
	publisher, err := dialPublisher()
	if err != nil || publisher != nil {
		t.Errorf("dialPublisher() = %v, %v; want nil, nil", publisher, err)
	}
}

func TestWarnIgnoredPublisher(t *testing.T) {
	var logs bytes.Buffer
	saved := logger
	logger = zerolog.New(&logs)
	defer func() {
		logger = saved
		mqttBroker = ""
	}()

	warnIgnoredPublisher("record")
	if logs.Len() != 0 {
		t.Fatalf("warned without a broker: %s", logs.String())
	}

	mqttBroker = "tcp://localhost:1883"
	warnIgnoredPublisher("record")
	got := logs.String()
	for _, want := range []string{`"level":"warn"`, `"command":"record"`, `"broker":"tcp://localhost:1883"`} {
		if !strings.Contains(got, want) {
			t.Errorf("warning %q missing %s", got, want)
		}
	}
}
