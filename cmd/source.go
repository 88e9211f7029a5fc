// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/esptrace/pkg/espflash"
)

// byteClock assigns positions, in microseconds since capture start, to received bytes.
// A read of n bytes is assumed to have ended at the time it returned, with the bytes
// spaced one character time apart (10 bits per byte at the configured baud).
type byteClock struct {
	origin     time.Time
	byteMicros uint64
	now        func() time.Time

	mu      sync.Mutex
	lastEnd [2]uint64
}

func newByteClock(baud int) *byteClock {
	if baud <= 0 {
		baud = 115200
	}
	micros := uint64(10_000_000 / baud)
	if micros == 0 {
		micros = 1
	}
	return &byteClock{origin: time.Now(), byteMicros: micros, now: time.Now}
}

// stamp converts a chunk read on ch into ByteEvents
func (c *byteClock) stamp(ch espflash.Channel, data []byte) []espflash.ByteEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	arrived := uint64(c.now().Sub(c.origin).Microseconds())
	span := uint64(len(data)) * c.byteMicros

	start := c.lastEnd[ch]
	if arrived > span && arrived-span > start {
		start = arrived - span
	}

	events := make([]espflash.ByteEvent, len(data))
	for i, b := range data {
		events[i] = espflash.ByteEvent{
			Start:   start,
			End:     start + c.byteMicros - 1,
			Channel: ch,
			Value:   b,
			Valid:   true,
		}
		start += c.byteMicros
	}
	c.lastEnd[ch] = start
	return events
}

// readSources reads every source on its own goroutine and merges the bytes into
// one channel, so decoding stays on a single goroutine. The channel is closed
// once every source has failed or ctx is done. Sources are closed when ctx is done.
func readSources(ctx context.Context, sources []Source, clock *byteClock) <-chan espflash.ByteEvent {
	out := make(chan espflash.ByteEvent, 1024)

	// Closing unblocks readers stuck in ReadChunk
	go func() {
		<-ctx.Done()
		closeSources(sources)
	}()

	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				ch, data, err := src.ReadChunk()
				if err != nil {
					if errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
						logger.Info().Err(err).Msg("source closed")
						return
					}
					if ctx.Err() != nil {
						return
					}
					logger.Warn().Err(err).Msg("read error")
					// Brief pause before retry on transient errors (e.g., serial)
					time.Sleep(10 * time.Millisecond)
					continue
				}
				for _, ev := range clock.stamp(ch, data) {
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}(src)
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
