// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/esptrace/pkg/espflash"
)

var (
	syncTestTimeout  int
	syncTestInterval int
	syncTestReset    bool
)

var syncTestCmd = &cobra.Command{
	Use:   "sync_test",
	Short: "Test connection by syncing with the ROM bootloader",
	Long: `Send SYNC requests to the module and wait for its SYNC response until timeout.

The request is written to --port (or the WebSocket bridge TX line); the module's
replies are decoded from the same connection. With --reset the module is first
pulsed into the serial bootloader using the DTR/RTS lines (serial only).

Exit codes:
  0 - SYNC response received before timeout
  1 - Timeout reached without a SYNC response
  2 - Connection error

Useful for checking wiring and baud rate before flashing.`,
	RunE: runSyncTest,
}

func init() {
	rootCmd.AddCommand(syncTestCmd)
	syncTestCmd.Flags().IntVar(&syncTestTimeout, "timeout", 10, "Timeout in seconds to wait for a response")
	syncTestCmd.Flags().IntVar(&syncTestInterval, "interval", 500, "Milliseconds between SYNC attempts")
	syncTestCmd.Flags().BoolVar(&syncTestReset, "reset", false, "Reset into the bootloader via DTR/RTS before syncing")
}

// bootloaderResetter is implemented by connections with modem control lines
type bootloaderResetter interface {
	ResetIntoBootloader() error
}

// syncWatcher watches module annotations for a complete SYNC response header
type syncWatcher struct {
	mu       sync.Mutex
	inSync   bool
	response espflash.Annotation
	done     chan struct{}
	once     sync.Once
}

func newSyncWatcher() *syncWatcher {
	return &syncWatcher{done: make(chan struct{})}
}

func (w *syncWatcher) Put(a espflash.Annotation) {
	if a.Category.Direction != espflash.DirectionModule {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch a.Category.Field {
	case espflash.FieldDirection:
		w.inSync = false
	case espflash.FieldCommand:
		w.inSync = a.Short == "SYNC"
	case espflash.FieldValue:
		if w.inSync {
			w.once.Do(func() {
				w.response = a
				close(w.done)
			})
		}
	}
}

// Done is closed once a SYNC response has been decoded
func (w *syncWatcher) Done() <-chan struct{} {
	return w.done
}

// sendSync writes the SYNC frame every interval until ctx is done
func sendSync(ctx context.Context, w io.Writer, interval time.Duration) error {
	frame, err := espflash.EncodeMessage(espflash.NewSyncCommand())
	if err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for attempt := 1; ; attempt++ {
		if _, err := w.Write(frame); err != nil {
			return fmt.Errorf("failed to send SYNC: %w", err)
		}
		logger.Debug().Int("attempt", attempt).Msg("SYNC sent")

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func runSyncTest(cmd *cobra.Command, args []string) error {
	sources, writer, connInfo, err := openSources()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	if writer == nil {
		closeSources(sources)
		fmt.Fprintf(os.Stderr, "Connection error: sync_test needs a writable connection (--port or --url)\n")
		os.Exit(2)
	}

	fmt.Printf("esptrace - Sync Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", syncTestTimeout)

	if syncTestReset {
		resetter, ok := writer.(bootloaderResetter)
		if !ok {
			closeSources(sources)
			fmt.Fprintf(os.Stderr, "Connection error: --reset needs a serial --port\n")
			os.Exit(2)
		}
		if err := resetter.ResetIntoBootloader(); err != nil {
			closeSources(sources)
			fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
			os.Exit(2)
		}
		fmt.Printf("Module reset into bootloader\n")
	}
	fmt.Printf("Waiting for SYNC response...\n\n")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(syncTestTimeout)*time.Second)
	defer cancel()

	// Our requests leave on TX; the module answers on the line we read
	watcher := newSyncWatcher()
	router := espflash.NewRouter(espflash.DirectRouterConfig(), watcher)
	events := readSources(ctx, sources, newByteClock(baudRate))

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- sendSync(ctx, writer, time.Duration(syncTestInterval)*time.Millisecond)
	}()

	for {
		select {
		case <-watcher.Done():
			cancel()
			fmt.Printf("SUCCESS: Received SYNC response\n")
			fmt.Printf("  %s\n", espflash.FormatAnnotation(watcher.response))
			os.Exit(0)

		case err := <-sendErr:
			if err != nil {
				cancel()
				fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
				os.Exit(2)
			}

		case ev, ok := <-events:
			if ok {
				router.Decode(ev)
				continue
			}
			if ctx.Err() == nil {
				fmt.Fprintf(os.Stderr, "Read error: connection closed\n")
				os.Exit(2)
			}
			fmt.Fprintf(os.Stderr, "TIMEOUT: No SYNC response received within %d seconds\n", syncTestTimeout)
			os.Exit(1)

		case <-ctx.Done():
			fmt.Fprintf(os.Stderr, "TIMEOUT: No SYNC response received within %d seconds\n", syncTestTimeout)
			os.Exit(1)
		}
	}
}
