// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/esptrace/pkg/espflash"
)

var (
	recordOut      string
	recordDuration int
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record raw line traffic to a capture file",
	Long: `Record every byte received on the RX and TX lines, with its position and line,
to a CBOR capture file for later offline decoding with 'replay'.

Recording stops on Ctrl+C, when every source closes, or after --duration seconds.`,
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVarP(&recordOut, "out", "o", "", "Capture file to write (required)")
	recordCmd.Flags().IntVarP(&recordDuration, "duration", "d", 0, "Stop after this many seconds (0 = until interrupted)")
	recordCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(recordCmd)
}

// recordStream writes every event to w and returns the number written
func recordStream(events <-chan espflash.ByteEvent, w *espflash.CaptureWriter) (uint64, error) {
	for ev := range events {
		if err := w.Write(ev); err != nil {
			return w.Count(), err
		}
	}
	return w.Count(), nil
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if recordDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(recordDuration)*time.Second)
		defer cancel()
	}

	warnIgnoredPublisher("record")

	f, err := os.Create(recordOut)
	if err != nil {
		return fmt.Errorf("failed to create capture file: %w", err)
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	writer, err := espflash.NewCaptureWriter(buf, baudRate)
	if err != nil {
		return err
	}

	sources, _, connInfo, err := openSources()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "esptrace - Capture\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Output: %s\n", recordOut)
	fmt.Fprintf(out, "Press Ctrl+C to stop\n\n")

	start := time.Now()
	n, err := recordStream(readSources(ctx, sources, newByteClock(baudRate)), writer)
	if err != nil {
		// Unblock readers before returning
		stop()
		return err
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush capture file: %w", err)
	}

	logger.Info().Str("file", recordOut).Uint64("events", n).Dur("elapsed", time.Since(start)).Msg("capture written")
	fmt.Fprintf(out, "Captured %d bytes in %.1f seconds\n", n, time.Since(start).Seconds())
	return nil
}
