// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/esptrace/pkg/espflash"
)

var (
	replayHex        string
	replayChannel    string
	replayErrorsOnly bool
	replayShowStats  bool
)

var replayCmd = &cobra.Command{
	Use:   "replay [capture-file]",
	Short: "Decode a capture file or a hex dump offline",
	Long: `Decode previously recorded traffic without any hardware attached.

Either pass a capture file written by 'record', or give raw line bytes with
--hex and the line they were seen on with --channel:

  esptrace replay session.cbor
  esptrace replay --hex "c0 00 08 24 00 00 00 00 00 07 07 12 20 c0" --channel RX

The --pm-channel / --mp-channel mapping applies as for live decoding.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayHex, "hex", "", "Hex bytes to decode instead of a capture file")
	replayCmd.Flags().StringVar(&replayChannel, "channel", "RX", "Line the --hex bytes were seen on (RX or TX)")
	replayCmd.Flags().BoolVar(&replayErrorsOnly, "errors-only", false, "Only print error annotations")
	replayCmd.Flags().BoolVar(&replayShowStats, "stats", false, "Print statistics at the end")
	rootCmd.AddCommand(replayCmd)
}

// parseHexBytes accepts bytes separated by spaces, commas or colons, with or
// without 0x prefixes, as well as one unbroken hex string.
func parseHexBytes(s string) ([]byte, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == ':' || r == '\t' || r == '\n' || r == '\r'
	})

	var digits strings.Builder
	for _, f := range fields {
		f = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
		if len(f) == 1 {
			f = "0" + f
		}
		digits.WriteString(f)
	}

	data, err := hex.DecodeString(digits.String())
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return data, nil
}

// hexEvents positions bytes back to back on one line, one character time each
func hexEvents(data []byte, ch espflash.Channel, byteMicros uint64) []espflash.ByteEvent {
	events := make([]espflash.ByteEvent, len(data))
	for i, b := range data {
		start := uint64(i) * byteMicros
		events[i] = espflash.ByteEvent{
			Start:   start,
			End:     start + byteMicros - 1,
			Channel: ch,
			Value:   b,
			Valid:   true,
		}
	}
	return events
}

// replayCapture decodes every event of a capture into router and returns the
// event count and the baud rate recorded in the capture header
func replayCapture(r io.Reader, router *espflash.Router) (uint64, int, error) {
	reader, err := espflash.NewCaptureReader(r)
	if err != nil {
		return 0, 0, err
	}
	var n uint64
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return n, reader.Baud(), nil
		}
		if err != nil {
			return n, reader.Baud(), err
		}
		router.Decode(ev)
		n++
	}
}

func runReplay(cmd *cobra.Command, args []string) error {
	if replayHex == "" && len(args) == 0 {
		return fmt.Errorf("a capture file or --hex must be specified")
	}
	if replayHex != "" && len(args) > 0 {
		return fmt.Errorf("use either a capture file or --hex, not both")
	}

	out := cmd.OutOrStdout()
	stats := espflash.NewStatistics()
	sinks := espflash.MultiSink{stats, &printSink{out: out, errorsOnly: replayErrorsOnly}}

	publisher, err := dialPublisher()
	if err != nil {
		return err
	}
	if publisher != nil {
		defer publisher.Close()
		sinks = append(sinks, publisher)
	}

	router := espflash.NewRouter(routerConfig, sinks)

	if replayHex != "" {
		ch, err := espflash.ParseChannel(replayChannel)
		if err != nil {
			return fmt.Errorf("--channel: %w", err)
		}
		data, err := parseHexBytes(replayHex)
		if err != nil {
			return err
		}
		clock := newByteClock(baudRate)
		for _, ev := range hexEvents(data, ch, clock.byteMicros) {
			router.Decode(ev)
		}
		logger.Debug().Int("bytes", len(data)).Stringer("line", ch).Msg("hex replay finished")
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open capture file: %w", err)
		}
		defer f.Close()

		n, baud, err := replayCapture(bufio.NewReader(f), router)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		logger.Debug().Str("file", args[0]).Uint64("events", n).Int("baud", baud).Msg("capture replay finished")
		if baud > 0 && baud != baudRate {
			fmt.Fprintf(out, "Capture recorded at %d baud\n", baud)
		}
	}

	if replayShowStats {
		fmt.Fprint(out, "\n"+stats.String())
	}
	return nil
}
