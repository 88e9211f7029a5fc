// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/esptrace/pkg/espflash"
	"github.com/Thermoquad/esptrace/pkg/publish"
)

var (
	decodeErrorsOnly bool
	decodeShowStats  bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode live bootloader traffic",
	Long: `Continuously decode ESP32 bootloader traffic as it arrives and print one line
per annotated field: direction, command, size, checksum or value, and data.

Framing errors (stray bytes between frames, bad escapes) and protocol errors
(invalid direction, unknown command) are printed inline as error annotations.

With --mqtt-broker every annotation is also published as JSON to
<topic>/<pm|mp>/<field>.

Supports both serial and WebSocket connections.`,
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeErrorsOnly, "errors-only", false, "Only print error annotations")
	decodeCmd.Flags().BoolVar(&decodeShowStats, "stats", false, "Print statistics on exit")
	rootCmd.AddCommand(decodeCmd)
}

// printSink writes formatted annotations to a writer
type printSink struct {
	out        io.Writer
	errorsOnly bool
}

func (p *printSink) Put(a espflash.Annotation) {
	if p.errorsOnly && !a.IsError() {
		return
	}
	fmt.Fprintln(p.out, espflash.FormatAnnotation(a))
}

// dialPublisher connects the MQTT sink when a broker is configured.
// It returns nil when publishing is disabled.
func dialPublisher() (*publish.MQTTSink, error) {
	if mqttBroker == "" {
		return nil, nil
	}
	clientID := "esptrace"
	if settings != nil && settings.MQTT.ClientID != "" {
		clientID = settings.MQTT.ClientID
	}
	return publish.Dial(mqttBroker, clientID, mqttTopic, logger)
}

// warnIgnoredPublisher logs when a broker is configured for a command that
// does not decode annotations
func warnIgnoredPublisher(command string) {
	if mqttBroker == "" {
		return
	}
	logger.Warn().Str("command", command).Str("broker", mqttBroker).Msg("no annotations to publish, --mqtt-broker ignored")
}

// decodeStream feeds events into router until the stream ends
func decodeStream(events <-chan espflash.ByteEvent, router *espflash.Router) uint64 {
	var n uint64
	for ev := range events {
		router.Decode(ev)
		n++
	}
	return n
}

func runDecode(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	stats := espflash.NewStatistics()
	sinks := espflash.MultiSink{stats, &printSink{out: out, errorsOnly: decodeErrorsOnly}}

	publisher, err := dialPublisher()
	if err != nil {
		return err
	}
	if publisher != nil {
		defer publisher.Close()
		sinks = append(sinks, publisher)
	}

	sources, _, connInfo, err := openSources()
	if err != nil {
		return err
	}

	router := espflash.NewRouter(routerConfig, sinks)

	fmt.Fprintf(out, "esptrace - Bootloader Decode\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Routing: %s\n", describeRouting(router.Config()))
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	events := readSources(ctx, sources, newByteClock(baudRate))
	n := decodeStream(events, router)
	logger.Debug().Uint64("bytes", n).Msg("decode finished")

	if decodeShowStats {
		fmt.Fprint(out, "\n"+stats.String())
	}
	return nil
}
