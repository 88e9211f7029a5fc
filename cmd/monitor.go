// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/esptrace/pkg/espflash"
)

var (
	monitorErrorsOnly    bool
	monitorStatsInterval int
	useTUI               bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor bootloader traffic with live statistics",
	Long: `Decode bootloader traffic and track per-direction statistics.

The terminal UI shows frame and error counters for both directions, the
commands seen so far, frame and error rates, and a scrolling log of
annotations. Keys: e toggles errors-only, p pauses the log, c clears,
arrows/PgUp/PgDn scroll, q quits.

When --mqtt-broker is set every annotation is also published to the broker.

With --tui=false annotations are printed as text and a statistics summary is
printed every --stats-interval seconds.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorErrorsOnly, "errors-only", false, "Only show error annotations")
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 10, "Statistics interval in seconds (text mode)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	sources, _, connInfo, err := openSources()
	if err != nil {
		return err
	}

	if useTUI {
		return runTUIMode(cmd.Context(), sources, connInfo)
	}
	return runTextMode(cmd, sources, connInfo)
}

// runTUIMode decodes on a background goroutine and hands annotations to the UI
func runTUIMode(parent context.Context, sources []Source, connInfo string) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// stderr belongs to the TUI from here on
	logger.Debug().Msg("starting terminal UI, logging disabled")
	logger = zerolog.Nop()

	publisher, err := dialPublisher()
	if err != nil {
		closeSources(sources)
		return err
	}

	var p *tea.Program
	sinks := espflash.MultiSink{espflash.SinkFunc(func(a espflash.Annotation) {
		p.Send(annotationMsg(a))
	})}
	if publisher != nil {
		defer publisher.Close()
		sinks = append(sinks, publisher)
	}
	router := espflash.NewRouter(routerConfig, sinks)

	m := initialModel(connInfo, describeRouting(router.Config()), monitorErrorsOnly)
	p = tea.NewProgram(m, tea.WithMouseCellMotion())

	events := readSources(ctx, sources, newByteClock(baudRate))

	go func() {
		decodeStream(events, router)
		p.Send(sourceClosedMsg{})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}

// runTextMode prints annotations and periodic statistics
func runTextMode(cmd *cobra.Command, sources []Source, connInfo string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	stats := espflash.NewStatistics()
	sinks := espflash.MultiSink{stats, &printSink{out: out, errorsOnly: monitorErrorsOnly}}

	publisher, err := dialPublisher()
	if err != nil {
		closeSources(sources)
		return err
	}
	if publisher != nil {
		defer publisher.Close()
		sinks = append(sinks, publisher)
	}
	router := espflash.NewRouter(routerConfig, sinks)

	fmt.Fprintf(out, "esptrace - Monitor\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Routing: %s\n", describeRouting(router.Config()))
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	events := readSources(ctx, sources, newByteClock(baudRate))

	interval := time.Duration(monitorStatsInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				fmt.Fprint(out, "\n"+stats.String())
				return nil
			}
			router.Decode(ev)
		case <-ticker.C:
			fmt.Fprint(out, "\n"+stats.String()+"\n")
		}
	}
}
