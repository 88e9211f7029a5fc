// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/esptrace/pkg/espflash"
)

// Annotation log entry
type logEntry struct {
	timestamp  time.Time
	annotation espflash.Annotation
}

// TUI model
type model struct {
	connInfo      string
	routing       string
	errorsOnly    bool
	paused        bool
	stats         *espflash.Statistics
	log           []logEntry
	maxLogEntries int
	viewport      viewport.Model
	closed        bool
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type annotationMsg espflash.Annotation
type sourceClosedMsg struct{}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	programmerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))

	moduleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("13"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// formatElapsed formats a duration as a human-friendly string
func formatElapsed(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds <= 0 {
		return "0 seconds"
	}

	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	unit := func(n int64, name string) string {
		if n == 1 {
			return "1 " + name
		}
		return fmt.Sprintf("%d %ss", n, name)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, unit(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, unit(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, unit(minutes, "minute"))
	}
	if seconds > 0 {
		parts = append(parts, unit(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialModel(connInfo, routing string, errorsOnly bool) model {
	vp := viewport.New(76, 10)
	return model{
		connInfo:      connInfo,
		routing:       routing,
		errorsOnly:    errorsOnly,
		stats:         espflash.NewStatistics(),
		log:           make([]logEntry, 0),
		maxLogEntries: 500,
		viewport:      vp,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Rows used by everything above the log box
const headerRows = 14

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "e":
			m.errorsOnly = !m.errorsOnly
			m.refreshLog()
			return m, nil
		case "p":
			m.paused = !m.paused
			if !m.paused {
				m.refreshLog()
			}
			return m, nil
		case "c":
			m.log = m.log[:0]
			m.stats.Reset()
			m.refreshLog()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = max(msg.Width-6, 20)
		m.viewport.Height = max(msg.Height-headerRows, 5)
		m.refreshLog()

	case tickMsg:
		// Update statistics rates
		m.stats.CalculateRates()
		return m, tickCmd()

	case annotationMsg:
		a := espflash.Annotation(msg)
		m.stats.Put(a)
		m.addLogEntry(a)
		if !m.paused && (a.IsError() || !m.errorsOnly) {
			m.refreshLog()
		}
		return m, nil

	case sourceClosedMsg:
		m.closed = true
		return m, nil
	}

	// Scrolling keys and mouse go to the log
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) addLogEntry(a espflash.Annotation) {
	m.log = append(m.log, logEntry{timestamp: time.Now(), annotation: a})

	// Keep only last N entries
	if len(m.log) > m.maxLogEntries {
		m.log = m.log[len(m.log)-m.maxLogEntries:]
	}
}

// refreshLog re-renders the visible entries, following the tail unless the
// user scrolled away from it
func (m *model) refreshLog() {
	follow := m.viewport.AtBottom() || m.viewport.TotalLineCount() <= m.viewport.Height

	var s strings.Builder
	shown := 0
	for _, entry := range m.log {
		if m.errorsOnly && !entry.annotation.IsError() {
			continue
		}
		if shown > 0 {
			s.WriteString("\n")
		}
		s.WriteString(renderLogEntry(entry))
		shown++
	}
	if shown == 0 {
		s.WriteString(headerStyle.Render("  (no annotations yet)"))
	}

	m.viewport.SetContent(s.String())
	if follow {
		m.viewport.GotoBottom()
	}
}

func renderLogEntry(entry logEntry) string {
	a := entry.annotation
	timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
	category := fmt.Sprintf("%-11s", a.Category)
	label := strings.ReplaceAll(a.Long, "\n", " ")

	switch {
	case a.IsError():
		return fmt.Sprintf("%s %s %s", timestamp, errorStyle.Render(category), errorStyle.Render("✗ "+label))
	case a.Category.Direction == espflash.DirectionProgrammer:
		return fmt.Sprintf("%s %s %s", timestamp, programmerStyle.Render(category), label)
	default:
		return fmt.Sprintf("%s %s %s", timestamp, moduleStyle.Render(category), label)
	}
}

func (m model) renderDirection(dir espflash.Direction) string {
	d := &m.stats.Directions[dir]
	style := programmerStyle
	if dir == espflash.DirectionModule {
		style = moduleStyle
	}

	errs := statsValueStyle.Render("0")
	if d.Errors() > 0 {
		errs = errorStyle.Render(fmt.Sprintf("%d (framing %d, protocol %d)", d.Errors(), d.FramingErrors, d.ProtocolErrors))
	}

	seen := ""
	if len(d.Commands) > 0 {
		names := make([]string, 0, len(d.Commands))
		for name := range d.Commands {
			names = append(names, name)
		}
		sort.Strings(names)
		counts := make([]string, 0, len(names))
		for _, name := range names {
			counts = append(counts, fmt.Sprintf("%s×%d", name, d.Commands[name]))
		}
		if len(counts) > 4 {
			counts = append(counts[:4], "…")
		}
		seen = "   " + headerStyle.Render(strings.Join(counts, " "))
	}

	return fmt.Sprintf("%s %s %s   %s %s%s",
		style.Render(fmt.Sprintf("%-4s", dir)),
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", d.Frames)),
		statsLabelStyle.Render("Errors:"), errs,
		seen,
	)
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("ESPTRACE - BOOTLOADER MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | e: errors only, p: pause, c: clear, q: quit",
		m.connInfo, func() string {
			if m.errorsOnly {
				return "Errors only"
			}
			return "All annotations"
		}())))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(m.routing))
	s.WriteString("\n\n")

	// Source status
	switch {
	case m.closed:
		s.WriteString(warningStyle.Render("⏹ Connection closed"))
	case m.stats.Annotations == 0:
		s.WriteString(warningStyle.Render("⏳ Waiting for traffic..."))
	case m.paused:
		s.WriteString(warningStyle.Render("⏸ Paused"))
	default:
		s.WriteString(statsValueStyle.Render("✓ Decoding"))
	}
	s.WriteString(headerStyle.Render(" for " + formatElapsed(time.Since(m.stats.StartTime))))
	s.WriteString("\n\n")

	// Statistics
	statsContent := strings.Builder{}
	statsContent.WriteString(m.renderDirection(espflash.DirectionProgrammer))
	statsContent.WriteString("\n")
	statsContent.WriteString(m.renderDirection(espflash.DirectionModule))
	statsContent.WriteString("\n")
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Annotation log
	s.WriteString(statsLabelStyle.Render("Recent Annotations:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(m.width - 4).Render(m.viewport.View()))

	return s.String()
}
