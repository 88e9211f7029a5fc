// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/Thermoquad/esptrace/pkg/espflash"
)

// EnvPassword holds the WebSocket bridge password
const EnvPassword = "ESPTRACE_PASSWORD"

// Connection provides a common interface for reading/writing bytes on a serial line
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// Source yields chunks of bytes tagged with the physical line they arrived on
type Source interface {
	ReadChunk() (espflash.Channel, []byte, error)
	io.Closer
}

// ErrConnectionClosed is returned when reading from a closed bridge connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ResetIntoBootloader pulses EN and IO0 through RTS and DTR, using the
// auto-reset circuit found on most development boards.
func (s *SerialConnection) ResetIntoBootloader() error {
	steps := []struct {
		dtr, rts bool
		hold     time.Duration
	}{
		{dtr: false, rts: true, hold: 100 * time.Millisecond}, // EN low
		{dtr: true, rts: false, hold: 50 * time.Millisecond},  // IO0 low, EN released
		{dtr: false, rts: false},
	}
	for _, step := range steps {
		if err := s.port.SetDTR(step.dtr); err != nil {
			return fmt.Errorf("failed to set DTR: %w", err)
		}
		if err := s.port.SetRTS(step.rts); err != nil {
			return fmt.Errorf("failed to set RTS: %w", err)
		}
		time.Sleep(step.hold)
	}
	return nil
}

// lineSource reads one physical line through a Connection
type lineSource struct {
	conn    Connection
	channel espflash.Channel
	buf     []byte
}

func newLineSource(conn Connection, channel espflash.Channel) *lineSource {
	return &lineSource{conn: conn, channel: channel, buf: make([]byte, 256)}
}

func (l *lineSource) ReadChunk() (espflash.Channel, []byte, error) {
	n, err := l.conn.Read(l.buf)
	if err != nil {
		return l.channel, nil, err
	}
	if n == 0 {
		// serial reads return 0 bytes on timeout
		return l.channel, nil, nil
	}
	data := make([]byte, n)
	copy(data, l.buf[:n])
	return l.channel, data, nil
}

func (l *lineSource) Close() error {
	return l.conn.Close()
}

// WebSocketConnection talks to a UART bridge that multiplexes both lines
// over one WebSocket. Every binary message is [channel][bytes...].
type WebSocketConnection struct {
	conn   *websocket.Conn
	closed bool // Track if connection has failed/closed
}

// parseBridgeMessage splits a bridge message into its line and payload
func parseBridgeMessage(msg []byte) (espflash.Channel, []byte, error) {
	if len(msg) == 0 {
		return 0, nil, fmt.Errorf("empty bridge message")
	}
	switch msg[0] {
	case byte(espflash.ChannelRX), byte(espflash.ChannelTX):
		return espflash.Channel(msg[0]), msg[1:], nil
	default:
		return 0, nil, fmt.Errorf("bridge message for unknown channel %d", msg[0])
	}
}

// ReadChunk returns the payload of the next binary bridge message
func (w *WebSocketConnection) ReadChunk() (espflash.Channel, []byte, error) {
	// Return immediately if connection is known to be closed
	if w.closed {
		return 0, nil, ErrConnectionClosed
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			// Mark connection as closed to prevent further read attempts
			w.closed = true
			return 0, nil, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
		}

		if messageType != websocket.BinaryMessage {
			continue
		}
		return parseBridgeMessage(data)
	}
}

// Write sends bytes to the bridge for transmission on the TX line
func (w *WebSocketConnection) Write(p []byte) (int, error) {
	msg := make([]byte, 0, len(p)+1)
	msg = append(msg, byte(espflash.ChannelTX))
	msg = append(msg, p...)
	if err := w.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (*SerialConnection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	// Bounded reads let reader goroutines notice shutdown
	if err := port.SetReadTimeout(200 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to configure serial port %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (*WebSocketConnection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv(EnvPassword); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// openSources opens every line selected by flags or config.
// The returned writer (nil for passive taps) transmits towards the module.
func openSources() ([]Source, io.Writer, string, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, nil, "", err
		}
		logger.Info().Str("url", wsURL).Msg("bridge connected")
		return []Source{conn}, conn, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" && rxPortName != "" {
		return nil, nil, "", fmt.Errorf("--port and --rx-port both read the RX line, use one")
	}

	var (
		sources []Source
		writer  io.Writer
		info    []string
	)
	open := func(name string, ch espflash.Channel) error {
		conn, err := OpenSerialConnection(name, baudRate)
		if err != nil {
			return err
		}
		logger.Info().Str("port", name).Stringer("line", ch).Int("baud", baudRate).Msg("serial port opened")
		sources = append(sources, newLineSource(conn, ch))
		info = append(info, fmt.Sprintf("%s=%s", ch, name))
		if name == portName {
			writer = conn
		}
		return nil
	}

	for _, line := range []struct {
		name string
		ch   espflash.Channel
	}{
		{portName, espflash.ChannelRX},
		{rxPortName, espflash.ChannelRX},
		{txPortName, espflash.ChannelTX},
	} {
		if line.name == "" {
			continue
		}
		if err := open(line.name, line.ch); err != nil {
			closeSources(sources)
			return nil, nil, "", err
		}
	}

	if len(sources) == 0 {
		return nil, nil, "", fmt.Errorf("one of --port, --rx-port, --tx-port or --url must be specified")
	}
	return sources, writer, fmt.Sprintf("Serial: %s @ %d baud", strings.Join(info, ", "), baudRate), nil
}

func closeSources(sources []Source) {
	for _, s := range sources {
		if err := s.Close(); err != nil {
			logger.Debug().Err(err).Msg("close failed")
		}
	}
}
