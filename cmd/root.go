// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Thermoquad/esptrace/pkg/config"
	"github.com/Thermoquad/esptrace/pkg/espflash"
	"github.com/Thermoquad/esptrace/pkg/logging"
)

var (
	configPath string
	logLevel   string

	// Serial connection flags
	portName   string
	rxPortName string
	txPortName string
	baudRate   int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Direction to line mapping
	pmChannel string
	mpChannel string

	// Annotation publishing
	mqttBroker string
	mqttTopic  string

	// Resolved at startup
	settings     *config.Config
	routerConfig espflash.RouterConfig
	logger       = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "esptrace",
	Short: "ESP32 Serial Bootloader Protocol Analyzer",
	Long: `esptrace - A CLI tool for decoding ESP32 serial bootloader traffic.

Decodes the SLIP framing and the bootloader command protocol exchanged between a
programmer (esptool, IDE, production flasher) and an ESP32 module, labeling every
header field: direction, command, size, checksum or value, and data.

Connection modes:
  Serial (sniffer): --rx-port /dev/ttyUSB0 --tx-port /dev/ttyUSB1 [--baud 115200]
  Serial (direct):  --port /dev/ttyUSB0
  WebSocket bridge: --url ws://host/path [--username user]

When sniffing (--rx-port/--tx-port) or bridging (--url), programmer->module
traffic is expected on RX and module->programmer traffic on TX. On a direct
--port the module's replies arrive on RX and requests leave on TX, so the
mapping flips. Use --pm-channel / --mp-channel to override it; both may name
the same line.

Settings may also be read from a YAML or TOML file (--config, default
~/.esptrace.yaml). Command-line flags take precedence.

For WebSocket authentication, the password is read from the ESPTRACE_PASSWORD
environment variable, or prompted interactively if not set.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error, off)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port connected to the module (reads are RX)")
	rootCmd.PersistentFlags().StringVar(&rxPortName, "rx-port", "", "Serial port sniffing the RX line")
	rootCmd.PersistentFlags().StringVar(&txPortName, "tx-port", "", "Serial port sniffing the TX line")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket bridge URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&pmChannel, "pm-channel", "", "Line carrying programmer->module traffic (RX or TX; default RX, TX with --port)")
	rootCmd.PersistentFlags().StringVar(&mpChannel, "mp-channel", "", "Line carrying module->programmer traffic (RX or TX; default TX, RX with --port)")

	rootCmd.PersistentFlags().StringVar(&mqttBroker, "mqtt-broker", "", "Publish annotations to this MQTT broker (tcp://host:1883)")
	rootCmd.PersistentFlags().StringVar(&mqttTopic, "mqtt-topic", "esptrace", "MQTT topic prefix")
}

// loadSettings merges the config file under the command-line flags
func loadSettings(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path, !flags.Changed("config"))
	if err != nil {
		return err
	}

	overrideString(flags, "log-level", &cfg.LogLevel, logLevel)
	overrideString(flags, "port", &cfg.Port, portName)
	overrideString(flags, "rx-port", &cfg.RXPort, rxPortName)
	overrideString(flags, "tx-port", &cfg.TXPort, txPortName)
	overrideString(flags, "url", &cfg.URL, wsURL)
	overrideString(flags, "username", &cfg.Username, wsUsername)
	overrideString(flags, "pm-channel", &cfg.ProgrammerChannel, pmChannel)
	overrideString(flags, "mp-channel", &cfg.ModuleChannel, mpChannel)
	overrideString(flags, "mqtt-broker", &cfg.MQTT.Broker, mqttBroker)
	overrideString(flags, "mqtt-topic", &cfg.MQTT.Topic, mqttTopic)
	if flags.Changed("baud") {
		cfg.Baud = baudRate
	}
	if flags.Changed("no-ssl-verify") {
		cfg.NoSSLVerify = wsNoSSLVerify
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	rc, err := cfg.RouterConfig()
	if err != nil {
		return err
	}

	settings = cfg
	routerConfig = rc
	logLevel = cfg.LogLevel
	portName, rxPortName, txPortName = cfg.Port, cfg.RXPort, cfg.TXPort
	baudRate = cfg.Baud
	wsURL, wsUsername, wsNoSSLVerify = cfg.URL, cfg.Username, cfg.NoSSLVerify
	pmChannel, mpChannel = rc.ProgrammerChannel.String(), rc.ModuleChannel.String()
	mqttBroker, mqttTopic = cfg.MQTT.Broker, cfg.MQTT.Topic

	logger = logging.Configure(cfg.LogLevel)
	logger.Debug().
		Str("config", path).
		Stringer("pm", rc.ProgrammerChannel).
		Stringer("mp", rc.ModuleChannel).
		Msg("settings loaded")
	return nil
}

func overrideString(flags *pflag.FlagSet, name string, dst *string, value string) {
	if flags.Changed(name) {
		*dst = value
	}
}

// describeRouting renders the channel mapping for banners
func describeRouting(rc espflash.RouterConfig) string {
	return fmt.Sprintf("programmer->module on %s, module->programmer on %s", rc.ProgrammerChannel, rc.ModuleChannel)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
