// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads esptrace settings from a YAML or TOML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Thermoquad/esptrace/pkg/espflash"
	"gopkg.in/yaml.v3"
)

// MQTTConfig configures the optional annotation publisher
type MQTTConfig struct {
	Broker   string `yaml:"broker" toml:"broker"`
	Topic    string `yaml:"topic" toml:"topic"`
	ClientID string `yaml:"client_id" toml:"client_id"`
}

// Config holds the esptrace configuration.
// Empty channel names are resolved by RouterConfig from the connection mode.
type Config struct {
	ProgrammerChannel string `yaml:"programmer_channel" toml:"programmer_channel"`
	ModuleChannel     string `yaml:"module_channel" toml:"module_channel"`

	Baud   int    `yaml:"baud" toml:"baud"`
	Port   string `yaml:"port" toml:"port"`
	RXPort string `yaml:"rx_port" toml:"rx_port"`
	TXPort string `yaml:"tx_port" toml:"tx_port"`

	URL         string `yaml:"url" toml:"url"`
	Username    string `yaml:"username" toml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify" toml:"no_ssl_verify"`

	LogLevel string     `yaml:"log_level" toml:"log_level"`
	MQTT     MQTTConfig `yaml:"mqtt" toml:"mqtt"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Baud:     115200,
		LogLevel: "info",
		MQTT: MQTTConfig{
			Topic:    "esptrace",
			ClientID: "esptrace",
		},
	}
}

// DefaultPath returns the default config file path: ~/.esptrace.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".esptrace.yaml"
	}
	return filepath.Join(home, ".esptrace.yaml")
}

// Load reads the configuration file at path, layered over Default().
// A missing file yields the defaults when allowMissing is set.
func Load(path string, allowMissing bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return cfg, nil
		}
		return nil, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (use .yaml or .toml)", filepath.Ext(path))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// Validate checks channel names and numeric ranges
func (c *Config) Validate() error {
	if c.ProgrammerChannel != "" {
		if _, err := espflash.ParseChannel(c.ProgrammerChannel); err != nil {
			return fmt.Errorf("programmer_channel: %w", err)
		}
	}
	if c.ModuleChannel != "" {
		if _, err := espflash.ParseChannel(c.ModuleChannel); err != nil {
			return fmt.Errorf("module_channel: %w", err)
		}
	}
	if c.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", c.Baud)
	}
	return nil
}

// Direct reports whether the only connection is a duplex --port, where reads
// are the module's output and writes go towards the module.
func (c *Config) Direct() bool {
	return c.Port != "" && c.RXPort == "" && c.TXPort == "" && c.URL == ""
}

// RouterConfig converts the channel names into a decoder configuration.
// Unset names default to programmer=RX, module=TX for taps and bridges, and to
// programmer=TX, module=RX for a direct port. Both directions may name the same channel.
func (c *Config) RouterConfig() (espflash.RouterConfig, error) {
	rc := espflash.DefaultRouterConfig()
	if c.Direct() {
		rc = espflash.DirectRouterConfig()
	}

	if c.ProgrammerChannel != "" {
		pm, err := espflash.ParseChannel(c.ProgrammerChannel)
		if err != nil {
			return espflash.RouterConfig{}, fmt.Errorf("programmer channel: %w", err)
		}
		rc.ProgrammerChannel = pm
	}
	if c.ModuleChannel != "" {
		mp, err := espflash.ParseChannel(c.ModuleChannel)
		if err != nil {
			return espflash.RouterConfig{}, fmt.Errorf("module channel: %w", err)
		}
		rc.ModuleChannel = mp
	}
	return rc, nil
}
