// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EnvLogLevel overrides the configured level when set
const EnvLogLevel = "ESPTRACE_LOG_LEVEL"

// ParseLevel maps a level name to a zerolog level.
// Empty or unknown names yield info and false.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "off", "disabled", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

// New builds a console logger writing to w
func New(w io.Writer, level string) zerolog.Logger {
	lvl, _ := ParseLevel(level)
	if env, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		lvl = env
	}
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.TimeOnly,
	}
	return zerolog.New(output).Level(lvl).With().Timestamp().Str("app", "esptrace").Logger()
}

// Configure installs a stderr logger as the global zerolog logger
func Configure(level string) zerolog.Logger {
	logger := New(os.Stderr, level)
	log.Logger = logger
	return logger
}
