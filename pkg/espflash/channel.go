// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package espflash

import (
	"fmt"
	"strings"
)

// ParseChannel converts a line name ("RX"/"TX", case-insensitive) or index ("0"/"1")
func ParseChannel(s string) (Channel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RX", "0":
		return ChannelRX, nil
	case "TX", "1":
		return ChannelTX, nil
	default:
		return 0, fmt.Errorf("invalid channel %q (use RX or TX)", s)
	}
}
