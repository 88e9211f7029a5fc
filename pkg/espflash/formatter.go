// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package espflash

import (
	"fmt"
	"strings"
)

// FormatAnnotation formats an annotation into a single human-readable line.
// Multi-line labels are folded so each annotation stays on one line.
func FormatAnnotation(a Annotation) string {
	label := strings.ReplaceAll(a.Long, "\n\n", " | ")
	label = strings.ReplaceAll(label, "\n", " ")
	return fmt.Sprintf("[%10d-%10d] %-11s %s", a.Start, a.End, a.Category.String(), label)
}

// FormatCommand formats a descriptor for listings
func FormatCommand(c *CommandDescriptor) string {
	return fmt.Sprintf("0x%02X  %-30s %s", c.Opcode, c.Label(), c.Description)
}
