// Package utils provides common utility functions.
package utils

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Ellipsis marks truncated text.
const Ellipsis = "..."

// NormalizeWhitespace replaces multiple whitespace with single space.
func NormalizeWhitespace(str string) string {
	return strings.Join(strings.Fields(str), " ")
}

// TruncateWidth truncates str to at most width terminal columns, ellipsis
// included. Wide characters count as two columns.
func TruncateWidth(str string, width int) string {
	if width <= 0 {
		return ""
	}

	if runewidth.StringWidth(str) <= width {
		return str
	}

	if width <= len(Ellipsis) {
		return runewidth.Truncate(str, width, "")
	}

	return runewidth.Truncate(str, width, Ellipsis)
}
