// Package prune shortens oversized text while keeping its head and tail.
package prune

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	Marker          = "[truncated]"
	DefaultMaxBytes = 16 * 1024
	DefaultMaxLines = 400

	markerReserve = 64
)

// Limits bound the pruned output. Zero fields take the defaults.
type Limits struct {
	MaxBytes int
	MaxLines int
}

func (l Limits) normalize() Limits {
	if l.MaxBytes <= 0 {
		l.MaxBytes = DefaultMaxBytes
	}
	if l.MaxLines <= 0 {
		l.MaxLines = DefaultMaxLines
	}
	return l
}

func Exceeds(s string, l Limits) bool {
	l = l.normalize()
	return len(s) > l.MaxBytes || CountLines(s) > l.MaxLines
}

func CountLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// Text returns s unchanged when it fits l. Otherwise the middle is replaced
// by a single marker line and the result stays within l.
func Text(s string, l Limits) string {
	l = l.normalize()
	if !Exceeds(s, l) {
		return s
	}
	byteBudget := l.MaxBytes/2 - markerReserve
	if byteBudget < 0 {
		byteBudget = 0
	}
	lineBudget := l.MaxLines/2 - 1
	if lineBudget < 0 {
		lineBudget = 0
	}

	head := limitLinesPrefix(safeUTF8Prefix(s, byteBudget), lineBudget)
	tail := limitLinesSuffix(safeUTF8Suffix(s, byteBudget), lineBudget)
	omitted := len(s) - len(head) - len(tail)
	marker := fmt.Sprintf("%s %d bytes omitted", Marker, omitted)

	parts := make([]string, 0, 3)
	if head != "" {
		parts = append(parts, head)
	}
	parts = append(parts, marker)
	if tail != "" {
		parts = append(parts, tail)
	}
	return strings.Join(parts, "\n")
}

func safeUTF8Prefix(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if maxBytes >= len(s) {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func safeUTF8Suffix(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if maxBytes >= len(s) {
		return s
	}
	start := len(s) - maxBytes
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}

func limitLinesPrefix(s string, maxLines int) string {
	if maxLines <= 0 || s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= maxLines {
		return s
	}
	return strings.Join(lines[:maxLines], "\n")
}

func limitLinesSuffix(s string, maxLines int) string {
	if maxLines <= 0 || s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= maxLines {
		return s
	}
	return strings.Join(lines[len(lines)-maxLines:], "\n")
}
