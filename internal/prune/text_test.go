package prune

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTextKeepsShortInput(t *testing.T) {
	t.Parallel()

	in := "line one\nline two"
	if got := Text(in, Limits{}); got != in {
		t.Fatalf("expected unchanged text, got %q", got)
	}
}

func TestTextPrunesBytes(t *testing.T) {
	t.Parallel()

	in := "HEAD" + strings.Repeat("x", 5000) + "TAIL"
	limits := Limits{MaxBytes: 1024, MaxLines: 100}
	got := Text(in, limits)

	if len(got) > limits.MaxBytes {
		t.Fatalf("pruned output has %d bytes, limit %d", len(got), limits.MaxBytes)
	}
	if !strings.HasPrefix(got, "HEAD") || !strings.HasSuffix(got, "TAIL") {
		t.Fatalf("expected head and tail to survive, got %q", got)
	}
	if !strings.Contains(got, Marker) {
		t.Fatalf("expected marker in %q", got)
	}
}

func TestTextPrunesLines(t *testing.T) {
	t.Parallel()

	lines := make([]string, 1000)
	for i := range lines {
		lines[i] = "row"
	}
	limits := Limits{MaxLines: 20}
	got := Text(strings.Join(lines, "\n"), limits)

	if n := CountLines(got); n > limits.MaxLines {
		t.Fatalf("pruned output has %d lines, limit %d", n, limits.MaxLines)
	}
	if Exceeds(got, limits) {
		t.Fatalf("pruned output still exceeds limits")
	}
}

func TestTextKeepsUTF8Valid(t *testing.T) {
	t.Parallel()

	in := strings.Repeat("日本語", 2000)
	got := Text(in, Limits{MaxBytes: 512})
	if !utf8.ValidString(got) {
		t.Fatalf("pruned output is not valid utf-8")
	}
}
