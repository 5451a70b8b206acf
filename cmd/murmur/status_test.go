package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"murmur/internal/ipc"
)

func TestStatusRowAlignmentAndTone(t *testing.T) {
	var plain bytes.Buffer
	statusRow(&plain, "Worker", "ready", toneGood, false)
	if got := plain.String(); got != "  Worker          ready\n" {
		t.Fatalf("plain row = %q", got)
	}

	var colored bytes.Buffer
	statusRow(&colored, "Worker", "failed", toneBad, true)
	if !strings.Contains(colored.String(), ansiRed+"failed"+ansiReset) {
		t.Fatalf("colored row missing red value: %q", colored.String())
	}
}

func TestColorDisabledForNonTerminalWriter(t *testing.T) {
	if colorEnabled(io.Discard) {
		t.Fatal("io.Discard treated as a terminal")
	}
}

func TestRenderMemoTableColumns(t *testing.T) {
	out := renderMemoTable([]ipc.Recording{
		{ID: 3, Title: "grocery list", DurationSeconds: 61, CreatedAt: "2026-08-23T10:00:00Z"},
	})
	for _, want := range []string{"ID", "Title", "Duration", "Created", "grocery list", "1:01"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table output %q missing %q", out, want)
		}
	}
}
