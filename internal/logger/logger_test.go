package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestGetLevel(t *testing.T) {
	if GetLevel("warning") != "WARN" {
		t.Errorf("expected WARN, got %s", GetLevel("warning"))
	}
	if GetLevel("") != "INFO" {
		t.Errorf("expected INFO for empty level")
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Config{Level: "info", Format: "json"})
	log.Debug("hidden")
	log.Info("claim submitted", "claim_id", "claim_1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if entry["claim_id"] != "claim_1" {
		t.Errorf("claim_id = %v", entry["claim_id"])
	}
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, Config{Level: "debug", Format: "text"}).Debug("tick", "assigned", 2)

	if !strings.Contains(buf.String(), "assigned=2") {
		t.Errorf("expected text output, got %q", buf.String())
	}
}
