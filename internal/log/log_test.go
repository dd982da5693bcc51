package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriterTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelInfo})

	logger.Info("chain saved", "session_id", "default")

	got := buf.String()
	if !strings.Contains(got, "chain saved") {
		t.Errorf("output = %q, want message present", got)
	}
	if !strings.Contains(got, "session_id=default") {
		t.Errorf("output = %q, want text-format attribute", got)
	}
}

func TestNewWithWriterJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelInfo, JSON: true})

	logger.Info("chain saved", "session_id", "default")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\noutput: %s", err, buf.String())
	}
	if entry["msg"] != "chain saved" {
		t.Errorf("msg = %v, want %q", entry["msg"], "chain saved")
	}
	if entry["session_id"] != "default" {
		t.Errorf("session_id = %v, want %q", entry["session_id"], "default")
	}
}

func TestNewWithWriterLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

	logger.Info("suppressed")
	logger.Warn("kept")

	got := buf.String()
	if strings.Contains(got, "suppressed") {
		t.Errorf("output = %q, info should be filtered at warn level", got)
	}
	if !strings.Contains(got, "kept") {
		t.Errorf("output = %q, warn should pass", got)
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	if logger == nil {
		t.Fatal("NewNop() returned nil")
	}
	// Must not panic at any level.
	logger.Debug("a")
	logger.Error("b")
}
