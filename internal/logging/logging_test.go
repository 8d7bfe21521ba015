package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewFiltersBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New("warn", &buf)

	log.Info("should not appear")
	log.Warn("should appear")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected exactly one logged line at warn level, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected a JSON log line, got %q: %v", lines[0], err)
	}
	if entry["message"] != "should appear" {
		t.Errorf("unexpected message field: %+v", entry)
	}
}

func TestNewUnrecognizedLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New("not-a-level", &buf)

	log.Debug("should not appear")
	log.Info("should appear")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected exactly one logged line at the info fallback level, got %d: %q", len(lines), buf.String())
	}
}

func TestWithAttachesStructuredField(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", &buf).With("request_id", "req-1")

	log.Info("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a JSON log line: %v", err)
	}
	if entry["request_id"] != "req-1" {
		t.Errorf("expected request_id field to be carried through, got %+v", entry)
	}
}
