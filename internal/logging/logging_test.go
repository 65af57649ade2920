package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hive-corporation/phishwatch/internal/config"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.LoggingConfig{Level: "warn", Format: "json"}, "phishwatch-api")

	log.Info().Msg("dropped")
	log.Warn().Str("url", "http://paypal-secure.tk").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line above warn level, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Expected JSON output: %v", err)
	}
	if entry["service"] != "phishwatch-api" || entry["message"] != "kept" {
		t.Errorf("Unexpected entry %v", entry)
	}
}

func TestNewWithWriter_UnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.LoggingConfig{Level: "loud"}, "test")

	log.Debug().Msg("hidden")
	log.Info().Msg("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("Expected info level fallback, got %q", buf.String())
	}
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.LoggingConfig{Level: "info", Format: "console"}, "test")
	log.Info().Msg("hello")

	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("Console format should not be JSON, got %q", buf.String())
	}
}
