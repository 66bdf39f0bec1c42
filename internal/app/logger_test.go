package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/heartmarshall/dutchstory-backend/internal/config"
)

func TestNewLogger_SetsDefault(t *testing.T) {
	logger := NewLogger(config.LogConfig{Level: "info", Format: "json"})

	if slog.Default().Handler() != logger.Handler() {
		t.Error("NewLogger should set the returned logger as slog default")
	}
}

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogConfig{Level: "info", Format: "json"})

	logger.Info("ask served", slog.String("request_id", "abc"))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("json format should produce valid JSON: %v", err)
	}
	if m["msg"] != "ask served" || m["request_id"] != "abc" {
		t.Errorf("unexpected record: %v", m)
	}
	if _, ok := m["source"]; ok {
		t.Error("json format should not include source")
	}
}

func TestNewLogger_TextFormatAddsSource(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogConfig{Level: "info", Format: "TEXT"})

	logger.Info("hello")

	if !strings.Contains(buf.String(), "source=") {
		t.Errorf("text format should include source, got %q", buf.String())
	}
}

func TestNewLogger_UnknownFormatFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogConfig{Level: "info", Format: "xml"})

	logger.Info("hello")

	if !json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level    string
		wantSlog slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{" ERROR ", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run("level_"+tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, config.LogConfig{Level: tt.level, Format: "text"})

			logger.Log(context.Background(), tt.wantSlog, "should appear")
			if buf.Len() == 0 {
				t.Errorf("expected log output at level %v", tt.wantSlog)
			}

			buf.Reset()
			logger.Log(context.Background(), tt.wantSlog-1, "should be suppressed")
			if buf.Len() != 0 {
				t.Errorf("level %v should suppress %v, got: %s", tt.wantSlog, tt.wantSlog-1, buf.String())
			}
		})
	}
}
