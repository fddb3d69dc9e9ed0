package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWritesFileAndFilteredConsole(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var console bytes.Buffer
	logger, err := New(dir, slog.LevelWarn, &console)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	stageLogger := logger.With("stage", "draft")
	stageLogger.Debug("matched inputs", "count", 3)
	stageLogger.Warn("artifact failed", "id", "2")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	file := string(data)
	if !strings.Contains(file, "matched inputs") || !strings.Contains(file, "artifact failed") || !strings.Contains(file, "stage=draft") {
		t.Fatalf("log file missing records: %s", file)
	}
	if strings.Contains(console.String(), "matched inputs") || !strings.Contains(console.String(), "artifact failed") {
		t.Fatalf("console not filtered by level: %s", console.String())
	}
}

func TestParseLevel(t *testing.T) {
	for value, want := range map[string]slog.Level{"debug": slog.LevelDebug, "INFO": slog.LevelInfo, " warn ": slog.LevelWarn, "error": slog.LevelError} {
		got, err := ParseLevel(value)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v", value, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected unknown level to fail")
	}
}
