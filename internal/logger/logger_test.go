package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}

	for _, tc := range tests {
		if got := parseLevel(tc.level); got != tc.expected {
			t.Errorf("parseLevel(%q) = %v, expected %v", tc.level, got, tc.expected)
		}
	}
}

func TestNopBeforeInit(t *testing.T) {
	// Must not panic before Init.
	Named("test").Info("discarded")
	Debug("discarded")
}

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithOptions(Options{Level: "warn", Console: &buf}); err != nil {
		t.Fatalf("InitWithOptions failed: %v", err)
	}
	defer InitWithOptions(Options{})

	Info("hidden message")
	Named("convert").Warn("visible message", zap.String("path", "a.obj"))
	Sync()

	out := buf.String()
	if strings.Contains(out, "hidden message") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "visible message") {
		t.Errorf("warn message missing from output: %q", out)
	}
	if !strings.Contains(out, "convert") || !strings.Contains(out, "a.obj") {
		t.Errorf("logger name or field missing from output: %q", out)
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meshtool.log")
	if err := InitWithOptions(Options{Level: "debug", File: DefaultFileConfig(path)}); err != nil {
		t.Fatalf("InitWithOptions failed: %v", err)
	}
	defer InitWithOptions(Options{})

	Debug("written to file", zap.Int("vertices", 4))
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file failed: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"written to file"`) {
		t.Errorf("unexpected log file content: %q", data)
	}
	if !strings.Contains(string(data), `"vertices":4`) {
		t.Errorf("field missing from log file: %q", data)
	}
}
