package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"Info":    slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewStderrLogger(t *testing.T) {
	log, closer := New(Config{Level: "debug"})
	if log == nil {
		t.Fatal("nil logger")
	}
	if closer != nil {
		t.Fatal("stderr logger must not return a closer")
	}
	if !log.Enabled(t.Context(), slog.LevelDebug) {
		t.Fatal("debug level not enabled")
	}
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batchctl.log")
	log, closer := New(Config{File: path, Level: "warn"})
	if closer == nil {
		t.Fatal("file logger must return a closer")
	}
	defer closer.Close()

	log.Info("dropped below level")
	log.Warn("worker survived grace window", "pid", 42)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "dropped below level") {
		t.Fatal("info line written despite warn level")
	}
	if !strings.Contains(out, "worker survived grace window") || !strings.Contains(out, "pid=42") {
		t.Fatalf("warn line missing: %q", out)
	}
}
