package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
)

func TestLoggerShapesAndRedacts(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newLogger(buf, Options{Service: "fxoracle", Env: "test", Level: "debug"})

	dsn := "postgres://oracle:hunter2@db:5432/journal"
	logger.Debug("journal opened",
		slog.String("journal_dsn", dsn),
		slog.String("instrument", "fxt1example"),
		MaskField("seed", "node@10.0.0.1"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if bytes.Contains(buf.Bytes(), []byte("hunter2")) {
		t.Fatalf("log output leaked dsn: %s", buf.Bytes())
	}
	checks := map[string]string{
		"service":     "fxoracle",
		"env":         "test",
		"severity":    "DEBUG",
		"message":     "journal opened",
		"journal_dsn": RedactedValue,
		"seed":        RedactedValue,
		"instrument":  "fxt1example",
	}
	for key, want := range checks {
		if got, _ := entry[key].(string); got != want {
			t.Fatalf("%s: got %q want %q", key, got, want)
		}
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Fatalf("expected timestamp key in %v", entry)
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newLogger(buf, Options{Service: "fxoracle", Level: "warn"})
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info must be filtered at warn level: %s", buf.String())
	}
	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Fatalf("warn must be emitted")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("%q: got %v want %v", raw, got, want)
		}
	}
}

func TestSensitiveKeys(t *testing.T) {
	for _, key := range []string{"journal_dsn", "OTEL_HEADERS", "api_token", "private_key"} {
		if !IsSensitive(key) {
			t.Fatalf("%s must be sensitive", key)
		}
	}
	for _, key := range []string{"quote_ref", "instrument", "symbol", "amount"} {
		if IsSensitive(key) {
			t.Fatalf("%s must not be sensitive", key)
		}
	}
	if MaskValue("") != "" {
		t.Fatalf("empty values stay empty")
	}
}

func TestSetupWithFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oracle.log")
	logger := SetupWithOptions(Options{Service: "fxoracle", Level: "error", File: &FileOptions{Path: path, MaxSizeMB: 1}})
	if logger == nil {
		t.Fatalf("expected logger")
	}
	logger.Error("written to file")
	if slog.Default() == nil {
		t.Fatalf("default logger not installed")
	}
}
