// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLevelString(t *testing.T) {
	cases := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := tc.level.String(); got != tc.want {
			t.Errorf("Level(%d).String() = %q, want %q", tc.level, got, tc.want)
		}
	}
}

func TestLevelToSlog(t *testing.T) {
	if LevelDebug.toSlogLevel() != slog.LevelDebug {
		t.Error("debug mapping wrong")
	}
	if Level(42).toSlogLevel() != slog.LevelInfo {
		t.Error("unknown level should map to info")
	}
}

func TestDefaultLogger(t *testing.T) {
	logger := Default()
	defer logger.Close()

	if logger.Slog() == nil {
		t.Fatal("underlying slog logger missing")
	}
	// Must not panic.
	logger.Info("test message", "key", "value")
}

func TestFileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "testsvc",
		Quiet:   true,
	})

	logger.Info("file entry", "answer", 42)
	logger.Debug("filtered out")
	if err := logger.Close(); err != nil {
		t.Fatalf("closing logger: %v", err)
	}

	filename := "testsvc_" + time.Now().Format("2006-01-02") + ".log"
	raw, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.SplitN(string(raw), "\n", 2)[0]), &entry); err != nil {
		t.Fatalf("log file is not JSON: %v", err)
	}
	if entry["msg"] != "file entry" {
		t.Errorf("unexpected message: %v", entry["msg"])
	}
	if entry["service"] != "testsvc" {
		t.Errorf("missing service attribute: %v", entry)
	}
	if entry["answer"] != float64(42) {
		t.Errorf("missing attribute: %v", entry)
	}
	if strings.Contains(string(raw), "filtered out") {
		t.Error("debug entry should have been filtered")
	}
}

func TestWithAttributes(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Service: "withsvc", Quiet: true})
	defer logger.Close()

	child := logger.With("request_id", "abc123")
	child.Info("child entry")

	filename := "withsvc_" + time.Now().Format("2006-01-02") + ".log"
	raw, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(raw), "abc123") {
		t.Errorf("child attribute missing from output: %s", raw)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Quiet: true})
	if err := logger.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestMultiHandlerFanout(t *testing.T) {
	var a, b strings.Builder
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	}}
	logger := slog.New(h)
	logger.Info("fanout")

	if !strings.Contains(a.String(), "fanout") {
		t.Error("text handler missed the record")
	}
	if !strings.Contains(b.String(), "fanout") {
		t.Error("json handler missed the record")
	}
}

func TestMultiHandlerEnabled(t *testing.T) {
	errorOnly := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})
	h := &multiHandler{handlers: []slog.Handler{errorOnly}}
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled when all handlers filter it")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory in test environment")
	}
	if got := expandPath("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %q", got)
	}
	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("absolute path must pass through, got %q", got)
	}
}
