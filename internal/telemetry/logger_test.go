package telemetry

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestConsoleHandlerFormat(t *testing.T) {
	var out strings.Builder
	h := &consoleHandler{w: &out, level: slog.LevelInfo}

	r := slog.NewRecord(time.Date(2026, 8, 24, 9, 30, 15, 0, time.UTC), slog.LevelWarn, "redial failed", 0)
	r.AddAttrs(slog.Int("attempt", 2))
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatal(err)
	}

	got := out.String()
	if got != "09:30:15.000 WARN redial failed attempt=2\n" {
		t.Errorf("line = %q", got)
	}
}

func TestConsoleHandlerWithAttrs(t *testing.T) {
	var out strings.Builder
	base := &consoleHandler{w: &out, level: slog.LevelInfo}
	h := base.WithAttrs([]slog.Attr{slog.String("feed", "prod")})

	r := slog.NewRecord(time.Date(2026, 8, 24, 9, 30, 15, 0, time.UTC), slog.LevelInfo, "connected", 0)
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatal(err)
	}

	if got := out.String(); got != "09:30:15.000 INFO connected feed=prod\n" {
		t.Errorf("line = %q", got)
	}
}

func TestConsoleHandlerLevelGate(t *testing.T) {
	h := &consoleHandler{level: slog.LevelWarn}
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info enabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error disabled at warn level")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
