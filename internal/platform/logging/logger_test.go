package logging

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(level Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return FromZap(zap.New(core)), logs
}

func TestLogger_KeyValueFields(t *testing.T) {
	logger, logs := newObserved(LevelDebug)

	logger.Warn("profile read failed", "user_id", "u-1", "error", errors.New("boom"), "dangling")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["user_id"] != "u-1" {
		t.Fatalf("unexpected user_id field: %v", fields["user_id"])
	}
	if fields["error"] != "boom" {
		t.Fatalf("unexpected error field: %v", fields["error"])
	}
	if _, ok := fields["dangling"]; !ok {
		t.Fatalf("expected dangling key to be kept")
	}
}

func TestLogger_ContextAddsTraceIDs(t *testing.T) {
	logger, logs := newObserved(LevelInfo)

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.InfoContext(ctx, "bootstrap resolved")

	fields := logs.All()[0].ContextMap()
	if fields["trace_id"] != traceID.String() {
		t.Fatalf("unexpected trace_id: %v", fields["trace_id"])
	}
	if fields["span_id"] != spanID.String() {
		t.Fatalf("unexpected span_id: %v", fields["span_id"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, logs := newObserved(LevelWarn)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Error("shown")

	if logs.Len() != 1 {
		t.Fatalf("expected only error entry, got %d", logs.Len())
	}
	if logs.All()[0].Level != zapcore.ErrorLevel {
		t.Fatalf("unexpected level: %s", logs.All()[0].Level)
	}
}

func TestLogger_NamedAndWith(t *testing.T) {
	logger, logs := newObserved(LevelInfo)

	logger.Named("onboarding").With("component", "controller").Info("revealed")

	entry := logs.All()[0]
	if entry.LoggerName != "onboarding" {
		t.Fatalf("unexpected logger name: %q", entry.LoggerName)
	}
	if entry.ContextMap()["component"] != "controller" {
		t.Fatalf("expected component field from With")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"WARNING": LevelWarn,
		" error ": LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%s want=%s", in, got, want)
		}
	}
}

func TestDefault_NilResetsToNop(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	SetDefault(nil)
	if Default() == nil {
		t.Fatalf("expected non-nil default logger")
	}

	var nilLogger *Logger
	nilLogger.Info("does not panic")
}
