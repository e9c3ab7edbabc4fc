package telemetry

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWriteUsesStructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := SetLogger(zap.New(core))
	defer restore()

	Info("consultation.status", map[string]any{"consultation_id": "c-1", "status": "analyzing"})
	Warn("vision.strategy", map[string]any{"outcome": "refused"})
	Error("worker.consultation.failed", nil)

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	first := entries[0]
	if first.Message != "consultation.status" {
		t.Fatalf("unexpected message %q", first.Message)
	}
	ctx := first.ContextMap()
	if ctx["consultation_id"] != "c-1" || ctx["status"] != "analyzing" {
		t.Fatalf("unexpected fields %v", ctx)
	}
	if entries[1].Level != zapcore.WarnLevel || entries[2].Level != zapcore.ErrorLevel {
		t.Fatalf("unexpected levels %v %v", entries[1].Level, entries[2].Level)
	}
}

func TestWriteRespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	restore := SetLogger(zap.New(core))
	defer restore()

	Info("ignored", map[string]any{"k": "v"})
	if logs.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %d entries", logs.Len())
	}
}
