package utils

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	for _, opts := range []LoggerOptions{
		{},
		{Level: "debug", Format: "console"},
		{Level: "nonsense", Format: "json"},
	} {
		l, err := NewLogger(opts)
		if err != nil {
			t.Fatalf("NewLogger(%+v): %v", opts, err)
		}
		l.Debug("[test] %s", "ok")
	}
}

func TestLoggerFormatsAndCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core)).With("run_id", "abc")

	l.Info("[pipeline] %d rows", 3)
	l.Warn("[resolver] falling back")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Message != "[pipeline] 3 rows" {
		t.Errorf("message = %q", entries[0].Message)
	}
	if got := entries[1].ContextMap()["run_id"]; got != "abc" {
		t.Errorf("run_id = %v, want abc", got)
	}
}
