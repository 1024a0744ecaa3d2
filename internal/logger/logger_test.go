package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeTruncatesKeysInProduction(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar(), truncate: true}

	long := strings.Repeat("a", 40)
	l.Warn("invalid achievement key", "key", long, "game_id", "internet-basics")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if got := fields["key"]; got != long[:maxValueLen]+"..." {
		t.Errorf("key field = %v, want truncated value", got)
	}
	if got := fields["game_id"]; got != "internet-basics" {
		t.Errorf("game_id field = %v, want %v", got, "internet-basics")
	}
}

func TestSanitizeLeavesDevelopmentValues(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	long := strings.Repeat("b", 40)
	l.Info("minted", "key", long)

	if got := logs.All()[0].ContextMap()["key"]; got != long {
		t.Errorf("key field = %v, want untouched value", got)
	}
}
