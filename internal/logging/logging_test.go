package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)
	logger.Info("dropped")
	logger.Warn("kept", "resource_id", "ws-1")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("expected info record to be filtered, got %s", out)
	}
	if !strings.Contains(out, `"msg":"kept"`) || !strings.Contains(out, `"resource_id":"ws-1"`) {
		t.Fatalf("expected JSON warn record, got %s", out)
	}
}

func TestContextLogger(t *testing.T) {
	t.Parallel()

	logger := NewLogger(&bytes.Buffer{}, slog.LevelInfo)
	fallback := NewLogger(&bytes.Buffer{}, slog.LevelInfo)

	if got := FromContext(context.Background()); got != nil {
		t.Fatalf("expected nil logger, got %v", got)
	}
	if got := FromContextOr(context.Background(), fallback); got != fallback {
		t.Fatal("expected fallback logger")
	}

	ctx := ContextWithLogger(context.Background(), logger)
	if got := FromContextOr(ctx, fallback); got != logger {
		t.Fatal("expected context logger")
	}
	if got := ContextWithLogger(ctx, nil); got != ctx {
		t.Fatal("expected nil logger to leave context untouched")
	}
}
