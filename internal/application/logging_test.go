package application

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/workstation-scheduler/internal/logging"
)

func TestLogResultLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantLevel string
		wantMsg   string
	}{
		{name: "success", wantLevel: "INFO", wantMsg: "booking succeeded"},
		{name: "rejection", err: &InvalidStateError{Reason: "canceled"}, wantLevel: "WARN", wantMsg: "booking rejected"},
		{name: "storage", err: &StorageError{Op: "apply", Err: errors.New("busy")}, wantLevel: "ERROR", wantMsg: "booking failed"},
		{name: "consistency", err: ErrInternalConsistency, wantLevel: "ERROR", wantMsg: "booking failed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logResult(context.Background(), logging.NewLogger(&buf, slog.LevelDebug), tc.err, "booking", "resource_id", "ws-1")

			out := buf.String()
			if !strings.Contains(out, `"level":"`+tc.wantLevel+`"`) || !strings.Contains(out, `"msg":"`+tc.wantMsg+`"`) {
				t.Fatalf("expected %s %q, got %s", tc.wantLevel, tc.wantMsg, out)
			}
			if !strings.Contains(out, `"resource_id":"ws-1"`) {
				t.Fatalf("expected attributes to be kept, got %s", out)
			}
		})
	}
}

func TestServiceLoggerPrefersContext(t *testing.T) {
	t.Parallel()

	var base, scoped bytes.Buffer
	ctx := logging.ContextWithLogger(context.Background(), logging.NewLogger(&scoped, slog.LevelInfo).With("request_id", "req-1"))

	serviceLogger(ctx, logging.NewLogger(&base, slog.LevelInfo), "ReservationService", "Cancel").Info("done")

	if base.Len() != 0 {
		t.Fatalf("expected base logger to stay unused, got %s", base.String())
	}
	out := scoped.String()
	for _, want := range []string{`"request_id":"req-1"`, `"service":"ReservationService"`, `"operation":"Cancel"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatal("expected default logger when none provided")
	}
}
