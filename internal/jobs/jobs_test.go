package jobs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/workstation-scheduler/internal/calendar"
)

type fakeSweeper struct {
	calls    []Sweep
	today    calendar.Date
	now      time.Time
	grace    time.Duration
	expireFn func() (int, error)
}

func (f *fakeSweeper) ExpireLapsed(_ context.Context, today calendar.Date) (int, error) {
	f.calls = append(f.calls, SweepExpire)
	f.today = today
	if f.expireFn != nil {
		return f.expireFn()
	}
	return 2, nil
}

func (f *fakeSweeper) RemindOverdueRenewals(_ context.Context, now time.Time, grace time.Duration) (int, error) {
	f.calls = append(f.calls, SweepRenewals)
	f.now = now
	f.grace = grace
	return 1, nil
}

func (f *fakeSweeper) WarnExpiring(_ context.Context, today calendar.Date) (int, error) {
	f.calls = append(f.calls, SweepExpiring)
	return 0, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunnerRunAll(t *testing.T) {
	t.Parallel()

	// 23:30 in UTC is already the next day in Tokyo.
	now := time.Date(2024, time.March, 4, 23, 30, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*60*60)
	sweeper := &fakeSweeper{}
	runner, err := NewRunner(sweeper, Options{
		Location:     tokyo,
		RenewalGrace: 12 * time.Hour,
		Now:          func() time.Time { return now },
		Logger:       quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewRunner returned error: %v", err)
	}

	counts, err := runner.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll returned error: %v", err)
	}
	if len(sweeper.calls) != 3 || sweeper.calls[0] != SweepExpire || sweeper.calls[2] != SweepExpiring {
		t.Fatalf("unexpected call order %v", sweeper.calls)
	}
	if counts[SweepExpire] != 2 || counts[SweepRenewals] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
	if sweeper.today != calendar.MustParseDate("2024-03-05") {
		t.Fatalf("expected today in the configured zone, got %s", sweeper.today)
	}
	if sweeper.grace != 12*time.Hour || !sweeper.now.Equal(now) {
		t.Fatalf("unexpected reminder arguments now=%v grace=%v", sweeper.now, sweeper.grace)
	}
}

func TestRunnerStopsAtFirstFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	sweeper := &fakeSweeper{expireFn: func() (int, error) { return 0, boom }}
	runner, err := NewRunner(sweeper, Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewRunner returned error: %v", err)
	}

	if _, err := runner.RunAll(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(sweeper.calls) != 1 {
		t.Fatalf("expected to stop after the first sweep, got %v", sweeper.calls)
	}
}

func TestNewRunnerSchedules(t *testing.T) {
	t.Parallel()

	runner, err := NewRunner(&fakeSweeper{}, Options{
		ExpireSpec:  "5 0 * * *",
		RenewalSpec: "0 */6 * * *",
		Logger:      quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewRunner returned error: %v", err)
	}
	if got := runner.Scheduled(); got != 2 {
		t.Fatalf("expected 2 scheduled jobs, got %d", got)
	}

	runner.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := runner.Stop(ctx); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}

	if _, err := NewRunner(&fakeSweeper{}, Options{ExpireSpec: "not a spec"}); err == nil {
		t.Fatal("expected invalid spec to be rejected")
	}
	if _, err := NewRunner(nil, Options{}); err == nil {
		t.Fatal("expected missing sweeper to be rejected")
	}
}

func TestRunRejectsUnknownSweep(t *testing.T) {
	t.Parallel()
	runner, err := NewRunner(&fakeSweeper{}, Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewRunner returned error: %v", err)
	}
	if _, err := runner.Run(context.Background(), Sweep("nope")); err == nil {
		t.Fatal("expected error for unknown sweep")
	}
}

func TestScheduledPanicsAreLogged(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	job := cron.NewChain(jobWrappers(newCronLogger(logger))...).Then(cron.FuncJob(func() {
		panic("sweep exploded")
	}))

	job.Run()

	out := buf.String()
	if !strings.Contains(out, `"level":"ERROR"`) {
		t.Fatalf("expected an error record, got %q", out)
	}
	if !strings.Contains(out, "sweep exploded") {
		t.Fatalf("expected the panic value in the log, got %q", out)
	}
}
