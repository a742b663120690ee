// Package jobs runs the reservation maintenance sweeps on cron schedules.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/workstation-scheduler/internal/calendar"
)

// Sweeper performs the maintenance sweeps. *application.ReservationService
// satisfies it.
type Sweeper interface {
	ExpireLapsed(ctx context.Context, today calendar.Date) (int, error)
	RemindOverdueRenewals(ctx context.Context, now time.Time, grace time.Duration) (int, error)
	WarnExpiring(ctx context.Context, today calendar.Date) (int, error)
}

// Sweep names one maintenance job.
type Sweep string

const (
	SweepExpire   Sweep = "expire"
	SweepRenewals Sweep = "heartbeat"
	SweepExpiring Sweep = "expiring"
)

// Sweeps lists every job in the order RunAll executes them.
var Sweeps = []Sweep{SweepExpire, SweepRenewals, SweepExpiring}

// Options configures the schedules. Empty specs disable the job.
type Options struct {
	ExpireSpec   string
	RenewalSpec  string
	ExpiringSpec string
	// RenewalGrace is how long a reservation in use may go without renewal.
	RenewalGrace time.Duration
	// Location is the zone cron specs are evaluated in and dates are taken from.
	Location *time.Location
	// Timeout bounds a single job run; zero means five minutes.
	Timeout time.Duration
	Now     func() time.Time
	Logger  *slog.Logger
}

// Runner schedules sweeps with robfig/cron. Runs of one job never overlap.
type Runner struct {
	cron    *cron.Cron
	sweeper Sweeper
	opts    Options
	logger  *slog.Logger
}

// NewRunner registers every configured schedule without starting them.
func NewRunner(sweeper Sweeper, opts Options) (*Runner, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("jobs: sweeper is required")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.RenewalGrace <= 0 {
		opts.RenewalGrace = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	logger := opts.Logger.With("component", "jobs")
	cronLogger := newCronLogger(logger)
	r := &Runner{
		cron: cron.New(
			cron.WithLocation(opts.Location),
			cron.WithLogger(cronLogger),
			cron.WithChain(jobWrappers(cronLogger)...),
		),
		sweeper: sweeper,
		opts:    opts,
		logger:  logger,
	}

	specs := map[Sweep]string{
		SweepExpire:   opts.ExpireSpec,
		SweepRenewals: opts.RenewalSpec,
		SweepExpiring: opts.ExpiringSpec,
	}
	for _, sweep := range Sweeps {
		spec := specs[sweep]
		if spec == "" {
			continue
		}
		if _, err := r.cron.AddFunc(spec, func() { r.runScheduled(sweep) }); err != nil {
			return nil, fmt.Errorf("jobs: schedule %s %q: %w", sweep, spec, err)
		}
	}
	return r, nil
}

// newCronLogger reports cron errors, including recovered panics, at error level.
func newCronLogger(logger *slog.Logger) cron.Logger {
	return cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))
}

func jobWrappers(logger cron.Logger) []cron.JobWrapper {
	return []cron.JobWrapper{cron.SkipIfStillRunning(logger), cron.Recover(logger)}
}

// Scheduled reports how many jobs are registered.
func (r *Runner) Scheduled() int {
	return len(r.cron.Entries())
}

// Start begins running jobs in the background.
func (r *Runner) Start() {
	r.cron.Start()
	r.logger.Info("maintenance jobs started", "jobs", r.Scheduled())
}

// Stop prevents further runs and waits for running jobs until ctx is done.
func (r *Runner) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) runScheduled(sweep Sweep) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
	defer cancel()
	_, _ = r.Run(ctx, sweep)
}

// Run executes one sweep immediately and returns how many reservations it touched.
func (r *Runner) Run(ctx context.Context, sweep Sweep) (int, error) {
	now := r.opts.Now()
	today := calendar.Today(now, r.opts.Location)
	started := time.Now()

	var (
		count int
		err   error
	)
	switch sweep {
	case SweepExpire:
		count, err = r.sweeper.ExpireLapsed(ctx, today)
	case SweepRenewals:
		count, err = r.sweeper.RemindOverdueRenewals(ctx, now, r.opts.RenewalGrace)
	case SweepExpiring:
		count, err = r.sweeper.WarnExpiring(ctx, today)
	default:
		return 0, fmt.Errorf("jobs: unknown sweep %q", sweep)
	}

	logger := r.logger.With("sweep", string(sweep), "count", count, "duration", time.Since(started))
	if err != nil {
		logger.ErrorContext(ctx, "maintenance sweep failed", "error", err)
		return count, err
	}
	logger.InfoContext(ctx, "maintenance sweep completed")
	return count, nil
}

// RunAll executes every sweep once in order, stopping at the first failure.
func (r *Runner) RunAll(ctx context.Context) (map[Sweep]int, error) {
	counts := make(map[Sweep]int, len(Sweeps))
	for _, sweep := range Sweeps {
		n, err := r.Run(ctx, sweep)
		counts[sweep] = n
		if err != nil {
			return counts, err
		}
	}
	return counts, nil
}
