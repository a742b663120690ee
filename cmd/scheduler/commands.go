package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/workstation-scheduler/internal/application"
	"github.com/example/workstation-scheduler/internal/calendar"
	httptransport "github.com/example/workstation-scheduler/internal/http"
	"github.com/example/workstation-scheduler/internal/jobs"
	"github.com/example/workstation-scheduler/internal/scheduler"
)

// operator is the principal used by operator commands.
var operator = application.Principal{UserID: "operator", Role: scheduler.RoleAdmin}

func newServeCommand(state *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the reservation API and run the maintenance jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, state.cfg, cmd.ErrOrStderr(), runtimeOptions{shared: true})
			if err != nil {
				return err
			}
			defer func() {
				if cerr := rt.Close(); cerr != nil {
					rt.logger.Error("failed to close resources", "error", cerr)
				}
			}()

			runner, err := newJobRunner(rt, true)
			if err != nil {
				return err
			}
			runner.Start()

			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", state.cfg.HTTPPort),
				Handler:           newAPIHandler(rt),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
					rt.logger.Error("failed to shutdown server", "error", err)
				}
				if err := runner.Stop(shutdownCtx); err != nil {
					rt.logger.Error("maintenance jobs did not stop in time", "error", err)
				}
			}()

			rt.logger.Info("scheduler API listening", "addr", server.Addr, "storage", state.cfg.Storage, "timezone", rt.location.String())
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}
}

func newAPIHandler(rt *runtime) http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Reservations: httptransport.NewReservationHandler(rt.reservations, rt.logger),
		Users:        httptransport.NewUserHandler(rt.auth, rt.logger),
		Auth:         rt.auth,
		Logger:       rt.logger,
		Middleware:   []func(http.Handler) http.Handler{httptransport.RequestLogger(rt.logger)},
	})
}

// newJobRunner builds the sweep runner. Schedules are registered only when
// scheduled is true; manual runs need none.
func newJobRunner(rt *runtime, scheduled bool) (*jobs.Runner, error) {
	opts := jobs.Options{
		RenewalGrace: rt.cfg.HeartbeatGrace,
		Location:     rt.location,
		Logger:       rt.logger,
	}
	if scheduled {
		opts.ExpireSpec = rt.cfg.ExpirySweepCron
		opts.RenewalSpec = rt.cfg.HeartbeatCron
		opts.ExpiringSpec = rt.cfg.ExpiryWarningCron
	}
	return jobs.NewRunner(rt.reservations, opts)
}

func newMigrateCommand(state *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and show their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), state.cfg, cmd.ErrOrStderr(), runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			status, ok, err := rt.migrationStatus(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				printWarning(out, fmt.Sprintf("storage %q has no schema to migrate", state.cfg.Storage))
				return nil
			}
			printSuccess(out, fmt.Sprintf("schema at version %s", status.CurrentVersion))
			rows := make([][]string, 0, len(status.AppliedMigrations))
			for _, applied := range status.AppliedMigrations {
				rows = append(rows, []string{applied.Version, applied.AppliedAt.Format(time.RFC3339), applied.ExecutionTime.String()})
			}
			printTable(out, []string{"Version", "Applied", "Took"}, rows)
			return nil
		},
	}
}

func newSweepCommand(state *cli) *cobra.Command {
	valid := make([]string, 0, len(jobs.Sweeps))
	for _, sweep := range jobs.Sweeps {
		valid = append(valid, string(sweep))
	}

	return &cobra.Command{
		Use:       "sweep [expire|heartbeat|expiring]",
		Short:     "Run maintenance sweeps once",
		Long:      "Run one maintenance sweep, or all of them in order when none is named.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: valid,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), state.cfg, cmd.ErrOrStderr(), runtimeOptions{shared: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			runner, err := newJobRunner(rt, false)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				sweep := jobs.Sweep(args[0])
				touched, err := runner.Run(cmd.Context(), sweep)
				if err != nil {
					return err
				}
				printSuccess(out, fmt.Sprintf("%s: %d", sweep, touched))
				return nil
			}

			counts, err := runner.RunAll(cmd.Context())
			for _, sweep := range jobs.Sweeps {
				if touched, ok := counts[sweep]; ok {
					printSuccess(out, fmt.Sprintf("%s: %d", sweep, touched))
				}
			}
			return err
		},
	}
}

func newUserCommand(state *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	var params application.RegisterUserParams
	var role string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), state.cfg, cmd.ErrOrStderr(), runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			params.Role = scheduler.Role(role)
			user, err := rt.auth.RegisterUser(cmd.Context(), params)
			if err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), fmt.Sprintf("created %s user %s", user.Role, user.ID))
			if user.PINHash == "" {
				printWarning(cmd.OutOrStdout(), "no PIN set; the user must set one before signing in")
			}
			return nil
		},
	}
	add.Flags().StringVar(&params.ID, "id", "", "user identifier (generated when empty)")
	add.Flags().StringVar(&params.Name, "name", "", "display name")
	add.Flags().StringVar(&params.Email, "email", "", "email address")
	add.Flags().StringVar(&role, "role", string(scheduler.RoleUser), "user or admin")
	add.Flags().StringVar(&params.PIN, "pin", "", "numeric PIN of 4 to 12 digits")
	_ = add.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), state.cfg, cmd.ErrOrStderr(), runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			users, err := rt.auth.ListUsers(cmd.Context(), operator)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(users) == 0 {
				printWarning(out, "no users registered")
				return nil
			}
			rows := make([][]string, 0, len(users))
			for _, user := range users {
				pin := "no"
				if user.PINHash != "" {
					pin = "yes"
				}
				rows = append(rows, []string{user.ID, user.Name, string(user.Role), pin})
			}
			printTable(out, []string{"ID", "Name", "Role", "PIN"}, rows)
			return nil
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func newAvailabilityCommand(state *cli) *cobra.Command {
	var (
		resourceID string
		start      string
		days       int
	)

	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Show the day-by-day availability of a workstation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), state.cfg, cmd.ErrOrStderr(), runtimeOptions{shared: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			windowStart := rt.reservations.Today()
			if start != "" {
				windowStart, err = calendar.ParseDate(start)
				if err != nil {
					return fmt.Errorf("--start: %w", err)
				}
			}

			statuses, err := rt.reservations.QueryAvailability(cmd.Context(), application.AvailabilityParams{
				ResourceID:   resourceID,
				WindowStart:  windowStart,
				WindowLength: days,
			})
			if err != nil {
				return err
			}
			printAvailability(cmd.OutOrStdout(), resourceID, statuses)
			return nil
		},
	}
	cmd.Flags().StringVar(&resourceID, "resource", "", "workstation identifier")
	cmd.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&days, "days", 14, "number of days to show")
	_ = cmd.MarkFlagRequired("resource")
	return cmd
}
