package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/workstation-scheduler/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// cli holds state shared by every subcommand once the root pre-run loaded it.
type cli struct {
	envFiles []string
	logLevel string
	cfg      config.Config
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	state := &cli{}

	root := &cobra.Command{
		Use:   "scheduler",
		Short: "Workstation reservation scheduler",
		Long: `scheduler books shared workstations by the day.

It serves the reservation API, applies database migrations, runs the
maintenance sweeps and offers a few operator shortcuts. Configuration comes
from SCHEDULER_* environment variables and optional dotenv files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(state.envFiles...)
			if err != nil {
				return err
			}
			if state.logLevel != "" {
				cfg.LogLevel = state.logLevel
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			state.cfg = cfg
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringSliceVar(&state.envFiles, "env-file", nil, "dotenv files to read before the environment (default .env)")
	root.PersistentFlags().StringVar(&state.logLevel, "log-level", "", "override SCHEDULER_LOG_LEVEL")

	root.AddCommand(
		newServeCommand(state),
		newMigrateCommand(state),
		newSweepCommand(state),
		newUserCommand(state),
		newAvailabilityCommand(state),
	)
	return root
}
