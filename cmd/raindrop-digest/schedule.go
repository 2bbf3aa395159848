package main

import (
	"fmt"
	"io"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newScheduleCmd(flags *globalFlags, stdout io.Writer) *cobra.Command {
	var runOnStart bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Stay running and start a batch run on the configured cron schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			a, err := newApp(cfg, logger, stdout)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			runOnce := func() {
				if _, err := a.runner.Run(ctx); err != nil {
					logger.Error("Scheduled run failed", zap.Error(err))
				}
			}

			// Run immediately on startup if requested
			if runOnStart {
				logger.Info("Running initial digest")
				runOnce()
			}

			clog := cronLogger{logger.Named("cron").Sugar()}
			c := cron.New(
				cron.WithLocation(cfg.Location),
				cron.WithLogger(clog),
				cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
			)
			if _, err := c.AddFunc(cfg.Schedule, runOnce); err != nil {
				return fmt.Errorf("invalid cron schedule %q: %w", cfg.Schedule, err)
			}
			c.Start()
			logger.Info("Scheduled digest",
				zap.String("schedule", cfg.Schedule),
				zap.String("timezone", cfg.Location.String()))

			<-ctx.Done()
			logger.Info("Shutting down")
			// Wait for a running batch to return.
			<-c.Stop().Done()
			logger.Info("Shutdown complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "perform one batch run before waiting for the schedule")
	return cmd
}

var _ cron.Logger = cronLogger{}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
