package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Runner is the unit of work a Scheduler triggers.
type Runner interface {
	Run(ctx context.Context) (Result, error)
}

// Scheduler re-runs a report on a cron schedule. A tick that arrives while
// the previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger *slog.Logger
}

// NewScheduler parses schedule (standard five-field cron or a descriptor such as
// "@every 6h") and returns a stopped Scheduler.
func NewScheduler(ctx context.Context, schedule string, r Runner, logger *slog.Logger) (*Scheduler, error) {
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s := &Scheduler{cron: c, runner: r, logger: logger}

	if _, err := c.AddFunc(schedule, func() { s.tick(ctx) }); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins triggering runs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("refresh scheduled", "next", e.Next)
	}
}

// Stop halts the schedule and waits for an in-flight run to finish or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduled run still in progress at shutdown")
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Info("scheduled refresh starting")
	if _, err := s.runner.Run(ctx); err != nil {
		// Run already logged the failure; the schedule keeps going.
		s.logger.Debug("scheduled refresh failed", "error", err)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
