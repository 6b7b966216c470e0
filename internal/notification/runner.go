package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Default runner schedules.
const (
	DefaultSweepInterval = 5 * time.Minute
	DefaultPurgeSpec     = "@daily"
)

// Runner drives a Dispatcher from a cron instance owned by the process
// lifecycle. Sweeps are serialized: a tick that fires while the previous
// sweep is still running is skipped.
type Runner struct {
	cron       *cron.Cron
	dispatcher *Dispatcher
	logger     *slog.Logger
	runCtx     context.Context
	runCancel  context.CancelFunc
}

// NewRunner registers the sweep every sweepInterval and the purge on
// purgeSpec, a standard cron expression or descriptor.
func NewRunner(dispatcher *Dispatcher, sweepInterval time.Duration, purgeSpec string, logger *slog.Logger) (*Runner, error) {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	if purgeSpec == "" {
		purgeSpec = DefaultPurgeSpec
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "reminder_runner"))

	cronLogger := cronLogAdapter{logger: logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	r := &Runner{cron: c, dispatcher: dispatcher, logger: logger}
	r.runCtx, r.runCancel = context.WithCancel(context.Background())

	if _, err := c.AddFunc(fmt.Sprintf("@every %s", sweepInterval), r.sweep); err != nil {
		return nil, fmt.Errorf("schedule reminder sweep: %w", err)
	}
	if _, err := c.AddFunc(purgeSpec, r.purge); err != nil {
		return nil, fmt.Errorf("schedule reminder purge %q: %w", purgeSpec, err)
	}
	return r, nil
}

func (r *Runner) sweep() {
	_, _ = r.dispatcher.Sweep(r.runCtx)
}

func (r *Runner) purge() {
	_, _ = r.dispatcher.Purge(r.runCtx)
}

// Start begins scheduling in the background.
func (r *Runner) Start() {
	r.cron.Start()
	r.logger.Info("reminder runner started", slog.Int("entries", len(r.cron.Entries())))
}

// Stop halts scheduling, cancels the sweep in flight and waits for it to
// return or for ctx to end.
func (r *Runner) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	r.runCancel()
	select {
	case <-done.Done():
		r.logger.Info("reminder runner stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop reminder runner: %w", ctx.Err())
	}
}

type cronLogAdapter struct {
	logger *slog.Logger
}

func (a cronLogAdapter) Info(msg string, keysAndValues ...any) {
	a.logger.Debug(msg, keysAndValues...)
}

func (a cronLogAdapter) Error(err error, msg string, keysAndValues ...any) {
	a.logger.Error(msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}
