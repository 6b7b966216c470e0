// Package notification parses reminder offsets and delivers due reminder
// jobs through an external channel.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Dispatcher defaults.
const (
	DefaultBatchSize   = 50
	DefaultSendTimeout = 10 * time.Second
	DefaultClaimLease  = 10 * time.Minute
	DefaultRetention   = 30 * 24 * time.Hour
	DefaultRatePerSec  = 5
)

// DispatcherConfig tunes a Dispatcher. Zero fields take the defaults.
type DispatcherConfig struct {
	BatchSize   int
	SendTimeout time.Duration
	ClaimLease  time.Duration
	Retention   time.Duration
	// RatePerSec caps outbound sends; negative disables pacing.
	RatePerSec float64
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.ClaimLease <= 0 {
		c.ClaimLease = DefaultClaimLease
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.RatePerSec == 0 {
		c.RatePerSec = DefaultRatePerSec
	}
	return c
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	Claimed    int
	Sent       int
	Failed     int
	Cancelled  int
	Superseded int
	Deferred   int
}

// Dispatcher delivers due reminder jobs. Each job leaves pending at most once:
// sent on success, failed on a channel error (never retried) and cancelled
// when its meeting was called off.
type Dispatcher struct {
	store    Store
	composer Composer
	channel  Channel
	limiter  *rate.Limiter
	metrics  *Metrics
	config   DispatcherConfig
	now      func() time.Time
	logger   *slog.Logger
}

// NewDispatcher wires a dispatcher. metrics may be nil; now defaults to time.Now.
func NewDispatcher(store Store, composer Composer, channel Channel, config DispatcherConfig, metrics *Metrics, now func() time.Time, logger *slog.Logger) (*Dispatcher, error) {
	if store == nil {
		return nil, errors.New("notification: store is required")
	}
	if composer == nil {
		return nil, errors.New("notification: composer is required")
	}
	if channel == nil {
		return nil, errors.New("notification: channel is required")
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	config = config.withDefaults()
	limit := rate.Inf
	burst := 1
	if config.RatePerSec > 0 {
		limit = rate.Limit(config.RatePerSec)
		burst = max(1, int(config.RatePerSec))
	}

	return &Dispatcher{
		store:    store,
		composer: composer,
		channel:  channel,
		limiter:  rate.NewLimiter(limit, burst),
		metrics:  metrics,
		config:   config,
		now:      now,
		logger:   logger.With(slog.String("component", "reminder_dispatcher")),
	}, nil
}

// Sweep claims the due jobs and attempts each once. A failing job never
// aborts the batch; only a failed claim is returned as an error. Jobs left
// unattempted because ctx ended stay pending and are claimed again once
// their lease expires.
func (d *Dispatcher) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	jobs, err := d.store.ClaimDue(ctx, d.now().UTC(), d.config.BatchSize, d.config.ClaimLease)
	d.metrics.observeSweep(err, len(jobs))
	if err != nil {
		d.logger.ErrorContext(ctx, "claim due reminders failed", slog.Any("error", err))
		return report, fmt.Errorf("claim due reminders: %w", err)
	}
	report.Claimed = len(jobs)

	for i, job := range jobs {
		if ctx.Err() != nil {
			report.Deferred += len(jobs) - i
			break
		}
		switch d.dispatch(ctx, job) {
		case StatusSent:
			report.Sent++
		case StatusFailed:
			report.Failed++
		case StatusCancelled:
			report.Cancelled++
		case StatusPending:
			report.Deferred++
		default:
			report.Superseded++
		}
	}

	if report.Claimed > 0 {
		d.logger.InfoContext(ctx, "reminder sweep finished",
			slog.Int("claimed", report.Claimed),
			slog.Int("sent", report.Sent),
			slog.Int("failed", report.Failed),
			slog.Int("cancelled", report.Cancelled),
			slog.Int("superseded", report.Superseded),
			slog.Int("deferred", report.Deferred),
		)
	}
	return report, nil
}

// dispatch returns the status the job ended in, StatusPending when it was left
// for a later sweep, or "" when another writer moved it first.
func (d *Dispatcher) dispatch(ctx context.Context, job Job) Status {
	logger := d.logger.With(
		slog.String("job_id", job.ID),
		slog.String("meeting_id", job.MeetingID),
		slog.String("user_id", job.UserID),
	)

	content, err := d.composer.Compose(ctx, job)
	if errors.Is(err, ErrMeetingCancelled) {
		return d.complete(ctx, logger, job, StatusCancelled, "")
	}
	if err != nil {
		logger.WarnContext(ctx, "compose reminder failed", slog.Any("error", err))
		return d.complete(ctx, logger, job, StatusFailed, err.Error())
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return StatusPending
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.config.SendTimeout)
	started := time.Now()
	err = d.channel.Send(sendCtx, job.UserID, content)
	cancel()
	d.metrics.observeSend(time.Since(started))

	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
		logger.WarnContext(ctx, "reminder delivery failed", slog.Any("error", err))
		return d.complete(ctx, logger, job, StatusFailed, err.Error())
	}
	return d.complete(ctx, logger, job, StatusSent, "")
}

func (d *Dispatcher) complete(ctx context.Context, logger *slog.Logger, job Job, status Status, lastError string) Status {
	ok, err := d.store.Complete(ctx, job.ID, status, lastError, d.now().UTC())
	if err != nil {
		logger.ErrorContext(ctx, "record reminder status failed", slog.String("status", string(status)), slog.Any("error", err))
		return StatusPending
	}
	if !ok {
		logger.InfoContext(ctx, "reminder left pending before completion", slog.String("status", string(status)))
		return ""
	}
	d.metrics.observeOutcome(status)
	return status
}

// Purge deletes terminal jobs that fired more than the retention window ago.
func (d *Dispatcher) Purge(ctx context.Context) (int64, error) {
	cutoff := d.now().UTC().Add(-d.config.Retention)
	n, err := d.store.PurgeTerminalBefore(ctx, cutoff)
	if err != nil {
		d.logger.ErrorContext(ctx, "purge reminders failed", slog.Any("error", err))
		return 0, fmt.Errorf("purge reminders: %w", err)
	}
	d.metrics.observePurge(n)
	if n > 0 {
		d.logger.InfoContext(ctx, "purged reminders", slog.Int64("deleted", n), slog.Time("cutoff", cutoff))
	}
	return n, nil
}
