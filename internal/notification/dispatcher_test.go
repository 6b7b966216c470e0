package notification

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gusfragger/webot/internal/logging"
)

var now = time.Date(2024, time.June, 1, 11, 0, 0, 0, time.UTC)

type storedJob struct {
	job       Job
	status    Status
	lastError string
	claimedAt time.Time
}

type memoryStore struct {
	mu       sync.Mutex
	jobs     map[string]*storedJob
	claimErr error
	// beforeComplete runs before each completion, simulating a concurrent writer.
	beforeComplete func(id string)
}

func newMemoryStore(jobs ...Job) *memoryStore {
	s := &memoryStore{jobs: make(map[string]*storedJob)}
	for _, job := range jobs {
		s.jobs[job.ID] = &storedJob{job: job, status: StatusPending}
	}
	return s
}

func (s *memoryStore) ClaimDue(_ context.Context, at time.Time, limit int, lease time.Duration) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return nil, s.claimErr
	}

	var due []*storedJob
	for _, stored := range s.jobs {
		if stored.status != StatusPending || stored.job.FireAt.After(at) {
			continue
		}
		if !stored.claimedAt.IsZero() && stored.claimedAt.After(at.Add(-lease)) {
			continue
		}
		due = append(due, stored)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].job.FireAt.Before(due[j].job.FireAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	jobs := make([]Job, len(due))
	for i, stored := range due {
		stored.claimedAt = at
		jobs[i] = stored.job
	}
	return jobs, nil
}

func (s *memoryStore) Complete(_ context.Context, id string, status Status, lastError string, _ time.Time) (bool, error) {
	if s.beforeComplete != nil {
		s.beforeComplete(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.jobs[id]
	if !ok || stored.status != StatusPending {
		return false, nil
	}
	stored.status = status
	stored.lastError = lastError
	return true, nil
}

func (s *memoryStore) PurgeTerminalBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, stored := range s.jobs {
		if stored.status.Terminal() && stored.job.FireAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) status(id string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id].status
}

func (s *memoryStore) cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored := s.jobs[id]; stored.status == StatusPending {
		stored.status = StatusCancelled
	}
}

type composerFunc func(ctx context.Context, job Job) (string, error)

func (f composerFunc) Compose(ctx context.Context, job Job) (string, error) { return f(ctx, job) }

func plainComposer() Composer {
	return composerFunc(func(_ context.Context, job Job) (string, error) {
		return "reminder for " + job.MeetingID, nil
	})
}

type recordingChannel struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]error
	block   bool
}

func (c *recordingChannel) Send(ctx context.Context, userID, content string) error {
	if c.block {
		<-ctx.Done()
		return ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failFor[userID]; err != nil {
		return err
	}
	c.sent = append(c.sent, userID+":"+content)
	return nil
}

func reminder(id, user string, fireAt time.Time) Job {
	return Job{ID: id, MeetingID: "m-" + id, UserID: user, FireAt: fireAt, Offset: Offset{Amount: 1, Unit: UnitHour}}
}

func newTestDispatcher(t *testing.T, store Store, composer Composer, channel Channel, config DispatcherConfig) *Dispatcher {
	t.Helper()
	if config.RatePerSec == 0 {
		config.RatePerSec = -1
	}
	d, err := NewDispatcher(store, composer, channel, config, nil, func() time.Time { return now }, logging.Discard())
	require.NoError(t, err)
	return d
}

func TestSweepDeliversDueJobsInFireOrder(t *testing.T) {
	t.Parallel()

	store := newMemoryStore(
		reminder("late", "U2", now.Add(-time.Minute)),
		reminder("early", "U1", now.Add(-time.Hour)),
		reminder("future", "U3", now.Add(time.Minute)),
	)
	channel := &recordingChannel{}
	d := newTestDispatcher(t, store, plainComposer(), channel, DispatcherConfig{})

	report, err := d.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Claimed: 2, Sent: 2}, report)
	assert.Equal(t, []string{"U1:reminder for m-early", "U2:reminder for m-late"}, channel.sent)
	assert.Equal(t, StatusSent, store.status("early"))
	assert.Equal(t, StatusPending, store.status("future"))

	// Nothing is delivered twice.
	report, err = d.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, report)
	assert.Len(t, channel.sent, 2)
}

func TestSweepIsolatesFailuresAndNeverRetries(t *testing.T) {
	t.Parallel()

	store := newMemoryStore(
		reminder("a", "U1", now.Add(-3*time.Minute)),
		reminder("b", "U2", now.Add(-2*time.Minute)),
		reminder("c", "U3", now.Add(-time.Minute)),
	)
	channel := &recordingChannel{failFor: map[string]error{"U2": errors.New("channel_not_found")}}
	d := newTestDispatcher(t, store, plainComposer(), channel, DispatcherConfig{})

	report, err := d.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Claimed: 3, Sent: 2, Failed: 1}, report)
	assert.Equal(t, StatusFailed, store.status("b"))
	assert.Contains(t, store.jobs["b"].lastError, "channel_not_found")
	assert.Contains(t, store.jobs["b"].lastError, ErrDeliveryFailed.Error())

	channel.failFor = nil
	report, err = d.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Claimed)
	assert.Equal(t, StatusFailed, store.status("b"))
}

func TestSweepNeverSendsCancelledJobs(t *testing.T) {
	t.Parallel()

	store := newMemoryStore(
		reminder("called-off", "U1", now.Add(-time.Minute)),
		reminder("raced", "U2", now.Add(-time.Minute/2)),
	)
	composer := composerFunc(func(_ context.Context, job Job) (string, error) {
		if job.ID == "called-off" {
			return "", ErrMeetingCancelled
		}
		return "hi", nil
	})
	// The second job is cancelled by another writer after sending but before
	// completion; it must not be recorded as sent.
	store.beforeComplete = func(id string) {
		if id == "raced" {
			store.cancel(id)
		}
	}
	d := newTestDispatcher(t, store, composer, &recordingChannel{}, DispatcherConfig{})

	report, err := d.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Cancelled)
	assert.Equal(t, 1, report.Superseded)
	assert.Equal(t, StatusCancelled, store.status("called-off"))
	assert.Equal(t, StatusCancelled, store.status("raced"))
}

func TestSweepHonoursBatchSizeAndSendTimeout(t *testing.T) {
	t.Parallel()

	store := newMemoryStore(
		reminder("a", "U1", now.Add(-3*time.Minute)),
		reminder("b", "U2", now.Add(-2*time.Minute)),
		reminder("c", "U3", now.Add(-time.Minute)),
	)
	d := newTestDispatcher(t, store, plainComposer(), &recordingChannel{block: true}, DispatcherConfig{
		BatchSize:   2,
		SendTimeout: 20 * time.Millisecond,
	})

	report, err := d.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Claimed: 2, Failed: 2}, report)
	assert.Contains(t, store.jobs["a"].lastError, context.DeadlineExceeded.Error())
	assert.Equal(t, StatusPending, store.status("c"))
}

func TestSweepReportsClaimFailure(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	store.claimErr = errors.New("database is locked")
	d := newTestDispatcher(t, store, plainComposer(), &recordingChannel{}, DispatcherConfig{})

	_, err := d.Sweep(context.Background())
	require.ErrorContains(t, err, "database is locked")
}

func TestSweepStopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	store := newMemoryStore(reminder("a", "U1", now.Add(-time.Minute)), reminder("b", "U2", now.Add(-time.Second)))
	ctx, cancel := context.WithCancel(context.Background())
	composer := composerFunc(func(context.Context, Job) (string, error) {
		cancel()
		return "hi", nil
	})
	d := newTestDispatcher(t, store, composer, &recordingChannel{}, DispatcherConfig{RatePerSec: 1000})

	report, err := d.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Deferred)
	assert.Equal(t, StatusPending, store.status("a"))
	assert.Equal(t, StatusPending, store.status("b"))
}

func TestPurgeDeletesOnlyOldTerminalJobs(t *testing.T) {
	t.Parallel()

	old := reminder("old", "U1", now.Add(-31*24*time.Hour))
	oldPending := reminder("old-pending", "U1", now.Add(-40*24*time.Hour))
	recent := reminder("recent", "U1", now.Add(-24*time.Hour))
	store := newMemoryStore(old, oldPending, recent)
	store.jobs["old"].status = StatusSent
	store.jobs["recent"].status = StatusFailed

	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)
	d, err := NewDispatcher(store, plainComposer(), &recordingChannel{}, DispatcherConfig{}, metrics, func() time.Time { return now }, logging.Discard())
	require.NoError(t, err)

	n, err := d.Purge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NotContains(t, store.jobs, "old")
	assert.Contains(t, store.jobs, "old-pending")
	assert.Contains(t, store.jobs, "recent")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.purged))
}

func TestSweepRecordsMetrics(t *testing.T) {
	t.Parallel()

	store := newMemoryStore(reminder("a", "U1", now.Add(-time.Minute)), reminder("b", "U2", now.Add(-time.Second)))
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)
	channel := &recordingChannel{failFor: map[string]error{"U2": errors.New("boom")}}
	d, err := NewDispatcher(store, plainComposer(), channel, DispatcherConfig{RatePerSec: -1}, metrics, func() time.Time { return now }, logging.Discard())
	require.NoError(t, err)

	_, err = d.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.claimed))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.outcomes.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.outcomes.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.sweeps.WithLabelValues("ok")))

	_, err = NewMetrics(reg)
	require.Error(t, err, "registering twice must fail")
}

func TestNewDispatcherRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := NewDispatcher(nil, plainComposer(), &recordingChannel{}, DispatcherConfig{}, nil, nil, nil)
	require.Error(t, err)
	_, err = NewDispatcher(newMemoryStore(), nil, &recordingChannel{}, DispatcherConfig{}, nil, nil, nil)
	require.Error(t, err)
	_, err = NewDispatcher(newMemoryStore(), plainComposer(), nil, DispatcherConfig{}, nil, nil, nil)
	require.Error(t, err)
}
