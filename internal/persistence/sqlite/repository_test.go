package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gusfragger/webot/internal/logging"
	"github.com/gusfragger/webot/internal/persistence"
	"github.com/gusfragger/webot/internal/persistence/sqlite/migration"
)

var base = time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)

func hour(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

func newTestPool(t *testing.T) *ConnectionPool {
	t.Helper()
	cfg := migration.TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "webot.db"))
	pool, err := Open(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func busy(id, owner string, start, end time.Time) persistence.AvailabilityInterval {
	return persistence.AvailabilityInterval{
		ID:        id,
		OwnerID:   owner,
		Start:     start,
		End:       end,
		Kind:      persistence.IntervalKindBusy,
		CreatedAt: base,
	}
}

func TestProfileRepositoryUpsertKeepsCreatedAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewProfileRepository(newTestPool(t))

	_, err := repo.GetProfile(ctx, "U1")
	require.ErrorIs(t, err, persistence.ErrNotFound)

	profile := persistence.UserProfile{
		UserID:              "U1",
		Timezone:            "Europe/Helsinki",
		WorkingHoursStart:   8,
		WorkingHoursEnd:     16,
		NotificationOffsets: []string{"24h", "15m"},
		CreatedAt:           base,
		UpdatedAt:           base,
	}
	require.NoError(t, repo.UpsertProfile(ctx, profile))

	profile.Timezone = "Asia/Tokyo"
	profile.CreatedAt = hour(5)
	profile.UpdatedAt = hour(5)
	require.NoError(t, repo.UpsertProfile(ctx, profile))

	got, err := repo.GetProfile(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", got.Timezone)
	assert.Equal(t, []string{"24h", "15m"}, got.NotificationOffsets)
	assert.Equal(t, base, got.CreatedAt)
	assert.Equal(t, hour(5), got.UpdatedAt)

	profile.WorkingHoursStart = 18
	profile.WorkingHoursEnd = 9
	require.ErrorIs(t, repo.UpsertProfile(ctx, profile), persistence.ErrConstraintViolation)

	listed, err := repo.ListProfiles(ctx, []string{"U2", "U1"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "U1", listed[0].UserID)
}

func TestAvailabilityRepositoryRejectsOverlappingBusy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewAvailabilityRepository(newTestPool(t))

	ok, err := repo.InsertInterval(ctx, busy("a", "U1", hour(10), hour(11)))
	require.NoError(t, err)
	assert.True(t, ok)

	// Touching intervals do not overlap.
	ok, err = repo.InsertInterval(ctx, busy("b", "U1", hour(11), hour(12)))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.InsertInterval(ctx, busy("c", "U1", hour(10).Add(30*time.Minute), hour(11).Add(30*time.Minute)))
	require.NoError(t, err)
	assert.False(t, ok)

	// Another owner and available intervals are unaffected.
	ok, err = repo.InsertInterval(ctx, busy("d", "U2", hour(10), hour(11)))
	require.NoError(t, err)
	assert.True(t, ok)

	available := busy("e", "U1", hour(10), hour(12))
	available.Kind = persistence.IntervalKindAvailable
	ok, err = repo.InsertInterval(ctx, available)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.GetInterval(ctx, "c")
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestAvailabilityRepositoryConcurrentInsertsHaveOneWinner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewAvailabilityRepository(newTestPool(t))

	const writers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.InsertInterval(ctx, busy(string(rune('a'+i)), "U1", hour(10), hour(11)))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestAvailabilityRepositoryMoveAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewAvailabilityRepository(newTestPool(t))

	for _, interval := range []persistence.AvailabilityInterval{
		busy("a", "U1", hour(9), hour(10)),
		busy("b", "U1", hour(12), hour(13)),
		busy("c", "U2", hour(9), hour(17)),
		busy("d", "U1", hour(40), hour(41)),
	} {
		ok, err := repo.InsertInterval(ctx, interval)
		require.NoError(t, err)
		require.True(t, ok)
	}

	moved := busy("a", "U1", hour(12).Add(30*time.Minute), hour(14))
	ok, err := repo.MoveInterval(ctx, moved)
	require.NoError(t, err)
	assert.False(t, ok, "moving onto b must be refused")

	// Moving onto its own previous span is allowed.
	moved = busy("a", "U1", hour(9).Add(30*time.Minute), hour(11))
	ok, err = repo.MoveInterval(ctx, moved)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.MoveInterval(ctx, busy("a", "U2", hour(1), hour(2)))
	require.ErrorIs(t, err, persistence.ErrNotFound)

	got, err := repo.ListIntervals(ctx, persistence.IntervalFilter{
		OwnerIDs: []string{"U1", "U2"},
		Kind:     persistence.IntervalKindBusy,
		Start:    hour(0),
		End:      hour(24),
	})
	require.NoError(t, err)
	ids := make([]string, len(got))
	for i, interval := range got {
		ids[i] = interval.ID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, hour(9).Add(30*time.Minute), got[0].Start)

	got, err = repo.ListIntervals(ctx, persistence.IntervalFilter{OwnerIDs: []string{"U1"}, ExcludeID: "a"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.NoError(t, repo.DeleteInterval(ctx, "b"))
	require.ErrorIs(t, repo.DeleteInterval(ctx, "b"), persistence.ErrNotFound)
}

func newMeeting(id string, start time.Time, participants ...string) persistence.Meeting {
	return persistence.Meeting{
		ID:              id,
		ProposerID:      "U1",
		Title:           "Sync",
		Start:           start,
		DurationMinutes: 30,
		DisplayTimezone: "UTC",
		Status:          persistence.MeetingStatusProposed,
		Participants:    participants,
		CreatedAt:       base,
		UpdatedAt:       base,
	}
}

func TestMeetingRepositoryConditionalUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewMeetingRepository(newTestPool(t))

	require.NoError(t, repo.CreateMeeting(ctx, newMeeting("m1", hour(10), "U1", "U2")))
	require.ErrorIs(t, repo.CreateMeeting(ctx, newMeeting("m1", hour(10))), persistence.ErrDuplicate)

	got, err := repo.GetMeeting(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"U1", "U2"}, got.Participants)
	assert.Nil(t, got.SeriesID)

	got.Status = persistence.MeetingStatusConfirmed
	got.UpdatedAt = hour(1)
	require.NoError(t, repo.UpdateMeeting(ctx, got, persistence.MeetingStatusProposed))

	got.Status = persistence.MeetingStatusCancelled
	require.ErrorIs(t, repo.UpdateMeeting(ctx, got, persistence.MeetingStatusProposed), persistence.ErrStaleWrite)

	got.ID = "missing"
	require.ErrorIs(t, repo.UpdateMeeting(ctx, got, persistence.MeetingStatusProposed), persistence.ErrNotFound)

	_, err = repo.GetMeeting(ctx, "missing")
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestMeetingRepositorySeries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewMeetingRepository(newTestPool(t))

	until := hour(24 * 14)
	series := persistence.RecurrenceSeries{
		ID:              "s1",
		ProposerID:      "U1",
		Pattern:         "weekly",
		Interval:        7,
		FirstOccurrence: hour(10),
		Until:           &until,
		CreatedAt:       base,
	}
	occurrences := []persistence.Meeting{
		newMeeting("m2", hour(10+24*7), "U1"),
		newMeeting("m1", hour(10), "U1", "U3"),
	}
	require.NoError(t, repo.CreateSeries(ctx, series, occurrences))

	stored, err := repo.GetSeries(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, series, stored)

	meetings, err := repo.ListSeriesMeetings(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, meetings, 2)
	assert.Equal(t, "m1", meetings[0].ID)
	assert.Equal(t, []string{"U1", "U3"}, meetings[0].Participants)
	require.NotNil(t, meetings[1].SeriesID)
	assert.Equal(t, "s1", *meetings[1].SeriesID)

	// A failing occurrence rolls the whole series back.
	series.ID = "s2"
	err = repo.CreateSeries(ctx, series, []persistence.Meeting{newMeeting("m3", hour(10)), newMeeting("m1", hour(11))})
	require.ErrorIs(t, err, persistence.ErrDuplicate)
	_, err = repo.GetSeries(ctx, "s2")
	require.ErrorIs(t, err, persistence.ErrNotFound)
	_, err = repo.GetMeeting(ctx, "m3")
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func job(id, meetingID string, fireAt time.Time) persistence.NotificationJob {
	return persistence.NotificationJob{
		ID:          id,
		MeetingID:   meetingID,
		UserID:      "U1",
		FireAt:      fireAt,
		OffsetToken: "1h",
		Status:      persistence.JobStatusPending,
		CreatedAt:   base,
		UpdatedAt:   base,
	}
}

func TestNotificationJobRepositoryClaimAndComplete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := newTestPool(t)
	meetings := NewMeetingRepository(pool)
	repo := NewNotificationJobRepository(pool)

	require.NoError(t, meetings.CreateMeeting(ctx, newMeeting("m1", hour(12), "U1")))
	require.NoError(t, repo.CreateJobs(ctx, []persistence.NotificationJob{
		job("j3", "m1", hour(3)),
		job("j1", "m1", hour(1)),
		job("j2", "m1", hour(2)),
		job("j9", "m1", hour(9)),
	}))

	claimed, err := repo.ClaimDue(ctx, hour(5), 2, 10*time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, "j1", claimed[0].ID)
	assert.Equal(t, "j2", claimed[1].ID)
	require.NotNil(t, claimed[0].ClaimedAt)

	// Claimed jobs are invisible to an overlapping sweep until the lease ends.
	again, err := repo.ClaimDue(ctx, hour(5), 10, 10*time.Minute)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "j3", again[0].ID)

	expired, err := repo.ClaimDue(ctx, hour(5).Add(11*time.Minute), 10, 10*time.Minute)
	require.NoError(t, err)
	assert.Len(t, expired, 3)

	ok, err := repo.CompleteJob(ctx, "j1", persistence.JobStatusSent, nil, hour(5))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.CompleteJob(ctx, "j1", persistence.JobStatusFailed, nil, hour(5))
	require.NoError(t, err)
	assert.False(t, ok)

	cancelled, err := repo.CancelPendingForMeeting(ctx, "m1", hour(6))
	require.NoError(t, err)
	assert.Equal(t, 3, cancelled)

	// A cancelled job can never become sent.
	ok, err = repo.CompleteJob(ctx, "j2", persistence.JobStatusSent, nil, hour(6))
	require.NoError(t, err)
	assert.False(t, ok)

	jobs, err := repo.ListJobsForMeeting(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, jobs, 4)
	assert.Equal(t, persistence.JobStatusSent, jobs[0].Status)
	for _, j := range jobs[1:] {
		assert.Equal(t, persistence.JobStatusCancelled, j.Status)
	}
}

func TestNotificationJobRepositoryPurgeKeepsPending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := newTestPool(t)
	require.NoError(t, NewMeetingRepository(pool).CreateMeeting(ctx, newMeeting("m1", hour(12), "U1")))
	repo := NewNotificationJobRepository(pool)

	failed := job("old-failed", "m1", hour(1))
	failed.Status = persistence.JobStatusFailed
	reason := "channel down"
	failed.LastError = &reason
	recent := job("recent-sent", "m1", hour(30))
	recent.Status = persistence.JobStatusSent
	require.NoError(t, repo.CreateJobs(ctx, []persistence.NotificationJob{
		failed,
		recent,
		job("old-pending", "m1", hour(1)),
	}))

	purged, err := repo.PurgeTerminalBefore(ctx, hour(24))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	jobs, err := repo.ListJobsForMeeting(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "old-pending", jobs[0].ID)
	assert.Equal(t, "recent-sent", jobs[1].ID)
}

func TestNotificationJobRepositoryRequiresMeeting(t *testing.T) {
	t.Parallel()

	repo := NewNotificationJobRepository(newTestPool(t))
	err := repo.CreateJobs(context.Background(), []persistence.NotificationJob{job("j1", "nope", hour(1))})
	require.ErrorIs(t, err, persistence.ErrForeignKeyViolation)
}

func TestNotificationJobRepositoryClaimOrdersTiesByID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := newTestPool(t)
	require.NoError(t, NewMeetingRepository(pool).CreateMeeting(ctx, newMeeting("m1", hour(12), "U1")))
	repo := NewNotificationJobRepository(pool)

	require.NoError(t, repo.CreateJobs(ctx, []persistence.NotificationJob{
		job("j-c", "m1", hour(2)),
		job("j-b", "m1", hour(1)),
		job("j-a", "m1", hour(2)),
	}))

	claimed, err := repo.ClaimDue(ctx, hour(5), 10, 10*time.Minute)
	require.NoError(t, err)
	ids := make([]string, 0, len(claimed))
	for _, j := range claimed {
		ids = append(ids, j.ID)
	}
	assert.Equal(t, []string{"j-b", "j-a", "j-c"}, ids)
}
