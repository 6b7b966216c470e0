package persistence

import (
	"context"
	"time"
)

// ProfileRepository stores user profiles.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (UserProfile, error)
	ListProfiles(ctx context.Context, userIDs []string) ([]UserProfile, error)
	UpsertProfile(ctx context.Context, profile UserProfile) error
}

// IntervalFilter narrows interval queries. Zero times leave that side of the
// window open; an empty Kind matches every kind.
type IntervalFilter struct {
	OwnerIDs  []string
	Kind      string
	Start     time.Time
	End       time.Time
	ExcludeID string
}

// AvailabilityRepository stores availability intervals.
type AvailabilityRepository interface {
	// InsertInterval stores interval. Busy intervals are only inserted when no
	// other busy interval of the same owner overlaps; the boolean reports
	// whether the row was written.
	InsertInterval(ctx context.Context, interval AvailabilityInterval) (bool, error)
	// MoveInterval rewrites the bounds of an interval under the same
	// no-overlap condition as InsertInterval.
	MoveInterval(ctx context.Context, interval AvailabilityInterval) (bool, error)
	GetInterval(ctx context.Context, id string) (AvailabilityInterval, error)
	DeleteInterval(ctx context.Context, id string) error
	ListIntervals(ctx context.Context, filter IntervalFilter) ([]AvailabilityInterval, error)
}

// MeetingRepository stores meetings and recurrence series.
type MeetingRepository interface {
	CreateMeeting(ctx context.Context, meeting Meeting) error
	// CreateSeries stores the series and all of its occurrences atomically.
	CreateSeries(ctx context.Context, series RecurrenceSeries, occurrences []Meeting) error
	GetMeeting(ctx context.Context, id string) (Meeting, error)
	// UpdateMeeting writes meeting only if the stored status still equals
	// expectedStatus, returning ErrStaleWrite otherwise.
	UpdateMeeting(ctx context.Context, meeting Meeting, expectedStatus string) error
	GetSeries(ctx context.Context, id string) (RecurrenceSeries, error)
	ListSeriesMeetings(ctx context.Context, seriesID string) ([]Meeting, error)
}

// NotificationJobRepository stores reminder jobs.
type NotificationJobRepository interface {
	CreateJobs(ctx context.Context, jobs []NotificationJob) error
	ListJobsForMeeting(ctx context.Context, meetingID string) ([]NotificationJob, error)
	// CancelPendingForMeeting marks the meeting's pending jobs cancelled and
	// returns how many changed.
	CancelPendingForMeeting(ctx context.Context, meetingID string, at time.Time) (int, error)
	// ClaimDue stamps up to limit pending jobs due at now whose claim is absent
	// or older than lease, returning them ordered by fire time.
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]NotificationJob, error)
	// CompleteJob moves a job out of pending. It reports false when the job
	// was no longer pending.
	CompleteJob(ctx context.Context, id, status string, lastError *string, at time.Time) (bool, error)
	// PurgeTerminalBefore deletes non-pending jobs that fired before cutoff.
	PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
