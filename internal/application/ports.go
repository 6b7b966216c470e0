package application

import (
	"context"
	"time"

	"github.com/gusfragger/webot/internal/datetime"
)

// ProfileRepository persists profiles. GetProfile reports a missing profile
// with an error matching ErrNotFound or persistence.ErrNotFound.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (Profile, error)
	ListProfiles(ctx context.Context, userIDs []string) ([]Profile, error)
	SaveProfile(ctx context.Context, profile Profile) error
}

// IntervalQuery narrows ListIntervals. Zero times leave the window open.
type IntervalQuery struct {
	OwnerIDs  []string
	Kind      IntervalKind
	Start     time.Time
	End       time.Time
	ExcludeID string
}

// IntervalRepository persists availability intervals. InsertInterval and
// MoveInterval report false when a busy interval would overlap another busy
// interval of the same owner; that check and the write are one atomic step.
type IntervalRepository interface {
	InsertInterval(ctx context.Context, interval Interval) (bool, error)
	MoveInterval(ctx context.Context, interval Interval) (bool, error)
	GetInterval(ctx context.Context, id string) (Interval, error)
	DeleteInterval(ctx context.Context, id string) error
	ListIntervals(ctx context.Context, query IntervalQuery) ([]Interval, error)
}

// MeetingRepository persists meetings and series.
type MeetingRepository interface {
	CreateMeeting(ctx context.Context, meeting Meeting) error
	CreateSeries(ctx context.Context, series Series, occurrences []Meeting) error
	GetMeeting(ctx context.Context, id string) (Meeting, error)
	// UpdateMeeting fails with persistence.ErrStaleWrite when the stored
	// status is no longer expected.
	UpdateMeeting(ctx context.Context, meeting Meeting, expected MeetingStatus) error
}

// JobRepository persists reminder jobs.
type JobRepository interface {
	CreateJobs(ctx context.Context, jobs []Job) error
	ListJobsForMeeting(ctx context.Context, meetingID string) ([]Job, error)
	CancelPendingForMeeting(ctx context.Context, meetingID string, at time.Time) (int, error)
}

// ZoneResolver normalizes zone names and loads their locations.
type ZoneResolver interface {
	Normalize(input string) (string, error)
	Location(zone string) (*time.Location, error)
}

// DateTimeConverter parses user input and renders instants for a zone.
type DateTimeConverter interface {
	ParseUserDateTime(date, clock, zone string) (datetime.Parsed, error)
	FormatDisplay(instant time.Time, zone, layout string) (string, error)
}
