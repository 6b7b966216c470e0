package persistence

import "time"

// Interval kinds.
const (
	IntervalKindBusy      = "busy"
	IntervalKindAvailable = "available"
)

// Meeting statuses.
const (
	MeetingStatusProposed  = "proposed"
	MeetingStatusConfirmed = "confirmed"
	MeetingStatusCancelled = "cancelled"
)

// Notification job statuses.
const (
	JobStatusPending   = "pending"
	JobStatusSent      = "sent"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// UserProfile stores per-user scheduling preferences.
type UserProfile struct {
	UserID              string
	Timezone            string
	WorkingHoursStart   int
	WorkingHoursEnd     int
	NotificationOffsets []string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// AvailabilityInterval is a half-open [Start, End) range owned by one user.
type AvailabilityInterval struct {
	ID             string
	OwnerID        string
	Start          time.Time
	End            time.Time
	Kind           string
	Reason         *string
	RecurrenceRule *string
	CreatedAt      time.Time
}

// Meeting is a single meeting occurrence.
type Meeting struct {
	ID              string
	ProposerID      string
	Title           string
	Start           time.Time
	DurationMinutes int
	DisplayTimezone string
	Status          string
	SeriesID        *string
	Participants    []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RecurrenceSeries records the rule a set of meetings was generated from.
type RecurrenceSeries struct {
	ID              string
	ProposerID      string
	Pattern         string
	Interval        int
	FirstOccurrence time.Time
	Until           *time.Time
	MaxOccurrences  int
	CreatedAt       time.Time
}

// NotificationJob is one reminder for one user about one meeting.
type NotificationJob struct {
	ID          string
	MeetingID   string
	UserID      string
	FireAt      time.Time
	OffsetToken string
	Status      string
	LastError   *string
	ClaimedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
