package application

import (
	"time"

	"github.com/gusfragger/webot/internal/notification"
	"github.com/gusfragger/webot/internal/recurrence"
)

// Principal is the chat-platform user invoking a service method.
type Principal struct {
	UserID string
}

// Profile defaults applied when a user is first seen.
const (
	DefaultWorkingHoursStart = 9
	DefaultWorkingHoursEnd   = 17
)

// DefaultNotificationOffsets is the reminder preference of a new profile.
var DefaultNotificationOffsets = []notification.Offset{{Amount: 1, Unit: notification.UnitHour}}

// Profile holds per-user scheduling preferences.
type Profile struct {
	UserID              string
	Timezone            string
	WorkingHoursStart   int
	WorkingHoursEnd     int
	NotificationOffsets []notification.Offset
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IntervalKind distinguishes busy blocks from declared availability.
type IntervalKind string

const (
	IntervalBusy      IntervalKind = "busy"
	IntervalAvailable IntervalKind = "available"
)

// Interval is a half-open [Start, End) range in UTC owned by one user.
type Interval struct {
	ID             string
	OwnerID        string
	Start          time.Time
	End            time.Time
	Kind           IntervalKind
	Reason         string
	RecurrenceRule string
	CreatedAt      time.Time
}

// MeetingStatus is the lifecycle state of a meeting.
type MeetingStatus string

const (
	MeetingProposed  MeetingStatus = "proposed"
	MeetingConfirmed MeetingStatus = "confirmed"
	MeetingCancelled MeetingStatus = "cancelled"
)

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s MeetingStatus) CanTransitionTo(next MeetingStatus) bool {
	switch s {
	case MeetingProposed:
		return next == MeetingConfirmed || next == MeetingCancelled
	case MeetingConfirmed:
		return next == MeetingCancelled
	}
	return false
}

// Meeting durations accepted, in minutes.
const (
	MinMeetingMinutes = 15
	MaxMeetingMinutes = 480
)

// Meeting is one meeting occurrence.
type Meeting struct {
	ID              string
	ProposerID      string
	Title           string
	Start           time.Time
	DurationMinutes int
	DisplayTimezone string
	Status          MeetingStatus
	SeriesID        string
	ParticipantIDs  []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// End returns the exclusive end instant.
func (m Meeting) End() time.Time {
	return m.Start.Add(time.Duration(m.DurationMinutes) * time.Minute)
}

// Series is the immutable rule a set of meetings was generated from.
type Series struct {
	ID              string
	ProposerID      string
	Pattern         recurrence.Pattern
	Interval        int
	FirstOccurrence time.Time
	Until           *time.Time
	MaxOccurrences  int
	CreatedAt       time.Time
}

// Job is a reminder for one participant of one meeting.
type Job struct {
	ID        string
	MeetingID string
	UserID    string
	FireAt    time.Time
	Offset    notification.Offset
	Status    notification.Status
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConflictWarning tells a proposer that a participant is busy during the
// proposed meeting.
type ConflictWarning struct {
	ParticipantID string
	IntervalID    string
	Start         time.Time
	End           time.Time
}

// Suggestion is a ranked candidate meeting time.
type Suggestion struct {
	Start            time.Time
	End              time.Time
	AvailableCount   int
	TotalUsers       int
	Score            float64
	AvailableUserIDs []string
	BusyUserIDs      []string
}
