package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gusfragger/webot/internal/application"
	"github.com/gusfragger/webot/internal/notification"
	"github.com/gusfragger/webot/internal/persistence"
)

var (
	profileCounter  uint64
	intervalCounter uint64
	meetingCounter  uint64
	jobCounter      uint64
)

// Monday 2024-06-03 09:00 UTC.
var referenceTime = time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the baseline instant fixtures are laid out from.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Profile fixtures -----------------------------

// ProfileFixture is a deterministic user profile.
type ProfileFixture struct {
	UserID            string
	Timezone          string
	WorkingHoursStart int
	WorkingHoursEnd   int
	Offsets           []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ProfileOption configures a ProfileFixture.
type ProfileOption func(*ProfileFixture)

// NewProfileFixture returns a UTC 9-17 profile with a one hour reminder.
func NewProfileFixture(opts ...ProfileOption) ProfileFixture {
	idx := atomic.AddUint64(&profileCounter, 1)
	fixture := ProfileFixture{
		UserID:            fmt.Sprintf("U%03d", idx),
		Timezone:          "UTC",
		WorkingHoursStart: application.DefaultWorkingHoursStart,
		WorkingHoursEnd:   application.DefaultWorkingHoursEnd,
		Offsets:           []string{"1h"},
		CreatedAt:         referenceTime,
		UpdatedAt:         referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithProfileUser overrides the generated user ID.
func WithProfileUser(userID string) ProfileOption {
	return func(f *ProfileFixture) { f.UserID = userID }
}

// WithProfileTimezone overrides the canonical zone.
func WithProfileTimezone(zone string) ProfileOption {
	return func(f *ProfileFixture) { f.Timezone = zone }
}

// WithProfileWorkingHours overrides the local working hours.
func WithProfileWorkingHours(start, end int) ProfileOption {
	return func(f *ProfileFixture) {
		f.WorkingHoursStart = start
		f.WorkingHoursEnd = end
	}
}

// WithProfileOffsets overrides the reminder offsets, given as tokens.
func WithProfileOffsets(tokens ...string) ProfileOption {
	return func(f *ProfileFixture) { f.Offsets = tokens }
}

// Persistence returns the fixture as a stored row.
func (f ProfileFixture) Persistence() persistence.UserProfile {
	return persistence.UserProfile{
		UserID:              f.UserID,
		Timezone:            f.Timezone,
		WorkingHoursStart:   f.WorkingHoursStart,
		WorkingHoursEnd:     f.WorkingHoursEnd,
		NotificationOffsets: append([]string(nil), f.Offsets...),
		CreatedAt:           f.CreatedAt,
		UpdatedAt:           f.UpdatedAt,
	}
}

// Application returns the fixture as a service level profile. Offset tokens
// that do not parse are dropped.
func (f ProfileFixture) Application() application.Profile {
	offsets := make([]notification.Offset, 0, len(f.Offsets))
	for _, token := range f.Offsets {
		if offset, err := notification.ParseOffset(token); err == nil {
			offsets = append(offsets, offset)
		}
	}
	return application.Profile{
		UserID:              f.UserID,
		Timezone:            f.Timezone,
		WorkingHoursStart:   f.WorkingHoursStart,
		WorkingHoursEnd:     f.WorkingHoursEnd,
		NotificationOffsets: offsets,
		CreatedAt:           f.CreatedAt,
		UpdatedAt:           f.UpdatedAt,
	}
}

// ----------------------------- Interval fixtures -----------------------------

// IntervalFixture is a deterministic availability interval.
type IntervalFixture struct {
	ID      string
	OwnerID string
	Start   time.Time
	End     time.Time
	Kind    string
	Reason  string
}

// IntervalOption configures an IntervalFixture.
type IntervalOption func(*IntervalFixture)

// NewIntervalFixture returns a one hour busy interval starting at
// ReferenceTime.
func NewIntervalFixture(opts ...IntervalOption) IntervalFixture {
	idx := atomic.AddUint64(&intervalCounter, 1)
	fixture := IntervalFixture{
		ID:      fmt.Sprintf("int-%03d", idx),
		OwnerID: "U001",
		Start:   referenceTime,
		End:     referenceTime.Add(time.Hour),
		Kind:    persistence.IntervalKindBusy,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithIntervalID overrides the generated ID.
func WithIntervalID(id string) IntervalOption {
	return func(f *IntervalFixture) { f.ID = id }
}

// WithIntervalOwner overrides the owner.
func WithIntervalOwner(ownerID string) IntervalOption {
	return func(f *IntervalFixture) { f.OwnerID = ownerID }
}

// WithIntervalRange overrides the bounds.
func WithIntervalRange(start, end time.Time) IntervalOption {
	return func(f *IntervalFixture) {
		f.Start = start
		f.End = end
	}
}

// WithIntervalAvailable marks the interval as declared availability.
func WithIntervalAvailable() IntervalOption {
	return func(f *IntervalFixture) { f.Kind = persistence.IntervalKindAvailable }
}

// WithIntervalReason attaches a free text reason.
func WithIntervalReason(reason string) IntervalOption {
	return func(f *IntervalFixture) { f.Reason = reason }
}

// Persistence returns the fixture as a stored row.
func (f IntervalFixture) Persistence() persistence.AvailabilityInterval {
	var reason *string
	if f.Reason != "" {
		reason = &f.Reason
	}
	return persistence.AvailabilityInterval{
		ID:        f.ID,
		OwnerID:   f.OwnerID,
		Start:     f.Start,
		End:       f.End,
		Kind:      f.Kind,
		Reason:    reason,
		CreatedAt: referenceTime,
	}
}

// ----------------------------- Meeting fixtures -----------------------------

// MeetingFixture is a deterministic proposed meeting one day after
// ReferenceTime.
type MeetingFixture struct {
	ID              string
	ProposerID      string
	Title           string
	Start           time.Time
	DurationMinutes int
	Zone            string
	Status          string
	SeriesID        string
	Participants    []string
}

// MeetingOption configures a MeetingFixture.
type MeetingOption func(*MeetingFixture)

// NewMeetingFixture returns a 30 minute proposed meeting.
func NewMeetingFixture(opts ...MeetingOption) MeetingFixture {
	idx := atomic.AddUint64(&meetingCounter, 1)
	fixture := MeetingFixture{
		ID:              fmt.Sprintf("mtg-%03d", idx),
		ProposerID:      "U001",
		Title:           fmt.Sprintf("Sync %03d", idx),
		Start:           referenceTime.Add(24 * time.Hour),
		DurationMinutes: 30,
		Zone:            "UTC",
		Status:          persistence.MeetingStatusProposed,
		Participants:    []string{"U001"},
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithMeetingID overrides the generated ID.
func WithMeetingID(id string) MeetingOption {
	return func(f *MeetingFixture) { f.ID = id }
}

// WithMeetingStart overrides the start instant.
func WithMeetingStart(start time.Time) MeetingOption {
	return func(f *MeetingFixture) { f.Start = start }
}

// WithMeetingStatus overrides the lifecycle status.
func WithMeetingStatus(status string) MeetingOption {
	return func(f *MeetingFixture) { f.Status = status }
}

// WithMeetingParticipants sets the proposer followed by the other
// participants.
func WithMeetingParticipants(proposerID string, others ...string) MeetingOption {
	return func(f *MeetingFixture) {
		f.ProposerID = proposerID
		f.Participants = append([]string{proposerID}, others...)
	}
}

// WithMeetingSeries attaches the meeting to a series.
func WithMeetingSeries(seriesID string) MeetingOption {
	return func(f *MeetingFixture) { f.SeriesID = seriesID }
}

// Persistence returns the fixture as a stored row.
func (f MeetingFixture) Persistence() persistence.Meeting {
	var series *string
	if f.SeriesID != "" {
		series = &f.SeriesID
	}
	return persistence.Meeting{
		ID:              f.ID,
		ProposerID:      f.ProposerID,
		Title:           f.Title,
		Start:           f.Start,
		DurationMinutes: f.DurationMinutes,
		DisplayTimezone: f.Zone,
		Status:          f.Status,
		SeriesID:        series,
		Participants:    append([]string(nil), f.Participants...),
		CreatedAt:       referenceTime,
		UpdatedAt:       referenceTime,
	}
}

// Application returns the fixture as a service level meeting.
func (f MeetingFixture) Application() application.Meeting {
	return application.Meeting{
		ID:              f.ID,
		ProposerID:      f.ProposerID,
		Title:           f.Title,
		Start:           f.Start,
		DurationMinutes: f.DurationMinutes,
		DisplayTimezone: f.Zone,
		Status:          application.MeetingStatus(f.Status),
		SeriesID:        f.SeriesID,
		ParticipantIDs:  append([]string(nil), f.Participants...),
		CreatedAt:       referenceTime,
		UpdatedAt:       referenceTime,
	}
}

// ----------------------------- Job fixtures -----------------------------

// JobFixture is a deterministic pending reminder.
type JobFixture struct {
	ID        string
	MeetingID string
	UserID    string
	FireAt    time.Time
	Offset    string
	Status    string
}

// JobOption configures a JobFixture.
type JobOption func(*JobFixture)

// NewJobFixture returns a pending one hour reminder due at ReferenceTime.
func NewJobFixture(meetingID, userID string, opts ...JobOption) JobFixture {
	idx := atomic.AddUint64(&jobCounter, 1)
	fixture := JobFixture{
		ID:        fmt.Sprintf("job-%03d", idx),
		MeetingID: meetingID,
		UserID:    userID,
		FireAt:    referenceTime,
		Offset:    "1h",
		Status:    persistence.JobStatusPending,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithJobFireAt overrides the fire instant.
func WithJobFireAt(at time.Time) JobOption {
	return func(f *JobFixture) { f.FireAt = at }
}

// WithJobStatus overrides the status.
func WithJobStatus(status string) JobOption {
	return func(f *JobFixture) { f.Status = status }
}

// Persistence returns the fixture as a stored row.
func (f JobFixture) Persistence() persistence.NotificationJob {
	return persistence.NotificationJob{
		ID:          f.ID,
		MeetingID:   f.MeetingID,
		UserID:      f.UserID,
		FireAt:      f.FireAt,
		OffsetToken: f.Offset,
		Status:      f.Status,
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
}
