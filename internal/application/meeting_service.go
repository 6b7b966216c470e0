package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/gusfragger/webot/internal/recurrence"
	"github.com/gusfragger/webot/internal/timezone"
)

// MeetingService drives the meeting lifecycle: proposal, confirmation,
// cancellation, rescheduling and recurring series.
type MeetingService struct {
	meetings      MeetingRepository
	availability  *AvailabilityService
	notifications *NotificationService
	zones         ZoneResolver
	converter     DateTimeConverter
	idGenerator   func() string
	now           func() time.Time
	logger        *slog.Logger
}

// NewMeetingService wires dependencies for meeting operations.
func NewMeetingService(meetings MeetingRepository, availability *AvailabilityService, notifications *NotificationService, zones ZoneResolver, converter DateTimeConverter, idGenerator func() string, now func() time.Time, logger *slog.Logger) *MeetingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &MeetingService{
		meetings:      meetings,
		availability:  availability,
		notifications: notifications,
		zones:         zones,
		converter:     converter,
		idGenerator:   idGenerator,
		now:           now,
		logger:        defaultLogger(logger).With("component", "meeting_service"),
	}
}

// MeetingInput describes a meeting to propose. Either Start is set, or Date
// ("YYYY-MM-DD") and Time ("HH:MM") are read as wall-clock time in Zone.
type MeetingInput struct {
	Title           string
	Start           time.Time
	Date            string
	Time            string
	Zone            string
	DurationMinutes int
	ParticipantIDs  []string
}

// Propose stores a proposed meeting. Participants busy during the slot are
// reported as warnings; they do not block the proposal.
func (s *MeetingService) Propose(ctx context.Context, principal Principal, input MeetingInput) (Meeting, []ConflictWarning, error) {
	logger := serviceLogger(ctx, s.logger, "meeting", "propose", "proposer_id", principal.UserID)
	if principal.UserID == "" {
		return Meeting{}, nil, ErrUnauthorized
	}

	start, zone, vErr := s.resolveStart(input.Start, input.Date, input.Time, input.Zone)
	vErr.merge(validateDuration(input.DurationMinutes))
	if !start.IsZero() && !start.After(s.now()) {
		vErr.add("start", "start must be in the future")
	}
	if vErr.HasErrors() {
		logFailure(ctx, logger, "meeting proposal rejected", vErr)
		return Meeting{}, nil, vErr
	}

	created := s.now().UTC()
	meeting := Meeting{
		ID:              s.idGenerator(),
		ProposerID:      principal.UserID,
		Title:           strings.TrimSpace(input.Title),
		Start:           start,
		DurationMinutes: input.DurationMinutes,
		DisplayTimezone: zone,
		Status:          MeetingProposed,
		ParticipantIDs:  participantSet(principal.UserID, input.ParticipantIDs),
		CreatedAt:       created,
		UpdatedAt:       created,
	}

	warnings, err := s.conflictWarnings(ctx, meeting)
	if err != nil {
		return Meeting{}, nil, err
	}
	if err := s.meetings.CreateMeeting(ctx, meeting); err != nil {
		logFailure(ctx, logger, "meeting proposal failed", err)
		return Meeting{}, nil, fmt.Errorf("store meeting: %w", mapRepoError(err))
	}

	logger.InfoContext(ctx, "meeting proposed",
		slog.String("meeting_id", meeting.ID),
		slog.Time("start", meeting.Start),
		slog.Int("participants", len(meeting.ParticipantIDs)),
		slog.Int("warnings", len(warnings)),
	)
	return meeting, warnings, nil
}

// Get returns a meeting.
func (s *MeetingService) Get(ctx context.Context, meetingID string) (Meeting, error) {
	meeting, err := s.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return Meeting{}, mapRepoError(err)
	}
	return meeting, nil
}

// Confirm fixes a proposed meeting and schedules its reminders.
func (s *MeetingService) Confirm(ctx context.Context, principal Principal, meetingID string) (Meeting, []Job, error) {
	logger := serviceLogger(ctx, s.logger, "meeting", "confirm", "meeting_id", meetingID)

	meeting, err := s.transition(ctx, principal, meetingID, MeetingConfirmed)
	if err != nil {
		logFailure(ctx, logger, "meeting confirmation rejected", err)
		return Meeting{}, nil, err
	}
	jobs, err := s.notifications.Schedule(ctx, meeting, meeting.ParticipantIDs)
	if err != nil {
		return meeting, nil, err
	}
	logger.InfoContext(ctx, "meeting confirmed", slog.Int("reminders", len(jobs)))
	return meeting, jobs, nil
}

// Cancel calls a meeting off. Its pending reminders are cancelled before the
// call returns.
func (s *MeetingService) Cancel(ctx context.Context, principal Principal, meetingID string) (Meeting, error) {
	logger := serviceLogger(ctx, s.logger, "meeting", "cancel", "meeting_id", meetingID)

	meeting, err := s.transition(ctx, principal, meetingID, MeetingCancelled)
	if err != nil {
		logFailure(ctx, logger, "meeting cancellation rejected", err)
		return Meeting{}, err
	}
	n, err := s.notifications.CancelAll(ctx, meetingID)
	if err != nil {
		return Meeting{}, err
	}
	logger.InfoContext(ctx, "meeting cancelled", slog.Int("reminders_cancelled", n))
	return meeting, nil
}

// Reschedule moves a live meeting to newStart. Reminders of a confirmed
// meeting are re-planned for the new time.
func (s *MeetingService) Reschedule(ctx context.Context, principal Principal, meetingID string, newStart time.Time) (Meeting, []Job, error) {
	logger := serviceLogger(ctx, s.logger, "meeting", "reschedule", "meeting_id", meetingID)

	meeting, err := s.owned(ctx, principal, meetingID)
	if err != nil {
		logFailure(ctx, logger, "meeting reschedule rejected", err)
		return Meeting{}, nil, err
	}
	if meeting.Status == MeetingCancelled {
		err := fmt.Errorf("%w: meeting is cancelled", ErrInvalidTransition)
		logFailure(ctx, logger, "meeting reschedule rejected", err)
		return Meeting{}, nil, err
	}
	if newStart.IsZero() || !newStart.After(s.now()) {
		return Meeting{}, nil, fieldError("start", "start must be in the future")
	}

	meeting.Start = newStart.UTC()
	meeting.UpdatedAt = s.now().UTC()
	if err := s.meetings.UpdateMeeting(ctx, meeting, meeting.Status); err != nil {
		err = mapRepoError(err)
		logFailure(ctx, logger, "meeting reschedule failed", err)
		return Meeting{}, nil, err
	}

	var jobs []Job
	if meeting.Status == MeetingConfirmed {
		jobs, err = s.notifications.Reschedule(ctx, meeting.ID, meeting.Start)
		if err != nil {
			return meeting, nil, err
		}
	}
	logger.InfoContext(ctx, "meeting rescheduled", slog.Time("start", meeting.Start), slog.Int("reminders", len(jobs)))
	return meeting, jobs, nil
}

// SeriesInput describes a recurring meeting. At least one of Until and
// MaxOccurrences bounds the series.
type SeriesInput struct {
	Title           string
	Pattern         string
	Interval        int
	First           time.Time
	Until           *time.Time
	MaxOccurrences  int
	Zone            string
	DurationMinutes int
	ParticipantIDs  []string
}

// CreateSeries expands the rule and stores the series with one proposed
// meeting per occurrence.
func (s *MeetingService) CreateSeries(ctx context.Context, principal Principal, input SeriesInput) (Series, []Meeting, error) {
	logger := serviceLogger(ctx, s.logger, "meeting", "create_series", "proposer_id", principal.UserID)
	if principal.UserID == "" {
		return Series{}, nil, ErrUnauthorized
	}

	vErr := validateDuration(input.DurationMinutes)
	pattern, err := recurrence.ParsePattern(input.Pattern)
	if err != nil {
		vErr.add("pattern", "must be daily, weekly, biweekly or monthly")
	}
	zone, loc := timezone.DefaultZone, time.UTC
	if input.Zone != "" {
		if zone, err = s.zones.Normalize(input.Zone); err == nil {
			loc, err = s.zones.Location(zone)
		}
		if err != nil {
			vErr.add("zone", fmt.Sprintf("%q is not a recognised timezone", input.Zone))
		}
	}
	if input.First.IsZero() || !input.First.After(s.now()) {
		vErr.add("first", "first occurrence must be in the future")
	}
	if vErr.HasErrors() {
		logFailure(ctx, logger, "series rejected", vErr)
		return Series{}, nil, vErr
	}

	rule := recurrence.Rule{
		Pattern:        pattern,
		Interval:       input.Interval,
		First:          input.First,
		Until:          input.Until,
		MaxOccurrences: input.MaxOccurrences,
		Location:       loc,
	}
	starts, err := recurrence.Expand(rule)
	if err != nil {
		vErr := recurrenceValidation(err)
		logFailure(ctx, logger, "series rejected", vErr)
		return Series{}, nil, vErr
	}

	created := s.now().UTC()
	series := Series{
		ID:              s.idGenerator(),
		ProposerID:      principal.UserID,
		Pattern:         pattern,
		Interval:        pattern.Interval(),
		FirstOccurrence: input.First.UTC(),
		Until:           input.Until,
		MaxOccurrences:  input.MaxOccurrences,
		CreatedAt:       created,
	}
	if series.Until != nil {
		until := series.Until.UTC()
		series.Until = &until
	}

	participants := participantSet(principal.UserID, input.ParticipantIDs)
	occurrences := make([]Meeting, len(starts))
	for i, start := range starts {
		occurrences[i] = Meeting{
			ID:              s.idGenerator(),
			ProposerID:      principal.UserID,
			Title:           strings.TrimSpace(input.Title),
			Start:           start,
			DurationMinutes: input.DurationMinutes,
			DisplayTimezone: zone,
			Status:          MeetingProposed,
			SeriesID:        series.ID,
			ParticipantIDs:  slices.Clone(participants),
			CreatedAt:       created,
			UpdatedAt:       created,
		}
	}

	if err := s.meetings.CreateSeries(ctx, series, occurrences); err != nil {
		logFailure(ctx, logger, "series creation failed", err)
		return Series{}, nil, fmt.Errorf("store series: %w", mapRepoError(err))
	}
	logger.InfoContext(ctx, "series created",
		slog.String("series_id", series.ID),
		slog.String("pattern", string(pattern)),
		slog.Int("occurrences", len(occurrences)),
	)
	return series, occurrences, nil
}

func (s *MeetingService) transition(ctx context.Context, principal Principal, meetingID string, next MeetingStatus) (Meeting, error) {
	meeting, err := s.owned(ctx, principal, meetingID)
	if err != nil {
		return Meeting{}, err
	}
	if !meeting.Status.CanTransitionTo(next) {
		return Meeting{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, meeting.Status, next)
	}

	previous := meeting.Status
	meeting.Status = next
	meeting.UpdatedAt = s.now().UTC()
	if err := s.meetings.UpdateMeeting(ctx, meeting, previous); err != nil {
		return Meeting{}, mapRepoError(err)
	}
	return meeting, nil
}

func (s *MeetingService) owned(ctx context.Context, principal Principal, meetingID string) (Meeting, error) {
	meeting, err := s.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return Meeting{}, mapRepoError(err)
	}
	if principal.UserID == "" || meeting.ProposerID != principal.UserID {
		return Meeting{}, ErrUnauthorized
	}
	return meeting, nil
}

func (s *MeetingService) resolveStart(start time.Time, date, clock, zone string) (time.Time, string, *ValidationError) {
	vErr := &ValidationError{}
	canonical, err := s.zones.Normalize(zone)
	if err != nil {
		vErr.add("zone", fmt.Sprintf("%q is not a recognised timezone", zone))
		return time.Time{}, "", vErr
	}

	if !start.IsZero() {
		return start.UTC(), canonical, vErr
	}
	if date == "" || clock == "" {
		vErr.add("start", "start, or date and time, is required")
		return time.Time{}, canonical, vErr
	}
	parsed, err := s.converter.ParseUserDateTime(date, clock, canonical)
	if err != nil {
		vErr.add("start", err.Error())
		return time.Time{}, canonical, vErr
	}
	return parsed.UTC, canonical, vErr
}

func (s *MeetingService) conflictWarnings(ctx context.Context, meeting Meeting) ([]ConflictWarning, error) {
	if s.availability == nil {
		return nil, nil
	}
	var warnings []ConflictWarning
	for _, userID := range meeting.ParticipantIDs {
		conflicts, err := s.availability.FindConflicts(ctx, userID, meeting.Start, meeting.End(), "")
		if err != nil {
			return nil, err
		}
		for _, c := range conflicts {
			warnings = append(warnings, ConflictWarning{ParticipantID: userID, IntervalID: c.ID, Start: c.Start, End: c.End})
		}
	}
	return warnings, nil
}

// participantSet puts the proposer first and drops repeats.
func participantSet(proposerID string, others []string) []string {
	return uniqueStrings(append([]string{proposerID}, others...))
}

func recurrenceValidation(err error) *ValidationError {
	vErr := &ValidationError{}
	switch {
	case errors.Is(err, recurrence.ErrUnbounded):
		vErr.add("end_condition", "an end date or an occurrence count is required")
	case errors.Is(err, recurrence.ErrInvalidInterval):
		vErr.add("interval", err.Error())
	case errors.Is(err, recurrence.ErrInvalidLimit):
		vErr.add("max_occurrences", fmt.Sprintf("must be between 1 and %d", recurrence.HardCap))
	case errors.Is(err, recurrence.ErrInvalidWindow):
		vErr.add("until", "must not be before the first occurrence")
	case errors.Is(err, recurrence.ErrTooManyOccurrences):
		vErr.add("until", fmt.Sprintf("must end within %d occurrences; set max_occurrences to stop earlier", recurrence.HardCap))
	default:
		vErr.add("pattern", err.Error())
	}
	return vErr
}
