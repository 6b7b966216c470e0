package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gusfragger/webot/internal/scheduler"
)

// Result caps used by the search entry points.
const (
	DefaultSearchLimit  = 10
	TeamSuggestionLimit = 5
	BetterTimeLimit     = 3
	// MaxSearchLimit bounds caller supplied caps.
	MaxSearchLimit = 100
	// SuggestionWindow is the look-ahead of the quick suggestion helpers.
	SuggestionWindow = 7 * 24 * time.Hour
)

// SearchParams configures SearchService.Search.
type SearchParams struct {
	UserIDs          []string
	DurationMinutes  int
	WindowStart      time.Time
	WindowEnd        time.Time
	WorkingHoursOnly bool
	// TopN caps the result; zero selects DefaultSearchLimit.
	TopN int
	// Zone is the calendar used to lay out days and grid hours; empty is UTC.
	Zone string
}

// SearchService ranks candidate meeting times for a group of users.
type SearchService struct {
	intervals IntervalRepository
	profiles  ProfileRepository
	meetings  MeetingRepository
	zones     ZoneResolver
	now       func() time.Time
	logger    *slog.Logger
}

// NewSearchService wires dependencies for search operations.
func NewSearchService(intervals IntervalRepository, profiles ProfileRepository, meetings MeetingRepository, zones ZoneResolver, now func() time.Time, logger *slog.Logger) *SearchService {
	if now == nil {
		now = time.Now
	}
	return &SearchService{
		intervals: intervals,
		profiles:  profiles,
		meetings:  meetings,
		zones:     zones,
		now:       now,
		logger:    defaultLogger(logger).With("component", "search_service"),
	}
}

// Search evaluates the fixed hourly grid over the window and returns the best
// candidates. No users or an empty window yield an empty result.
func (s *SearchService) Search(ctx context.Context, params SearchParams) ([]Suggestion, error) {
	return s.search(ctx, params, nil)
}

func (s *SearchService) search(ctx context.Context, params SearchParams, skip func(time.Time) bool) ([]Suggestion, error) {
	logger := serviceLogger(ctx, s.logger, "search", "rank", "users", len(params.UserIDs))

	vErr := validateDuration(params.DurationMinutes)
	if params.TopN < 0 || params.TopN > MaxSearchLimit {
		vErr.add("top_n", fmt.Sprintf("must be between 1 and %d", MaxSearchLimit))
	}
	loc := time.UTC
	if params.Zone != "" {
		zone, err := s.zones.Normalize(params.Zone)
		if err == nil {
			loc, err = s.zones.Location(zone)
		}
		if err != nil {
			vErr.add("zone", fmt.Sprintf("%q is not a recognised timezone", params.Zone))
		}
	}
	if vErr.HasErrors() {
		logFailure(ctx, logger, "search rejected", vErr)
		return nil, vErr
	}

	ids := uniqueStrings(params.UserIDs)
	if len(ids) == 0 || !params.WindowStart.Before(params.WindowEnd) {
		return []Suggestion{}, nil
	}
	limit := params.TopN
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	duration := time.Duration(params.DurationMinutes) * time.Minute

	participants, err := s.participants(ctx, ids, params.WindowStart, params.WindowEnd.Add(duration))
	if err != nil {
		logFailure(ctx, logger, "search failed", err)
		return nil, err
	}

	slots := scheduler.RankSlots(scheduler.SearchInput{
		Participants:     participants,
		Duration:         duration,
		WindowStart:      params.WindowStart,
		WindowEnd:        params.WindowEnd,
		WorkingHoursOnly: params.WorkingHoursOnly,
		Location:         loc,
		Limit:            limit,
		Skip:             skip,
	})

	suggestions := make([]Suggestion, len(slots))
	for i, slot := range slots {
		suggestions[i] = Suggestion(slot)
	}
	logger.DebugContext(ctx, "search finished", slog.Int("suggestions", len(suggestions)))
	return suggestions, nil
}

// participants gathers working hours and busy intervals overlapping
// [start, end) for ids.
func (s *SearchService) participants(ctx context.Context, ids []string, start, end time.Time) ([]scheduler.Participant, error) {
	profiles, err := profilesByID(ctx, s.profiles, ids)
	if err != nil {
		return nil, err
	}
	busy, err := s.intervals.ListIntervals(ctx, IntervalQuery{OwnerIDs: ids, Kind: IntervalBusy, Start: start, End: end})
	if err != nil {
		return nil, fmt.Errorf("list busy intervals: %w", err)
	}
	busyByOwner := make(map[string][]scheduler.Busy, len(ids))
	for _, interval := range busy {
		busyByOwner[interval.OwnerID] = append(busyByOwner[interval.OwnerID], toBusy(interval))
	}

	participants := make([]scheduler.Participant, 0, len(ids))
	for _, id := range ids {
		p := scheduler.Participant{ID: id, Busy: busyByOwner[id]}
		if profile, ok := profiles[id]; ok {
			if loc, err := s.zones.Location(profile.Timezone); err == nil {
				p.Hours = &scheduler.WorkingHours{Location: loc, StartHour: profile.WorkingHoursStart, EndHour: profile.WorkingHoursEnd}
			}
		}
		participants = append(participants, p)
	}
	return participants, nil
}

// SuggestForTeam returns the best TeamSuggestionLimit working-hour slots in
// the coming week.
func (s *SearchService) SuggestForTeam(ctx context.Context, userIDs []string, durationMinutes int) ([]Suggestion, error) {
	start := s.now().UTC()
	return s.Search(ctx, SearchParams{
		UserIDs:          userIDs,
		DurationMinutes:  durationMinutes,
		WindowStart:      start,
		WindowEnd:        start.Add(SuggestionWindow),
		WorkingHoursOnly: true,
		TopN:             TeamSuggestionLimit,
	})
}

// SuggestBetterTime proposes up to BetterTimeLimit alternatives to a meeting's
// current slot for its participants, within a week of the meeting's day.
// Slots already in the past are not offered.
func (s *SearchService) SuggestBetterTime(ctx context.Context, meetingID string) ([]Suggestion, error) {
	meeting, err := s.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if meeting.Status == MeetingCancelled {
		return nil, fmt.Errorf("%w: meeting is cancelled", ErrInvalidTransition)
	}

	loc := time.UTC
	if meeting.DisplayTimezone != "" {
		if l, err := s.zones.Location(meeting.DisplayTimezone); err == nil {
			loc = l
		}
	}
	local := meeting.Start.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	windowStart := dayStart
	if now := s.now(); now.After(windowStart) {
		windowStart = now
	}

	return s.search(ctx, SearchParams{
		UserIDs:          append([]string{meeting.ProposerID}, meeting.ParticipantIDs...),
		DurationMinutes:  meeting.DurationMinutes,
		WindowStart:      windowStart,
		WindowEnd:        dayStart.Add(SuggestionWindow),
		WorkingHoursOnly: true,
		TopN:             BetterTimeLimit,
		Zone:             loc.String(),
	}, func(start time.Time) bool { return start.Equal(meeting.Start) })
}

func validateDuration(minutes int) *ValidationError {
	vErr := &ValidationError{}
	if minutes < MinMeetingMinutes || minutes > MaxMeetingMinutes {
		vErr.add("duration_minutes", fmt.Sprintf("must be between %d and %d", MinMeetingMinutes, MaxMeetingMinutes))
	}
	return vErr
}
