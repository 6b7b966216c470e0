package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gusfragger/webot/internal/scheduler"
)

// AvailabilityService manages busy and available intervals and answers
// conflict and working-hour questions.
type AvailabilityService struct {
	intervals   IntervalRepository
	profiles    ProfileRepository
	zones       ZoneResolver
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAvailabilityService wires dependencies for availability operations.
func NewAvailabilityService(intervals IntervalRepository, profiles ProfileRepository, zones ZoneResolver, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AvailabilityService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AvailabilityService{
		intervals:   intervals,
		profiles:    profiles,
		zones:       zones,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger).With("component", "availability_service"),
	}
}

// IntervalInput describes an interval to record.
type IntervalInput struct {
	OwnerID string
	Start   time.Time
	End     time.Time
	Reason  string
}

// FindConflicts returns the busy intervals of userID overlapping
// [start, end), excluding excludeID, ordered by start.
func (s *AvailabilityService) FindConflicts(ctx context.Context, userID string, start, end time.Time, excludeID string) ([]Interval, error) {
	if vErr := validateRange(start, end); vErr.HasErrors() {
		return nil, vErr
	}
	stored, err := s.intervals.ListIntervals(ctx, IntervalQuery{
		OwnerIDs:  []string{userID},
		Kind:      IntervalBusy,
		Start:     start,
		End:       end,
		ExcludeID: excludeID,
	})
	if err != nil {
		return nil, fmt.Errorf("list busy intervals: %w", err)
	}
	return overlapping(stored, start, end, excludeID), nil
}

// IsWithinWorkingHours reports whether instant falls inside the working hours
// of userID in the user's zone. Unknown users and unresolvable zones yield
// false; the check never fails.
func (s *AvailabilityService) IsWithinWorkingHours(ctx context.Context, instant time.Time, userID string) bool {
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if !isNotFoundError(err) {
			serviceLogger(ctx, s.logger, "availability", "working_hours", "user_id", userID).
				WarnContext(ctx, "profile lookup failed", slog.Any("error", err))
		}
		return false
	}
	hours, ok := s.workingHours(profile)
	return ok && hours.Contains(instant)
}

func (s *AvailabilityService) workingHours(profile Profile) (scheduler.WorkingHours, bool) {
	loc, err := s.zones.Location(profile.Timezone)
	if err != nil {
		return scheduler.WorkingHours{}, false
	}
	return scheduler.WorkingHours{
		Location:  loc,
		StartHour: profile.WorkingHoursStart,
		EndHour:   profile.WorkingHoursEnd,
	}, true
}

// SetBusy records a busy interval. An overlap with an existing busy interval
// of the same owner is refused with a *ConflictError listing the conflicts.
func (s *AvailabilityService) SetBusy(ctx context.Context, principal Principal, input IntervalInput) (Interval, error) {
	return s.record(ctx, principal, input, IntervalBusy)
}

// SetAvailable records a declared-available interval. These never conflict.
func (s *AvailabilityService) SetAvailable(ctx context.Context, principal Principal, input IntervalInput) (Interval, error) {
	return s.record(ctx, principal, input, IntervalAvailable)
}

func (s *AvailabilityService) record(ctx context.Context, principal Principal, input IntervalInput, kind IntervalKind) (Interval, error) {
	if input.OwnerID == "" {
		input.OwnerID = principal.UserID
	}
	logger := serviceLogger(ctx, s.logger, "availability", "set_"+string(kind), "user_id", input.OwnerID)
	if principal.UserID == "" || input.OwnerID != principal.UserID {
		logFailure(ctx, logger, "interval rejected", ErrUnauthorized)
		return Interval{}, ErrUnauthorized
	}
	if vErr := validateRange(input.Start, input.End); vErr.HasErrors() {
		logFailure(ctx, logger, "interval rejected", vErr)
		return Interval{}, vErr
	}

	interval := Interval{
		ID:        s.idGenerator(),
		OwnerID:   input.OwnerID,
		Start:     input.Start.UTC(),
		End:       input.End.UTC(),
		Kind:      kind,
		Reason:    strings.TrimSpace(input.Reason),
		CreatedAt: s.now().UTC(),
	}

	if kind == IntervalBusy {
		conflicts, err := s.FindConflicts(ctx, interval.OwnerID, interval.Start, interval.End, "")
		if err != nil {
			return Interval{}, err
		}
		if len(conflicts) > 0 {
			cErr := &ConflictError{OwnerID: interval.OwnerID, Conflicts: conflicts}
			logFailure(ctx, logger, "busy interval rejected", cErr)
			return Interval{}, cErr
		}
	}

	inserted, err := s.intervals.InsertInterval(ctx, interval)
	if err != nil {
		logFailure(ctx, logger, "interval insert failed", err)
		return Interval{}, fmt.Errorf("insert interval: %w", err)
	}
	if !inserted {
		// Another writer won between the check and the insert.
		return Interval{}, s.conflictAfterLostRace(ctx, logger, interval, "")
	}

	logger.InfoContext(ctx, "interval recorded",
		slog.String("interval_id", interval.ID),
		slog.Time("start", interval.Start),
		slog.Time("end", interval.End),
	)
	return interval, nil
}

// MoveBusy changes the bounds of an interval owned by the principal,
// ignoring the interval itself when checking for conflicts.
func (s *AvailabilityService) MoveBusy(ctx context.Context, principal Principal, intervalID string, start, end time.Time) (Interval, error) {
	logger := serviceLogger(ctx, s.logger, "availability", "move", "interval_id", intervalID)

	interval, err := s.owned(ctx, principal, intervalID)
	if err != nil {
		logFailure(ctx, logger, "interval move rejected", err)
		return Interval{}, err
	}
	if vErr := validateRange(start, end); vErr.HasErrors() {
		return Interval{}, vErr
	}
	interval.Start, interval.End = start.UTC(), end.UTC()

	if interval.Kind == IntervalBusy {
		conflicts, err := s.FindConflicts(ctx, interval.OwnerID, interval.Start, interval.End, interval.ID)
		if err != nil {
			return Interval{}, err
		}
		if len(conflicts) > 0 {
			cErr := &ConflictError{OwnerID: interval.OwnerID, Conflicts: conflicts}
			logFailure(ctx, logger, "interval move rejected", cErr)
			return Interval{}, cErr
		}
	}

	moved, err := s.intervals.MoveInterval(ctx, interval)
	if err != nil {
		return Interval{}, mapRepoError(err)
	}
	if !moved {
		return Interval{}, s.conflictAfterLostRace(ctx, logger, interval, interval.ID)
	}
	logger.InfoContext(ctx, "interval moved", slog.Time("start", interval.Start), slog.Time("end", interval.End))
	return interval, nil
}

// RemoveInterval deletes an interval owned by the principal.
func (s *AvailabilityService) RemoveInterval(ctx context.Context, principal Principal, intervalID string) error {
	logger := serviceLogger(ctx, s.logger, "availability", "remove", "interval_id", intervalID)
	if _, err := s.owned(ctx, principal, intervalID); err != nil {
		logFailure(ctx, logger, "interval removal rejected", err)
		return err
	}
	if err := s.intervals.DeleteInterval(ctx, intervalID); err != nil {
		return mapRepoError(err)
	}
	logger.InfoContext(ctx, "interval removed")
	return nil
}

// TeamSnapshot returns every interval of userIDs overlapping [start, end),
// ordered by owner then start.
func (s *AvailabilityService) TeamSnapshot(ctx context.Context, userIDs []string, start, end time.Time) ([]Interval, error) {
	ids := uniqueStrings(userIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	if vErr := validateRange(start, end); vErr.HasErrors() {
		return nil, vErr
	}
	intervals, err := s.intervals.ListIntervals(ctx, IntervalQuery{OwnerIDs: ids, Start: start, End: end})
	if err != nil {
		return nil, fmt.Errorf("list team intervals: %w", err)
	}
	return intervals, nil
}

func (s *AvailabilityService) owned(ctx context.Context, principal Principal, intervalID string) (Interval, error) {
	interval, err := s.intervals.GetInterval(ctx, intervalID)
	if err != nil {
		return Interval{}, mapRepoError(err)
	}
	if principal.UserID == "" || interval.OwnerID != principal.UserID {
		return Interval{}, ErrUnauthorized
	}
	return interval, nil
}

func (s *AvailabilityService) conflictAfterLostRace(ctx context.Context, logger *slog.Logger, interval Interval, excludeID string) error {
	conflicts, err := s.FindConflicts(ctx, interval.OwnerID, interval.Start, interval.End, excludeID)
	if err != nil {
		return err
	}
	cErr := &ConflictError{OwnerID: interval.OwnerID, Conflicts: conflicts}
	logFailure(ctx, logger, "busy interval lost to concurrent write", cErr)
	return cErr
}

func validateRange(start, end time.Time) *ValidationError {
	vErr := &ValidationError{}
	if start.IsZero() {
		vErr.add("start", "start is required")
	}
	if end.IsZero() {
		vErr.add("end", "end is required")
	}
	if !vErr.HasErrors() && !start.Before(end) {
		vErr.add("end", "end must be after start")
	}
	return vErr
}

func overlapping(intervals []Interval, start, end time.Time, excludeID string) []Interval {
	busy := make([]scheduler.Busy, 0, len(intervals))
	byID := make(map[string]Interval, len(intervals))
	for _, interval := range intervals {
		if interval.Kind != IntervalBusy {
			continue
		}
		busy = append(busy, toBusy(interval))
		byID[interval.ID] = interval
	}

	conflicts := scheduler.Conflicts(busy, start, end, excludeID)
	out := make([]Interval, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, byID[c.ID])
	}
	return out
}

func toBusy(interval Interval) scheduler.Busy {
	return scheduler.Busy{
		ID:      interval.ID,
		OwnerID: interval.OwnerID,
		Start:   interval.Start,
		End:     interval.End,
	}
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}
