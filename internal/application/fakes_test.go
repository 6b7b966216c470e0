package application

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gusfragger/webot/internal/datetime"
	"github.com/gusfragger/webot/internal/logging"
	"github.com/gusfragger/webot/internal/notification"
	"github.com/gusfragger/webot/internal/persistence"
	"github.com/gusfragger/webot/internal/scheduler"
	"github.com/gusfragger/webot/internal/timezone"
)

// memoryStore implements every repository port over maps.
type memoryStore struct {
	mu        sync.Mutex
	profiles  map[string]Profile
	intervals map[string]Interval
	meetings  map[string]Meeting
	series    map[string]Series
	jobs      []Job

	createJobsCalls int
	// beforeUpdate runs inside UpdateMeeting before the status check.
	beforeUpdate func(m *Meeting)
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		profiles:  make(map[string]Profile),
		intervals: make(map[string]Interval),
		meetings:  make(map[string]Meeting),
		series:    make(map[string]Series),
	}
}

func (s *memoryStore) GetProfile(_ context.Context, userID string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return Profile{}, persistence.ErrNotFound
	}
	return p, nil
}

func (s *memoryStore) ListProfiles(_ context.Context, userIDs []string) ([]Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Profile
	for _, id := range userIDs {
		if p, ok := s.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memoryStore) SaveProfile(_ context.Context, profile Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.profiles[profile.UserID]; ok {
		profile.CreatedAt = existing.CreatedAt
	}
	s.profiles[profile.UserID] = profile
	return nil
}

func (s *memoryStore) InsertInterval(_ context.Context, interval Interval) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if interval.Kind == IntervalBusy && s.busyOverlapLocked(interval) {
		return false, nil
	}
	s.intervals[interval.ID] = interval
	return true, nil
}

func (s *memoryStore) MoveInterval(_ context.Context, interval Interval) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.intervals[interval.ID]
	if !ok || stored.OwnerID != interval.OwnerID {
		return false, persistence.ErrNotFound
	}
	if stored.Kind == IntervalBusy && s.busyOverlapLocked(interval) {
		return false, nil
	}
	stored.Start, stored.End = interval.Start, interval.End
	s.intervals[interval.ID] = stored
	return true, nil
}

func (s *memoryStore) busyOverlapLocked(candidate Interval) bool {
	for _, other := range s.intervals {
		if other.ID == candidate.ID || other.OwnerID != candidate.OwnerID || other.Kind != IntervalBusy {
			continue
		}
		if scheduler.Overlaps(other.Start, other.End, candidate.Start, candidate.End) {
			return true
		}
	}
	return false
}

func (s *memoryStore) GetInterval(_ context.Context, id string) (Interval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	interval, ok := s.intervals[id]
	if !ok {
		return Interval{}, persistence.ErrNotFound
	}
	return interval, nil
}

func (s *memoryStore) DeleteInterval(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.intervals[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.intervals, id)
	return nil
}

func (s *memoryStore) ListIntervals(_ context.Context, query IntervalQuery) ([]Interval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Interval
	for _, interval := range s.intervals {
		switch {
		case len(query.OwnerIDs) > 0 && !slices.Contains(query.OwnerIDs, interval.OwnerID):
		case query.Kind != "" && interval.Kind != query.Kind:
		case !query.End.IsZero() && !interval.Start.Before(query.End):
		case !query.Start.IsZero() && !interval.End.After(query.Start):
		case query.ExcludeID != "" && interval.ID == query.ExcludeID:
		default:
			out = append(out, interval)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OwnerID != out[j].OwnerID {
			return out[i].OwnerID < out[j].OwnerID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func (s *memoryStore) CreateMeeting(_ context.Context, meeting Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[meeting.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.meetings[meeting.ID] = meeting
	return nil
}

func (s *memoryStore) CreateSeries(_ context.Context, series Series, occurrences []Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.series[series.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.series[series.ID] = series
	for _, m := range occurrences {
		s.meetings[m.ID] = m
	}
	return nil
}

func (s *memoryStore) GetMeeting(_ context.Context, id string) (Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return Meeting{}, persistence.ErrNotFound
	}
	return m, nil
}

func (s *memoryStore) UpdateMeeting(_ context.Context, meeting Meeting, expected MeetingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.meetings[meeting.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if s.beforeUpdate != nil {
		s.beforeUpdate(&stored)
	}
	if stored.Status != expected {
		return persistence.ErrStaleWrite
	}
	s.meetings[meeting.ID] = meeting
	return nil
}

func (s *memoryStore) CreateJobs(_ context.Context, jobs []Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createJobsCalls++
	s.jobs = append(s.jobs, jobs...)
	return nil
}

func (s *memoryStore) ListJobsForMeeting(_ context.Context, meetingID string) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Job
	for _, job := range s.jobs {
		if job.MeetingID == meetingID {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *memoryStore) CancelPendingForMeeting(_ context.Context, meetingID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i, job := range s.jobs {
		if job.MeetingID == meetingID && job.Status == notification.StatusPending {
			s.jobs[i].Status = notification.StatusCancelled
			s.jobs[i].UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) jobsWithStatus(meetingID string, status notification.Status) []Job {
	jobs, _ := s.ListJobsForMeeting(context.Background(), meetingID)
	var out []Job
	for _, job := range jobs {
		if job.Status == status {
			out = append(out, job)
		}
	}
	return out
}

// testNow is a Saturday; 2024-06-03 is the following Monday.
var testNow = time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)

func utcAt(day, hour int) time.Time {
	return time.Date(2024, time.June, day, hour, 0, 0, 0, time.UTC)
}

type services struct {
	store         *memoryStore
	clock         *time.Time
	profiles      *ProfileService
	availability  *AvailabilityService
	search        *SearchService
	notifications *NotificationService
	meetings      *MeetingService
	composer      *ReminderComposer
}

func newServices(t *testing.T) *services {
	t.Helper()

	store := newMemoryStore()
	zones := timezone.MustNewResolver(32)
	converter := datetime.NewConverter(zones)
	logger := logging.Discard()

	clock := testNow
	now := func() time.Time { return clock }
	var (
		idMu sync.Mutex
		seq  int
	)
	ids := func() string {
		idMu.Lock()
		defer idMu.Unlock()
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}

	availability := NewAvailabilityService(store, store, zones, ids, now, logger)
	notifications := NewNotificationService(store, store, store, converter, ids, now, logger)
	return &services{
		store:         store,
		clock:         &clock,
		profiles:      NewProfileService(store, zones, now, logger),
		availability:  availability,
		search:        NewSearchService(store, store, store, zones, now, logger),
		notifications: notifications,
		meetings:      NewMeetingService(store, availability, notifications, zones, converter, ids, now, logger),
		composer:      NewReminderComposer(store, store, converter),
	}
}

func (s *services) putProfile(userID, zone string, offsets ...notification.Offset) {
	if offsets == nil {
		offsets = DefaultNotificationOffsets
	}
	s.store.profiles[userID] = Profile{
		UserID:              userID,
		Timezone:            zone,
		WorkingHoursStart:   DefaultWorkingHoursStart,
		WorkingHoursEnd:     DefaultWorkingHoursEnd,
		NotificationOffsets: offsets,
		CreatedAt:           testNow,
		UpdatedAt:           testNow,
	}
}

func hours(n int) notification.Offset {
	return notification.Offset{Amount: n, Unit: notification.UnitHour}
}
