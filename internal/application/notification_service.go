package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gusfragger/webot/internal/notification"
	"github.com/gusfragger/webot/internal/timezone"
)

// NotificationService turns participant reminder preferences into persisted
// reminder jobs and keeps them in step with meeting changes.
type NotificationService struct {
	jobs        JobRepository
	meetings    MeetingRepository
	profiles    ProfileRepository
	converter   DateTimeConverter
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewNotificationService wires dependencies for reminder planning.
func NewNotificationService(jobs JobRepository, meetings MeetingRepository, profiles ProfileRepository, converter DateTimeConverter, idGenerator func() string, now func() time.Time, logger *slog.Logger) *NotificationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &NotificationService{
		jobs:        jobs,
		meetings:    meetings,
		profiles:    profiles,
		converter:   converter,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger).With("component", "notification_service"),
	}
}

// Schedule creates one pending job per participant and reminder offset whose
// fire time is still in the future. Participants without a profile get the
// default offsets. All jobs of one call are stored together.
func (s *NotificationService) Schedule(ctx context.Context, meeting Meeting, participantIDs []string) ([]Job, error) {
	logger := serviceLogger(ctx, s.logger, "notification", "schedule", "meeting_id", meeting.ID)

	ids := uniqueStrings(participantIDs)
	profiles, err := profilesByID(ctx, s.profiles, ids)
	if err != nil {
		logFailure(ctx, logger, "reminder planning failed", err)
		return nil, err
	}

	now := s.now().UTC()
	var jobs []Job
	for _, userID := range ids {
		zone := timezone.DefaultZone
		offsets := DefaultNotificationOffsets
		if profile, ok := profiles[userID]; ok {
			zone = profile.Timezone
			offsets = profile.NotificationOffsets
		}

		if s.converter != nil {
			if local, err := s.converter.FormatDisplay(meeting.Start, zone, ""); err == nil {
				logger.DebugContext(ctx, "planning reminders", slog.String("user_id", userID), slog.String("local_start", local))
			}
		}

		for _, offset := range offsets {
			fireAt := meeting.Start.Add(-offset.Duration()).UTC()
			if !fireAt.After(now) {
				continue
			}
			jobs = append(jobs, Job{
				ID:        s.idGenerator(),
				MeetingID: meeting.ID,
				UserID:    userID,
				FireAt:    fireAt,
				Offset:    offset,
				Status:    notification.StatusPending,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
	}

	if len(jobs) == 0 {
		logger.InfoContext(ctx, "no reminders due in the future")
		return []Job{}, nil
	}
	if err := s.jobs.CreateJobs(ctx, jobs); err != nil {
		logFailure(ctx, logger, "reminder planning failed", err)
		return nil, fmt.Errorf("store reminders: %w", mapRepoError(err))
	}
	logger.InfoContext(ctx, "reminders scheduled", slog.Int("jobs", len(jobs)))
	return jobs, nil
}

// Reschedule cancels the pending reminders of a meeting and plans new ones
// for newStart with the same participants. A missing meeting is ErrNotFound
// and a cancelled one is ErrInvalidTransition.
func (s *NotificationService) Reschedule(ctx context.Context, meetingID string, newStart time.Time) ([]Job, error) {
	logger := serviceLogger(ctx, s.logger, "notification", "reschedule", "meeting_id", meetingID)

	meeting, err := s.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		err = mapRepoError(err)
		logFailure(ctx, logger, "reminder reschedule failed", err)
		return nil, err
	}
	if meeting.Status == MeetingCancelled {
		err := fmt.Errorf("%w: meeting is cancelled", ErrInvalidTransition)
		logFailure(ctx, logger, "reminder reschedule refused", err)
		return nil, err
	}
	if _, err := s.CancelAll(ctx, meetingID); err != nil {
		return nil, err
	}
	meeting.Start = newStart.UTC()
	return s.Schedule(ctx, meeting, meeting.ParticipantIDs)
}

// CancelAll marks every pending reminder of the meeting cancelled. Rows are
// kept.
func (s *NotificationService) CancelAll(ctx context.Context, meetingID string) (int, error) {
	logger := serviceLogger(ctx, s.logger, "notification", "cancel_all", "meeting_id", meetingID)
	n, err := s.jobs.CancelPendingForMeeting(ctx, meetingID, s.now().UTC())
	if err != nil {
		logFailure(ctx, logger, "reminder cancellation failed", err)
		return 0, fmt.Errorf("cancel reminders: %w", err)
	}
	if n > 0 {
		logger.InfoContext(ctx, "reminders cancelled", slog.Int("jobs", n))
	}
	return n, nil
}

// Jobs lists every reminder of a meeting.
func (s *NotificationService) Jobs(ctx context.Context, meetingID string) ([]Job, error) {
	jobs, err := s.jobs.ListJobsForMeeting(ctx, meetingID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return jobs, nil
}
