package application

import (
	"context"
	"fmt"

	"github.com/gusfragger/webot/internal/notification"
	"github.com/gusfragger/webot/internal/timezone"
)

// ReminderComposer renders reminder text in the recipient's zone. It
// implements notification.Composer.
type ReminderComposer struct {
	meetings  MeetingRepository
	profiles  ProfileRepository
	converter DateTimeConverter
}

// NewReminderComposer wires a composer.
func NewReminderComposer(meetings MeetingRepository, profiles ProfileRepository, converter DateTimeConverter) *ReminderComposer {
	return &ReminderComposer{meetings: meetings, profiles: profiles, converter: converter}
}

// Compose returns notification.ErrMeetingCancelled for meetings that were
// called off after the job was planned.
func (c *ReminderComposer) Compose(ctx context.Context, job notification.Job) (string, error) {
	meeting, err := c.meetings.GetMeeting(ctx, job.MeetingID)
	if err != nil {
		return "", fmt.Errorf("load meeting %s: %w", job.MeetingID, mapRepoError(err))
	}
	if meeting.Status == MeetingCancelled {
		return "", notification.ErrMeetingCancelled
	}

	zone := timezone.DefaultZone
	if profile, err := c.profiles.GetProfile(ctx, job.UserID); err == nil {
		zone = profile.Timezone
	}
	when, err := c.converter.FormatDisplay(meeting.Start, zone, "")
	if err != nil {
		when, err = c.converter.FormatDisplay(meeting.Start, timezone.DefaultZone, "")
		if err != nil {
			return "", err
		}
	}

	title := meeting.Title
	if title == "" {
		title = "Meeting"
	}
	return fmt.Sprintf("Reminder: %q starts in %s (%s, %d min).", title, job.Offset, when, meeting.DurationMinutes), nil
}
