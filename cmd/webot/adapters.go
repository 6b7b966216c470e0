package main

import (
	"context"
	"time"

	"github.com/gusfragger/webot/internal/application"
	"github.com/gusfragger/webot/internal/notification"
	"github.com/gusfragger/webot/internal/persistence"
)

type profileRepositoryAdapter struct {
	repo persistence.ProfileRepository
}

func newProfileRepositoryAdapter(repo persistence.ProfileRepository) *profileRepositoryAdapter {
	return &profileRepositoryAdapter{repo: repo}
}

func (a *profileRepositoryAdapter) GetProfile(ctx context.Context, userID string) (application.Profile, error) {
	stored, err := a.repo.GetProfile(ctx, userID)
	if err != nil {
		return application.Profile{}, err
	}
	return toApplicationProfile(stored), nil
}

func (a *profileRepositoryAdapter) ListProfiles(ctx context.Context, userIDs []string) ([]application.Profile, error) {
	models, err := a.repo.ListProfiles(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	profiles := make([]application.Profile, 0, len(models))
	for _, model := range models {
		profiles = append(profiles, toApplicationProfile(model))
	}
	return profiles, nil
}

func (a *profileRepositoryAdapter) SaveProfile(ctx context.Context, profile application.Profile) error {
	return a.repo.UpsertProfile(ctx, persistence.UserProfile{
		UserID:              profile.UserID,
		Timezone:            profile.Timezone,
		WorkingHoursStart:   profile.WorkingHoursStart,
		WorkingHoursEnd:     profile.WorkingHoursEnd,
		NotificationOffsets: notification.Strings(profile.NotificationOffsets),
		CreatedAt:           profile.CreatedAt,
		UpdatedAt:           profile.UpdatedAt,
	})
}

type intervalRepositoryAdapter struct {
	repo persistence.AvailabilityRepository
}

func newIntervalRepositoryAdapter(repo persistence.AvailabilityRepository) *intervalRepositoryAdapter {
	return &intervalRepositoryAdapter{repo: repo}
}

func (a *intervalRepositoryAdapter) InsertInterval(ctx context.Context, interval application.Interval) (bool, error) {
	return a.repo.InsertInterval(ctx, toPersistenceInterval(interval))
}

func (a *intervalRepositoryAdapter) MoveInterval(ctx context.Context, interval application.Interval) (bool, error) {
	return a.repo.MoveInterval(ctx, toPersistenceInterval(interval))
}

func (a *intervalRepositoryAdapter) GetInterval(ctx context.Context, id string) (application.Interval, error) {
	stored, err := a.repo.GetInterval(ctx, id)
	if err != nil {
		return application.Interval{}, err
	}
	return toApplicationInterval(stored), nil
}

func (a *intervalRepositoryAdapter) DeleteInterval(ctx context.Context, id string) error {
	return a.repo.DeleteInterval(ctx, id)
}

func (a *intervalRepositoryAdapter) ListIntervals(ctx context.Context, query application.IntervalQuery) ([]application.Interval, error) {
	models, err := a.repo.ListIntervals(ctx, persistence.IntervalFilter{
		OwnerIDs:  append([]string(nil), query.OwnerIDs...),
		Kind:      string(query.Kind),
		Start:     query.Start,
		End:       query.End,
		ExcludeID: query.ExcludeID,
	})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	intervals := make([]application.Interval, 0, len(models))
	for _, model := range models {
		intervals = append(intervals, toApplicationInterval(model))
	}
	return intervals, nil
}

type meetingRepositoryAdapter struct {
	repo persistence.MeetingRepository
}

func newMeetingRepositoryAdapter(repo persistence.MeetingRepository) *meetingRepositoryAdapter {
	return &meetingRepositoryAdapter{repo: repo}
}

func (a *meetingRepositoryAdapter) CreateMeeting(ctx context.Context, meeting application.Meeting) error {
	return a.repo.CreateMeeting(ctx, toPersistenceMeeting(meeting))
}

func (a *meetingRepositoryAdapter) CreateSeries(ctx context.Context, series application.Series, occurrences []application.Meeting) error {
	models := make([]persistence.Meeting, 0, len(occurrences))
	for _, occurrence := range occurrences {
		models = append(models, toPersistenceMeeting(occurrence))
	}
	return a.repo.CreateSeries(ctx, persistence.RecurrenceSeries{
		ID:              series.ID,
		ProposerID:      series.ProposerID,
		Pattern:         string(series.Pattern),
		Interval:        series.Interval,
		FirstOccurrence: series.FirstOccurrence,
		Until:           cloneTime(series.Until),
		MaxOccurrences:  series.MaxOccurrences,
		CreatedAt:       series.CreatedAt,
	}, models)
}

func (a *meetingRepositoryAdapter) GetMeeting(ctx context.Context, id string) (application.Meeting, error) {
	stored, err := a.repo.GetMeeting(ctx, id)
	if err != nil {
		return application.Meeting{}, err
	}
	return toApplicationMeeting(stored), nil
}

func (a *meetingRepositoryAdapter) UpdateMeeting(ctx context.Context, meeting application.Meeting, expected application.MeetingStatus) error {
	return a.repo.UpdateMeeting(ctx, toPersistenceMeeting(meeting), string(expected))
}

type jobRepositoryAdapter struct {
	repo persistence.NotificationJobRepository
}

func newJobRepositoryAdapter(repo persistence.NotificationJobRepository) *jobRepositoryAdapter {
	return &jobRepositoryAdapter{repo: repo}
}

func (a *jobRepositoryAdapter) CreateJobs(ctx context.Context, jobs []application.Job) error {
	models := make([]persistence.NotificationJob, 0, len(jobs))
	for _, job := range jobs {
		var lastError *string
		if job.LastError != "" {
			lastError = &job.LastError
		}
		models = append(models, persistence.NotificationJob{
			ID:          job.ID,
			MeetingID:   job.MeetingID,
			UserID:      job.UserID,
			FireAt:      job.FireAt,
			OffsetToken: job.Offset.String(),
			Status:      string(job.Status),
			LastError:   lastError,
			CreatedAt:   job.CreatedAt,
			UpdatedAt:   job.UpdatedAt,
		})
	}
	return a.repo.CreateJobs(ctx, models)
}

func (a *jobRepositoryAdapter) ListJobsForMeeting(ctx context.Context, meetingID string) ([]application.Job, error) {
	models, err := a.repo.ListJobsForMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	jobs := make([]application.Job, 0, len(models))
	for _, model := range models {
		jobs = append(jobs, toApplicationJob(model))
	}
	return jobs, nil
}

func (a *jobRepositoryAdapter) CancelPendingForMeeting(ctx context.Context, meetingID string, at time.Time) (int, error) {
	return a.repo.CancelPendingForMeeting(ctx, meetingID, at)
}

// reminderStoreAdapter is the dispatcher's view of the job table.
type reminderStoreAdapter struct {
	repo persistence.NotificationJobRepository
}

func newReminderStoreAdapter(repo persistence.NotificationJobRepository) *reminderStoreAdapter {
	return &reminderStoreAdapter{repo: repo}
}

func (a *reminderStoreAdapter) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]notification.Job, error) {
	models, err := a.repo.ClaimDue(ctx, now, limit, lease)
	if err != nil {
		return nil, err
	}
	jobs := make([]notification.Job, 0, len(models))
	for _, model := range models {
		offset, _ := notification.ParseOffset(model.OffsetToken)
		jobs = append(jobs, notification.Job{
			ID:        model.ID,
			MeetingID: model.MeetingID,
			UserID:    model.UserID,
			FireAt:    model.FireAt,
			Offset:    offset,
		})
	}
	return jobs, nil
}

func (a *reminderStoreAdapter) Complete(ctx context.Context, id string, status notification.Status, lastError string, at time.Time) (bool, error) {
	var reason *string
	if lastError != "" {
		reason = &lastError
	}
	return a.repo.CompleteJob(ctx, id, string(status), reason, at)
}

func (a *reminderStoreAdapter) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return a.repo.PurgeTerminalBefore(ctx, cutoff)
}

func toApplicationProfile(model persistence.UserProfile) application.Profile {
	offsets, err := notification.ParseOffsets(model.NotificationOffsets)
	if err != nil {
		offsets = append([]notification.Offset(nil), application.DefaultNotificationOffsets...)
	}
	return application.Profile{
		UserID:              model.UserID,
		Timezone:            model.Timezone,
		WorkingHoursStart:   model.WorkingHoursStart,
		WorkingHoursEnd:     model.WorkingHoursEnd,
		NotificationOffsets: offsets,
		CreatedAt:           model.CreatedAt,
		UpdatedAt:           model.UpdatedAt,
	}
}

func toApplicationInterval(model persistence.AvailabilityInterval) application.Interval {
	return application.Interval{
		ID:             model.ID,
		OwnerID:        model.OwnerID,
		Start:          model.Start,
		End:            model.End,
		Kind:           application.IntervalKind(model.Kind),
		Reason:         derefString(model.Reason),
		RecurrenceRule: derefString(model.RecurrenceRule),
		CreatedAt:      model.CreatedAt,
	}
}

func toPersistenceInterval(interval application.Interval) persistence.AvailabilityInterval {
	return persistence.AvailabilityInterval{
		ID:             interval.ID,
		OwnerID:        interval.OwnerID,
		Start:          interval.Start,
		End:            interval.End,
		Kind:           string(interval.Kind),
		Reason:         optionalString(interval.Reason),
		RecurrenceRule: optionalString(interval.RecurrenceRule),
		CreatedAt:      interval.CreatedAt,
	}
}

func toApplicationMeeting(model persistence.Meeting) application.Meeting {
	return application.Meeting{
		ID:              model.ID,
		ProposerID:      model.ProposerID,
		Title:           model.Title,
		Start:           model.Start,
		DurationMinutes: model.DurationMinutes,
		DisplayTimezone: model.DisplayTimezone,
		Status:          application.MeetingStatus(model.Status),
		SeriesID:        derefString(model.SeriesID),
		ParticipantIDs:  append([]string(nil), model.Participants...),
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

func toPersistenceMeeting(meeting application.Meeting) persistence.Meeting {
	return persistence.Meeting{
		ID:              meeting.ID,
		ProposerID:      meeting.ProposerID,
		Title:           meeting.Title,
		Start:           meeting.Start,
		DurationMinutes: meeting.DurationMinutes,
		DisplayTimezone: meeting.DisplayTimezone,
		Status:          string(meeting.Status),
		SeriesID:        optionalString(meeting.SeriesID),
		Participants:    append([]string(nil), meeting.ParticipantIDs...),
		CreatedAt:       meeting.CreatedAt,
		UpdatedAt:       meeting.UpdatedAt,
	}
}

func toApplicationJob(model persistence.NotificationJob) application.Job {
	offset, _ := notification.ParseOffset(model.OffsetToken)
	return application.Job{
		ID:        model.ID,
		MeetingID: model.MeetingID,
		UserID:    model.UserID,
		FireAt:    model.FireAt,
		Offset:    offset,
		Status:    notification.Status(model.Status),
		LastError: derefString(model.LastError),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
