package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/gusfragger/webot/internal/notification"
	"github.com/gusfragger/webot/internal/timezone"
)

// ProfileService owns user preferences: zone, working hours and reminder
// offsets.
type ProfileService struct {
	profiles ProfileRepository
	zones    ZoneResolver
	now      func() time.Time
	logger   *slog.Logger
}

// NewProfileService wires dependencies for profile operations.
func NewProfileService(profiles ProfileRepository, zones ZoneResolver, now func() time.Time, logger *slog.Logger) *ProfileService {
	if now == nil {
		now = time.Now
	}
	return &ProfileService{
		profiles: profiles,
		zones:    zones,
		now:      now,
		logger:   defaultLogger(logger).With("component", "profile_service"),
	}
}

// ProfileUpdate lists the preferences to change; nil fields are kept.
type ProfileUpdate struct {
	Timezone            *string
	WorkingHoursStart   *int
	WorkingHoursEnd     *int
	NotificationOffsets []string
}

// Get returns the profile of userID, creating it with defaults on first use.
func (s *ProfileService) Get(ctx context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, fieldError("user_id", "user id is required")
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !isNotFoundError(err) {
		return Profile{}, err
	}

	created := s.now().UTC()
	profile = Profile{
		UserID:              userID,
		Timezone:            timezone.DefaultZone,
		WorkingHoursStart:   DefaultWorkingHoursStart,
		WorkingHoursEnd:     DefaultWorkingHoursEnd,
		NotificationOffsets: slices.Clone(DefaultNotificationOffsets),
		CreatedAt:           created,
		UpdatedAt:           created,
	}
	if err := s.profiles.SaveProfile(ctx, profile); err != nil {
		return Profile{}, fmt.Errorf("create profile: %w", err)
	}
	serviceLogger(ctx, s.logger, "profile", "create", "user_id", userID).InfoContext(ctx, "profile created")
	return profile, nil
}

// Update applies update to the profile of userID. Only the owner may change
// a profile.
func (s *ProfileService) Update(ctx context.Context, principal Principal, userID string, update ProfileUpdate) (Profile, error) {
	logger := serviceLogger(ctx, s.logger, "profile", "update", "user_id", userID)
	if principal.UserID == "" || principal.UserID != userID {
		logFailure(ctx, logger, "profile update rejected", ErrUnauthorized)
		return Profile{}, ErrUnauthorized
	}

	profile, err := s.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	vErr := &ValidationError{}
	if update.Timezone != nil {
		zone, err := s.zones.Normalize(*update.Timezone)
		if err != nil {
			vErr.add("timezone", fmt.Sprintf("%q is not a recognised timezone", *update.Timezone))
		} else {
			profile.Timezone = zone
		}
	}
	if update.WorkingHoursStart != nil {
		profile.WorkingHoursStart = *update.WorkingHoursStart
	}
	if update.WorkingHoursEnd != nil {
		profile.WorkingHoursEnd = *update.WorkingHoursEnd
	}
	vErr.merge(validateWorkingHours(profile.WorkingHoursStart, profile.WorkingHoursEnd))
	if update.NotificationOffsets != nil {
		offsets, err := notification.ParseOffsets(update.NotificationOffsets)
		if err != nil {
			vErr.add("notification_offsets", err.Error())
		} else {
			profile.NotificationOffsets = offsets
		}
	}
	if vErr.HasErrors() {
		logFailure(ctx, logger, "profile update rejected", vErr)
		return Profile{}, vErr
	}

	profile.UpdatedAt = s.now().UTC()
	if err := s.profiles.SaveProfile(ctx, profile); err != nil {
		logFailure(ctx, logger, "profile update failed", err)
		return Profile{}, fmt.Errorf("save profile: %w", err)
	}
	logger.InfoContext(ctx, "profile updated",
		slog.String("timezone", profile.Timezone),
		slog.Int("working_hours_start", profile.WorkingHoursStart),
		slog.Int("working_hours_end", profile.WorkingHoursEnd),
	)
	return profile, nil
}

// SetTimezone changes only the zone.
func (s *ProfileService) SetTimezone(ctx context.Context, principal Principal, zone string) (Profile, error) {
	return s.Update(ctx, principal, principal.UserID, ProfileUpdate{Timezone: &zone})
}

// SetWorkingHours changes only the working-hour window.
func (s *ProfileService) SetWorkingHours(ctx context.Context, principal Principal, start, end int) (Profile, error) {
	return s.Update(ctx, principal, principal.UserID, ProfileUpdate{WorkingHoursStart: &start, WorkingHoursEnd: &end})
}

// SetNotificationOffsets replaces the reminder offsets. An empty list turns
// reminders off.
func (s *ProfileService) SetNotificationOffsets(ctx context.Context, principal Principal, tokens []string) (Profile, error) {
	if tokens == nil {
		tokens = []string{}
	}
	return s.Update(ctx, principal, principal.UserID, ProfileUpdate{NotificationOffsets: tokens})
}

func validateWorkingHours(start, end int) *ValidationError {
	vErr := &ValidationError{}
	if start < 0 || start > 23 {
		vErr.add("working_hours_start", "must be between 0 and 23")
	}
	if end < 0 || end > 23 {
		vErr.add("working_hours_end", "must be between 0 and 23")
	}
	if !vErr.HasErrors() && start >= end {
		vErr.add("working_hours", "start must be before end")
	}
	return vErr
}

// profilesByID loads the stored profiles of ids. Users without a stored
// profile are absent from the map.
func profilesByID(ctx context.Context, repo ProfileRepository, ids []string) (map[string]Profile, error) {
	profiles, err := repo.ListProfiles(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	out := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		out[p.UserID] = p
	}
	return out, nil
}
