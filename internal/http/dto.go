package http

import (
	"strings"
	"time"

	"github.com/gusfragger/webot/internal/application"
	"github.com/gusfragger/webot/internal/notification"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// fieldParser collects per-field parse failures of request values so they
// are reported together with service side validation.
type fieldParser struct {
	errs map[string]string
}

// instant parses an RFC 3339 value. Empty values are left to the service to
// reject as missing.
func (p *fieldParser) instant(field, value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		p.fail(field, "must be an RFC 3339 timestamp")
		return time.Time{}
	}
	return t.UTC()
}

func (p *fieldParser) optionalInstant(field, value string) *time.Time {
	t := p.instant(field, value)
	if t.IsZero() {
		return nil
	}
	return &t
}

func (p *fieldParser) fail(field, message string) {
	if p.errs == nil {
		p.errs = make(map[string]string)
	}
	p.errs[field] = message
}

func (p *fieldParser) err() error {
	if len(p.errs) == 0 {
		return nil
	}
	return &application.ValidationError{FieldErrors: p.errs}
}

func parseCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type intervalDTO struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Kind      string `json:"kind"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

func toIntervalDTO(interval application.Interval) intervalDTO {
	return intervalDTO{
		ID:        interval.ID,
		OwnerID:   interval.OwnerID,
		Kind:      string(interval.Kind),
		Start:     formatTime(interval.Start),
		End:       formatTime(interval.End),
		Reason:    interval.Reason,
		CreatedAt: formatTime(interval.CreatedAt),
	}
}

func toIntervalDTOs(intervals []application.Interval) []intervalDTO {
	out := make([]intervalDTO, 0, len(intervals))
	for _, interval := range intervals {
		out = append(out, toIntervalDTO(interval))
	}
	return out
}

type meetingDTO struct {
	ID              string   `json:"id"`
	ProposerID      string   `json:"proposer_id"`
	Title           string   `json:"title"`
	Start           string   `json:"start"`
	End             string   `json:"end"`
	DurationMinutes int      `json:"duration_minutes"`
	DisplayTimezone string   `json:"display_timezone"`
	Status          string   `json:"status"`
	SeriesID        string   `json:"series_id,omitempty"`
	ParticipantIDs  []string `json:"participant_ids"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

func toMeetingDTO(m application.Meeting) meetingDTO {
	return meetingDTO{
		ID:              m.ID,
		ProposerID:      m.ProposerID,
		Title:           m.Title,
		Start:           formatTime(m.Start),
		End:             formatTime(m.End()),
		DurationMinutes: m.DurationMinutes,
		DisplayTimezone: m.DisplayTimezone,
		Status:          string(m.Status),
		SeriesID:        m.SeriesID,
		ParticipantIDs:  append([]string{}, m.ParticipantIDs...),
		CreatedAt:       formatTime(m.CreatedAt),
		UpdatedAt:       formatTime(m.UpdatedAt),
	}
}

type warningDTO struct {
	ParticipantID string `json:"participant_id"`
	IntervalID    string `json:"interval_id"`
	Start         string `json:"start"`
	End           string `json:"end"`
}

func toWarningDTOs(warnings []application.ConflictWarning) []warningDTO {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]warningDTO, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, warningDTO{
			ParticipantID: w.ParticipantID,
			IntervalID:    w.IntervalID,
			Start:         formatTime(w.Start),
			End:           formatTime(w.End),
		})
	}
	return out
}

type reminderDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	FireAt    string `json:"fire_at"`
	Offset    string `json:"offset"`
	Status    string `json:"status"`
	LastError string `json:"last_error,omitempty"`
}

func toReminderDTOs(jobs []application.Job) []reminderDTO {
	out := make([]reminderDTO, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, reminderDTO{
			ID:        job.ID,
			UserID:    job.UserID,
			FireAt:    formatTime(job.FireAt),
			Offset:    job.Offset.String(),
			Status:    string(job.Status),
			LastError: job.LastError,
		})
	}
	return out
}

type suggestionDTO struct {
	Start            string   `json:"start"`
	End              string   `json:"end"`
	Score            float64  `json:"score"`
	AvailableCount   int      `json:"available_count"`
	TotalUsers       int      `json:"total_users"`
	AvailableUserIDs []string `json:"available_user_ids"`
	BusyUserIDs      []string `json:"busy_user_ids"`
}

func toSuggestionDTOs(suggestions []application.Suggestion) []suggestionDTO {
	out := make([]suggestionDTO, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, suggestionDTO{
			Start:            formatTime(s.Start),
			End:              formatTime(s.End),
			Score:            s.Score,
			AvailableCount:   s.AvailableCount,
			TotalUsers:       s.TotalUsers,
			AvailableUserIDs: append([]string{}, s.AvailableUserIDs...),
			BusyUserIDs:      append([]string{}, s.BusyUserIDs...),
		})
	}
	return out
}

type profileDTO struct {
	UserID              string                `json:"user_id"`
	Timezone            string                `json:"timezone"`
	WorkingHoursStart   int                   `json:"working_hours_start"`
	WorkingHoursEnd     int                   `json:"working_hours_end"`
	NotificationOffsets []notification.Offset `json:"notification_offsets"`
	UpdatedAt           string                `json:"updated_at"`
}

func toProfileDTO(p application.Profile) profileDTO {
	offsets := p.NotificationOffsets
	if offsets == nil {
		offsets = []notification.Offset{}
	}
	return profileDTO{
		UserID:              p.UserID,
		Timezone:            p.Timezone,
		WorkingHoursStart:   p.WorkingHoursStart,
		WorkingHoursEnd:     p.WorkingHoursEnd,
		NotificationOffsets: offsets,
		UpdatedAt:           formatTime(p.UpdatedAt),
	}
}
