package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gusfragger/webot/internal/application"
)

type meetingService interface {
	Propose(ctx context.Context, principal application.Principal, input application.MeetingInput) (application.Meeting, []application.ConflictWarning, error)
	Get(ctx context.Context, meetingID string) (application.Meeting, error)
	Confirm(ctx context.Context, principal application.Principal, meetingID string) (application.Meeting, []application.Job, error)
	Cancel(ctx context.Context, principal application.Principal, meetingID string) (application.Meeting, error)
	Reschedule(ctx context.Context, principal application.Principal, meetingID string, newStart time.Time) (application.Meeting, []application.Job, error)
	CreateSeries(ctx context.Context, principal application.Principal, input application.SeriesInput) (application.Series, []application.Meeting, error)
}

type reminderLister interface {
	Jobs(ctx context.Context, meetingID string) ([]application.Job, error)
}

// MeetingHandler serves the meeting lifecycle and recurring series.
type MeetingHandler struct {
	service   meetingService
	reminders reminderLister
	logger    *slog.Logger
	responder responder
}

func NewMeetingHandler(service meetingService, reminders reminderLister, logger *slog.Logger) *MeetingHandler {
	return &MeetingHandler{service: service, reminders: reminders, logger: logger, responder: newResponder(logger)}
}

// meetingRequest accepts either an RFC 3339 start or a local date and time
// read in zone.
type meetingRequest struct {
	Title           string   `json:"title"`
	Start           string   `json:"start"`
	Date            string   `json:"date"`
	Time            string   `json:"time"`
	Zone            string   `json:"zone"`
	DurationMinutes int      `json:"duration_minutes"`
	ParticipantIDs  []string `json:"participant_ids"`
}

type meetingResponse struct {
	Meeting   meetingDTO    `json:"meeting"`
	Warnings  []warningDTO  `json:"warnings,omitempty"`
	Reminders []reminderDTO `json:"reminders,omitempty"`
}

func (h *MeetingHandler) Propose(w http.ResponseWriter, r *http.Request) {
	var req meetingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	var p fieldParser
	start := p.instant("start", req.Start)
	if err := p.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	meeting, warnings, err := h.service.Propose(r.Context(), principal, application.MeetingInput{
		Title:           req.Title,
		Start:           start,
		Date:            req.Date,
		Time:            req.Time,
		Zone:            req.Zone,
		DurationMinutes: req.DurationMinutes,
		ParticipantIDs:  req.ParticipantIDs,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if len(warnings) > 0 {
		handlerLogger(r.Context(), h.logger, "meetings", "propose", "meeting_id", meeting.ID).
			InfoContext(r.Context(), "meeting proposed over busy participants", "warnings", len(warnings))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, meetingResponse{
		Meeting:  toMeetingDTO(meeting),
		Warnings: toWarningDTOs(warnings),
	})
}

func (h *MeetingHandler) Get(w http.ResponseWriter, r *http.Request) {
	meeting, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, meetingResponse{Meeting: toMeetingDTO(meeting)})
}

func (h *MeetingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	meeting, jobs, err := h.service.Confirm(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, meetingResponse{Meeting: toMeetingDTO(meeting), Reminders: toReminderDTOs(jobs)})
}

func (h *MeetingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	meeting, err := h.service.Cancel(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, meetingResponse{Meeting: toMeetingDTO(meeting)})
}

type rescheduleRequest struct {
	Start string `json:"start"`
}

func (h *MeetingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	var p fieldParser
	start := p.instant("start", req.Start)
	if err := p.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	meeting, jobs, err := h.service.Reschedule(r.Context(), principal, r.PathValue("id"), start)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, meetingResponse{Meeting: toMeetingDTO(meeting), Reminders: toReminderDTOs(jobs)})
}

type remindersResponse struct {
	Reminders []reminderDTO `json:"reminders"`
}

func (h *MeetingHandler) Reminders(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.service.Get(r.Context(), id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	jobs, err := h.reminders.Jobs(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, remindersResponse{Reminders: toReminderDTOs(jobs)})
}

type seriesRequest struct {
	Title           string   `json:"title"`
	Pattern         string   `json:"pattern"`
	Interval        int      `json:"interval"`
	First           string   `json:"first"`
	Until           string   `json:"until"`
	MaxOccurrences  int      `json:"max_occurrences"`
	Zone            string   `json:"zone"`
	DurationMinutes int      `json:"duration_minutes"`
	ParticipantIDs  []string `json:"participant_ids"`
}

type seriesResponse struct {
	ID          string       `json:"id"`
	Pattern     string       `json:"pattern"`
	Interval    int          `json:"interval"`
	Occurrences []meetingDTO `json:"occurrences"`
}

func (h *MeetingHandler) CreateSeries(w http.ResponseWriter, r *http.Request) {
	var req seriesRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	var p fieldParser
	input := application.SeriesInput{
		Title:           req.Title,
		Pattern:         req.Pattern,
		Interval:        req.Interval,
		First:           p.instant("first", req.First),
		Until:           p.optionalInstant("until", req.Until),
		MaxOccurrences:  req.MaxOccurrences,
		Zone:            req.Zone,
		DurationMinutes: req.DurationMinutes,
		ParticipantIDs:  req.ParticipantIDs,
	}
	if err := p.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	series, occurrences, err := h.service.CreateSeries(r.Context(), principal, input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := seriesResponse{
		ID:          series.ID,
		Pattern:     string(series.Pattern),
		Interval:    series.Interval,
		Occurrences: make([]meetingDTO, 0, len(occurrences)),
	}
	for _, m := range occurrences {
		resp.Occurrences = append(resp.Occurrences, toMeetingDTO(m))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, resp)
}
