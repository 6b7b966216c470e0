package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gusfragger/webot/internal/application"
	"github.com/gusfragger/webot/internal/timezone"
)

type profileService interface {
	Get(ctx context.Context, userID string) (application.Profile, error)
	Update(ctx context.Context, principal application.Principal, userID string, update application.ProfileUpdate) (application.Profile, error)
}

type zoneValidator interface {
	Validate(input string) timezone.Validation
}

// ProfileHandler serves user preferences and zone validation.
type ProfileHandler struct {
	service   profileService
	zones     zoneValidator
	logger    *slog.Logger
	responder responder
}

func NewProfileHandler(service profileService, zones zoneValidator, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{service: service, zones: zones, logger: logger, responder: newResponder(logger)}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toProfileDTO(profile))
}

type profileRequest struct {
	Timezone            *string  `json:"timezone"`
	WorkingHoursStart   *int     `json:"working_hours_start"`
	WorkingHoursEnd     *int     `json:"working_hours_end"`
	NotificationOffsets []string `json:"notification_offsets"`
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	profile, err := h.service.Update(r.Context(), principal, r.PathValue("id"), application.ProfileUpdate{
		Timezone:            req.Timezone,
		WorkingHoursStart:   req.WorkingHoursStart,
		WorkingHoursEnd:     req.WorkingHoursEnd,
		NotificationOffsets: req.NotificationOffsets,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toProfileDTO(profile))
}

type zoneValidationResponse struct {
	OK         bool   `json:"ok"`
	Normalized string `json:"normalized,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ValidateZone always answers 200; the verdict is in the body.
func (h *ProfileHandler) ValidateZone(w http.ResponseWriter, r *http.Request) {
	input := r.URL.Query().Get("zone")
	result := h.zones.Validate(input)
	if !result.OK {
		handlerLogger(r.Context(), h.logger, "profiles", "validate_zone").
			DebugContext(r.Context(), "zone rejected", "input", input)
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, zoneValidationResponse{
		OK:         result.OK,
		Normalized: result.Normalized,
		Message:    result.Message,
	})
}
