package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gusfragger/webot/internal/application"
)

type availabilityService interface {
	SetBusy(ctx context.Context, principal application.Principal, input application.IntervalInput) (application.Interval, error)
	SetAvailable(ctx context.Context, principal application.Principal, input application.IntervalInput) (application.Interval, error)
	MoveBusy(ctx context.Context, principal application.Principal, intervalID string, start, end time.Time) (application.Interval, error)
	RemoveInterval(ctx context.Context, principal application.Principal, intervalID string) error
	FindConflicts(ctx context.Context, userID string, start, end time.Time, excludeID string) ([]application.Interval, error)
	TeamSnapshot(ctx context.Context, userIDs []string, start, end time.Time) ([]application.Interval, error)
}

// AvailabilityHandler serves busy and available intervals.
type AvailabilityHandler struct {
	service   availabilityService
	responder responder
}

func NewAvailabilityHandler(service availabilityService, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{service: service, responder: newResponder(logger)}
}

type intervalRequest struct {
	Kind   string `json:"kind"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Reason string `json:"reason"`
}

func (h *AvailabilityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req intervalRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	var p fieldParser
	input := application.IntervalInput{
		Start:  p.instant("start", req.Start),
		End:    p.instant("end", req.End),
		Reason: req.Reason,
	}
	record := h.service.SetBusy
	switch application.IntervalKind(req.Kind) {
	case "", application.IntervalBusy:
	case application.IntervalAvailable:
		record = h.service.SetAvailable
	default:
		p.fail("kind", "must be busy or available")
	}
	if err := p.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	interval, err := record(r.Context(), principal, input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toIntervalDTO(interval))
}

func (h *AvailabilityHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req intervalRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	var p fieldParser
	start, end := p.instant("start", req.Start), p.instant("end", req.End)
	if err := p.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	interval, err := h.service.MoveBusy(r.Context(), principal, r.PathValue("id"), start, end)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toIntervalDTO(interval))
}

func (h *AvailabilityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.RemoveInterval(r.Context(), principal, r.PathValue("id")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type intervalsResponse struct {
	Intervals []intervalDTO `json:"intervals"`
}

// Conflicts lists the busy intervals of ?user= (the actor by default)
// overlapping [?start, ?end).
func (h *AvailabilityHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var p fieldParser
	start, end := p.instant("start", query.Get("start")), p.instant("end", query.Get("end"))
	if err := p.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	userID := query.Get("user")
	if userID == "" {
		principal, _ := PrincipalFromContext(r.Context())
		userID = principal.UserID
	}
	conflicts, err := h.service.FindConflicts(r.Context(), userID, start, end, query.Get("exclude"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, intervalsResponse{Intervals: toIntervalDTOs(conflicts)})
}

// Team lists every interval of ?users= (comma separated) in the window.
func (h *AvailabilityHandler) Team(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var p fieldParser
	start, end := p.instant("start", query.Get("start")), p.instant("end", query.Get("end"))
	if err := p.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	intervals, err := h.service.TeamSnapshot(r.Context(), parseCSV(query.Get("users")), start, end)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, intervalsResponse{Intervals: toIntervalDTOs(intervals)})
}
