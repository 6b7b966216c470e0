package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gusfragger/webot/internal/application"
)

type searchService interface {
	Search(ctx context.Context, params application.SearchParams) ([]application.Suggestion, error)
	SuggestBetterTime(ctx context.Context, meetingID string) ([]application.Suggestion, error)
}

// SearchHandler serves ranked meeting time suggestions.
type SearchHandler struct {
	service   searchService
	responder responder
}

func NewSearchHandler(service searchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{service: service, responder: newResponder(logger)}
}

type searchRequest struct {
	UserIDs          []string `json:"user_ids"`
	DurationMinutes  int      `json:"duration_minutes"`
	WindowStart      string   `json:"window_start"`
	WindowEnd        string   `json:"window_end"`
	WorkingHoursOnly bool     `json:"working_hours_only"`
	TopN             int      `json:"top_n"`
	Zone             string   `json:"zone"`
}

type suggestionsResponse struct {
	Suggestions []suggestionDTO `json:"suggestions"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	var p fieldParser
	params := application.SearchParams{
		UserIDs:          req.UserIDs,
		DurationMinutes:  req.DurationMinutes,
		WindowStart:      p.instant("window_start", req.WindowStart),
		WindowEnd:        p.instant("window_end", req.WindowEnd),
		WorkingHoursOnly: req.WorkingHoursOnly,
		TopN:             req.TopN,
		Zone:             req.Zone,
	}
	if err := p.err(); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	suggestions, err := h.service.Search(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, suggestionsResponse{Suggestions: toSuggestionDTOs(suggestions)})
}

func (h *SearchHandler) BetterTime(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.service.SuggestBetterTime(r.Context(), r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, suggestionsResponse{Suggestions: toSuggestionDTOs(suggestions)})
}
