package http

import (
	"context"
	"net/http"
)

// RouterConfig lists the handlers to mount. Nil handlers leave their routes
// unregistered.
type RouterConfig struct {
	Profiles     *ProfileHandler
	Availability *AvailabilityHandler
	Search       *SearchHandler
	Meetings     *MeetingHandler
	// Metrics is served at /metrics without the API middleware.
	Metrics http.Handler
	// Health answers /healthz without the API middleware.
	Health http.Handler
	// Middleware wraps API routes; the first entry is outermost.
	Middleware []func(http.Handler) http.Handler
	// Outer wraps every route, including /metrics and /healthz.
	Outer []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	api := http.NewServeMux()

	if cfg.Profiles != nil {
		api.HandleFunc("GET /timezones/validate", cfg.Profiles.ValidateZone)
		api.HandleFunc("GET /profiles/{id}", cfg.Profiles.Get)
		api.HandleFunc("PUT /profiles/{id}", cfg.Profiles.Update)
	}
	if cfg.Availability != nil {
		api.HandleFunc("POST /availability", cfg.Availability.Create)
		api.HandleFunc("GET /availability/conflicts", cfg.Availability.Conflicts)
		api.HandleFunc("GET /availability/team", cfg.Availability.Team)
		api.HandleFunc("PUT /availability/{id}", cfg.Availability.Move)
		api.HandleFunc("DELETE /availability/{id}", cfg.Availability.Delete)
	}
	if cfg.Search != nil {
		api.HandleFunc("POST /search", cfg.Search.Search)
		api.HandleFunc("GET /meetings/{id}/suggestions", cfg.Search.BetterTime)
	}
	if cfg.Meetings != nil {
		api.HandleFunc("POST /meetings", cfg.Meetings.Propose)
		api.HandleFunc("GET /meetings/{id}", cfg.Meetings.Get)
		api.HandleFunc("POST /meetings/{id}/confirm", cfg.Meetings.Confirm)
		api.HandleFunc("POST /meetings/{id}/cancel", cfg.Meetings.Cancel)
		api.HandleFunc("POST /meetings/{id}/reschedule", cfg.Meetings.Reschedule)
		api.HandleFunc("GET /meetings/{id}/reminders", cfg.Meetings.Reminders)
		api.HandleFunc("POST /series", cfg.Meetings.CreateSeries)
	}

	root := http.NewServeMux()
	root.Handle("/", chain(api, cfg.Middleware))
	if cfg.Metrics != nil {
		root.Handle("GET /metrics", cfg.Metrics)
	}
	if cfg.Health != nil {
		root.Handle("GET /healthz", cfg.Health)
	}
	return chain(root, cfg.Outer)
}

func chain(handler http.Handler, middleware []func(http.Handler) http.Handler) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		if middleware[i] != nil {
			handler = middleware[i](handler)
		}
	}
	return handler
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Healthz answers 200 while db responds to a ping and 503 otherwise. A nil
// db is always healthy.
func Healthz(db pinger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				handlerLogger(r.Context(), nil, "health", "ping").WarnContext(r.Context(), "storage ping failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("storage unavailable\n"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
}
