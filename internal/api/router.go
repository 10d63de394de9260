package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/identity"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Identity   *identity.Service
	Sessions   identity.SessionStore
	Scheduling *scheduling.Service
	PgPool     Pinger
	Redis      *redis.Client
	Env        string
	Version    string

	// ReservePerMinute and ReserveBurst throttle POST /reservations per
	// client. Zero ReservePerMinute disables the limit.
	ReservePerMinute int
	ReserveBurst     int
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := &handlers{
		identity:   cfg.Identity,
		sessions:   cfg.Sessions,
		scheduling: cfg.Scheduling,
	}

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(cfg.Sessions))

		r.Post("/patients", h.register(identity.RolePatient))
		r.Post("/caregivers", h.register(identity.RoleCaregiver))
		r.Post("/sessions", h.login)
		r.Delete("/sessions", h.logout)

		r.Get("/schedule", h.searchSchedule)
		r.With(RateLimitMiddleware(cfg.ReservePerMinute, cfg.ReserveBurst)).Post("/reservations", h.reserve)
		r.Post("/availability", h.publishAvailability)
		r.Post("/vaccines/{name}/doses", h.addDoses)
		r.Get("/appointments", h.showAppointments)
	})

	return r
}
