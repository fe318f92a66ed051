package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/caremesh/clinic-scheduling/internal/identity"
	"github.com/caremesh/clinic-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Scheduling *scheduling.Service
	Identity   *identity.Service
	PgPool     *pgxpool.Pool
	Redis      *redis.Client
	Log        zerolog.Logger
	Env        string
	Version    string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	auth := NewAuthHandler(cfg.Identity, cfg.Log)
	r.Post("/auth/register", auth.Register)
	r.Post("/auth/login", auth.Login)

	h := NewHandler(cfg.Scheduling, cfg.Log)

	// Public doctor directory and availability
	r.Get("/doctors", h.ListDoctors)
	r.Get("/doctors/{id}/slots", h.DoctorSlots)

	// Patient-facing endpoints
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Identity))
		r.Post("/appointments", h.BookAppointment)
		r.Get("/appointments/me", h.MyAppointments)
		r.Get("/appointments/{id}", h.GetAppointment)
		r.Put("/appointments/{id}", h.UpdateAppointment)
		r.Patch("/appointments/{id}/cancel", h.CancelAppointment)
	})

	// Administrative endpoints
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Identity))
		r.Use(RequireRole(identity.RoleAdmin))
		r.Post("/admin/appointments/{id}/confirm", h.ConfirmAppointment)
		r.Post("/admin/doctors/{id}/slots/generate", h.GenerateSlots)
	})

	return r
}
