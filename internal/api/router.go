package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/brightsmile/clinic-scheduling/internal/clinic"
)

type RouterConfig struct {
	Scheduler *clinic.Scheduler
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Env       string
	Version   string
	Logger    zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Appointment endpoints
	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Scheduler))
		r.Post("/with-patient", createWithPatientHandler(cfg.Scheduler))
		r.Get("/", listAppointmentsHandler(cfg.Scheduler))
		r.Get("/{id}", getAppointmentHandler(cfg.Scheduler))
		r.Patch("/{id}", updateAppointmentHandler(cfg.Scheduler))
		r.Patch("/{id}/status", updateStatusHandler(cfg.Scheduler))
		r.Delete("/{id}", deleteAppointmentHandler(cfg.Scheduler))
	})

	// Directory endpoints
	r.Route("/patients", func(r chi.Router) {
		r.Post("/", createPatientHandler(cfg.Scheduler))
		r.Get("/", listPatientsHandler(cfg.Scheduler))
		r.Get("/{id}", getPatientHandler(cfg.Scheduler))
	})
	r.Route("/doctors", func(r chi.Router) {
		r.Post("/", createDoctorHandler(cfg.Scheduler))
		r.Get("/", listDoctorsHandler(cfg.Scheduler))
		r.Get("/{id}", getDoctorHandler(cfg.Scheduler))
		r.Get("/{id}/working-hours", getWorkingHoursHandler(cfg.Scheduler))
		r.Put("/{id}/working-hours", putWorkingHoursHandler(cfg.Scheduler))
		r.Get("/{id}/slots", doctorSlotsHandler(cfg.Scheduler))
	})
	r.Route("/services", func(r chi.Router) {
		r.Post("/", createServiceHandler(cfg.Scheduler))
		r.Get("/", listServicesHandler(cfg.Scheduler))
		r.Get("/{id}", getServiceHandler(cfg.Scheduler))
	})

	r.Get("/settings", getSettingsHandler(cfg.Scheduler))
	r.Put("/settings", putSettingsHandler(cfg.Scheduler))

	return r
}
