package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/carequeue/token-queue-service/internal/queue"
)

type RouterConfig struct {
	Service *queue.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Token allocation and locks
	r.Post("/tokens/allocate", allocateTokenHandler(cfg.Service))
	r.Get("/tokens/available", availableTokensHandler(cfg.Service))
	r.Post("/tokens/lock", acquireLockHandler(cfg.Service))
	r.Delete("/tokens/lock/{lockID}", releaseLockHandler(cfg.Service))

	// Bookings
	r.Post("/bookings", createBookingHandler(cfg.Service))
	r.Get("/bookings/{id}", getBookingHandler(cfg.Service))
	r.Patch("/bookings/{id}", rescheduleBookingHandler(cfg.Service))
	r.Post("/bookings/{id}/confirm", confirmBookingHandler(cfg.Service))
	r.Post("/bookings/{id}/cancel", cancelBookingHandler(cfg.Service))
	r.Post("/bookings/{id}/serve", serveBookingHandler(cfg.Service))
	r.Post("/bookings/{id}/complete", completeBookingHandler(cfg.Service))
	r.Post("/bookings/{id}/no-show", noShowBookingHandler(cfg.Service))

	// Live queue
	r.Get("/queue/status", queueStatusHandler(cfg.Service))
	r.Post("/queue/call", callTokenHandler(cfg.Service))

	// Doctor availability
	r.Post("/doctors/{doctorID}/break", startBreakHandler(cfg.Service))
	r.Delete("/doctors/{doctorID}/break", endBreakHandler(cfg.Service))
	r.Get("/doctors/{doctorID}/break", breakStatusHandler(cfg.Service))

	// Maintenance entry points for external schedulers
	r.Get("/cron/auto-end-breaks", autoEndBreaksHandler(cfg.Service))
	r.Get("/cron/expire-token-locks", expireTokenLocksHandler(cfg.Service))

	return r
}
