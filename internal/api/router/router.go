package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/otakudescriptor/api/internal/api/handlers"
	"github.com/otakudescriptor/api/internal/api/middleware"
	"github.com/otakudescriptor/api/internal/config"
	"github.com/otakudescriptor/api/internal/pkg/logger"
	"github.com/otakudescriptor/api/internal/pkg/metrics"
)

type Handlers struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	Payment *handlers.PaymentHandler
}

func New(cfg *config.Config, log *logger.Logger, h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.DefaultCORS(cfg.Server.FrontendURL))
	r.Use(middleware.RateLimit(50, 100)) // 50 req/sec, burst of 100
	r.Use(metrics.Middleware)

	// Health checks and metrics
	r.Get("/healthz", h.Health.Healthz)
	r.Get("/readyz", h.Health.Readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Auth endpoints
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.Auth.Register)
		r.Post("/register-password", h.Auth.RegisterPassword)
		r.Post("/login-password", h.Auth.LoginPassword)
		r.Get("/verify-email", h.Auth.VerifyEmail)
		r.Get("/status", h.Auth.Status)
		r.Get("/anonymous-status", h.Auth.AnonymousStatus)
	})

	// Payment endpoints
	r.Route("/api/payment", func(r chi.Router) {
		r.Post("/create-order", h.Payment.CreateOrder)
		r.Post("/capture-order", h.Payment.CaptureOrder)
	})

	return r
}
