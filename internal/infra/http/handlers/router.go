package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xavierca1/leadsync/internal/infra/http/middleware"
)

type RouterConfig struct {
	AdminKey    string
	CORSOrigins []string
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable it only behind a proxy that overwrites those headers.
	TrustProxy bool
	Leads       *LeadHandler
	Tokens      *TokenHandler
	Health      *HealthHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", middleware.AdminKeyHeader},
		MaxAge:         300,
	}))

	r.Get("/health", cfg.Health.Handle)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/leads", cfg.Leads.CaptureLead)
	// Zoho redirects the operator's browser here, so it cannot carry the admin key.
	r.Get("/oauth/callback", cfg.Tokens.Callback)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminKey(cfg.AdminKey))

		r.Get("/leads", cfg.Leads.ListLeads)
		r.Get("/leads/{id}", cfg.Leads.GetLead)
		r.Post("/leads/{id}/sync", cfg.Leads.SyncLead)
		r.Post("/leads/process", cfg.Leads.ProcessPending)
		r.Post("/leads/requeue-failed", cfg.Leads.RequeueFailed)

		r.Get("/oauth/token/status", cfg.Tokens.Status)
		r.Post("/oauth/token/refresh", cfg.Tokens.Refresh)
		r.Delete("/oauth/token", cfg.Tokens.Clear)
		r.Get("/oauth/authorize", cfg.Tokens.Authorize)
	})

	return r
}
