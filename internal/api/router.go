package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterConfig holds the dependencies of the HTTP API.
type RouterConfig struct {
	Sender    Sender
	Messages  MessageReader
	Templates TemplateStore
	// Cache is optional; when nil, created templates are not invalidated.
	Cache TemplateInvalidator
	DB    Pinger
	// MaxBodyBytes limits request bodies; zero disables the limit.
	MaxBodyBytes int64
	Log          zerolog.Logger
}

// NewRouter creates a chi.Mux with all routes, middleware, and handlers configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CorrelationIDMiddleware(cfg.Log))
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(RecoverMiddleware(cfg.Log))

	// Health and metrics endpoints
	r.Get("/healthz", HealthzHandler())
	r.Get("/readyz", ReadyzHandler(cfg.DB))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(MaxBodyMiddleware(cfg.MaxBodyBytes))

		// Messages
		r.Post("/messages", SendMessageHandler(cfg.Sender))
		r.Post("/messages/bulk", BulkSendHandler(cfg.Sender))
		r.Get("/messages/{id}", GetMessageHandler(cfg.Messages))

		// Templates
		r.Post("/templates", CreateTemplateHandler(cfg.Templates, cfg.Cache))
	})

	return r
}
