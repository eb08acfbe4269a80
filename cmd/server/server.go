package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-story/pkg/simplestory/api"
	"github.com/tendant/simple-story/pkg/simplestory/config"
	"github.com/tendant/simple-story/pkg/simplestory/metrics"
	"github.com/tendant/simple-story/pkg/simplestory/webhook"
)

// HTTPServer exposes a story stack over HTTP
type HTTPServer struct {
	stack    *config.Stack
	config   *config.Config
	registry *prometheus.Registry
	metrics  *metrics.Prometheus
}

// NewHTTPServer creates a new HTTP server wrapper
func NewHTTPServer(stack *config.Stack, cfg *config.Config, registry *prometheus.Registry, m *metrics.Prometheus) *HTTPServer {
	return &HTTPServer{
		stack:    stack,
		config:   cfg,
		registry: registry,
		metrics:  m,
	}
}

// Routes sets up the HTTP routes
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(api.RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(api.LoggingMiddleware(nil))
	r.Use(api.RecoveryMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))
	if s.metrics != nil {
		r.Use(api.MetricsMiddleware(s.metrics))
	}

	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)
	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	hook := api.Chain(
		webhook.NewSecretHandler(s.stack.Webhook, s.config.WebhookSecret),
		api.RequestSizeLimitMiddleware(webhook.DefaultMaxBodyBytes),
	)
	stories := api.NewStoryHandler(s.stack.Loader, hook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/", stories.Routes())
		r.Get("/config", s.handleGetConfig)
	})

	return r
}

// ConfigResponse describes the running configuration without secrets
type ConfigResponse struct {
	Environment     string `json:"environment"`
	Source          string `json:"source"`
	Prefix          string `json:"prefix"`
	DefaultLanguage string `json:"default_language"`
	Version         string `json:"version"`
	AssetInlining   bool   `json:"asset_inlining"`
	SignedWebhooks  bool   `json:"signed_webhooks"`
}

func (s *HTTPServer) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, ConfigResponse{
		Environment:     s.config.Environment,
		Source:          s.config.Source,
		Prefix:          s.config.Prefix,
		DefaultLanguage: s.config.DefaultLanguage,
		Version:         s.config.Version,
		AssetInlining:   !s.config.Assets.Disabled,
		SignedWebhooks:  s.config.WebhookSecret != "",
	})
}
