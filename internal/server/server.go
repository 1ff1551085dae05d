// Package server exposes the wizard over HTTP: session lifecycle, step
// advancement with tracking, recommendation resolution, and funnel metrics.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-wizard/internal/auth"
	"github.com/sells-group/funnel-wizard/internal/config"
	"github.com/sells-group/funnel-wizard/internal/monitoring"
	"github.com/sells-group/funnel-wizard/internal/recommend"
	"github.com/sells-group/funnel-wizard/internal/session"
	"github.com/sells-group/funnel-wizard/internal/store"
	"github.com/sells-group/funnel-wizard/internal/webhook"
	"github.com/sells-group/funnel-wizard/internal/wizard"
	"github.com/sells-group/funnel-wizard/pkg/crm"
)

// Server wires the wizard services behind the HTTP API.
type Server struct {
	cfg       config.ServerConfig
	sessions  *session.Manager
	store     store.Store
	resolver  *recommend.Resolver
	reporter  *webhook.Reporter
	flows     wizard.Flows
	pricing   config.PricingConfig
	collector *monitoring.Collector
	google    *auth.GoogleService
	leads     *crm.LeadSyncer
}

// New creates a server over the given services. google may be nil when
// OAuth sign-in is not configured.
func New(
	cfg config.ServerConfig,
	sessions *session.Manager,
	st store.Store,
	resolver *recommend.Resolver,
	reporter *webhook.Reporter,
	flows wizard.Flows,
	pricing config.PricingConfig,
	collector *monitoring.Collector,
	google *auth.GoogleService,
) *Server {
	return &Server{
		cfg:       cfg,
		sessions:  sessions,
		store:     st,
		resolver:  resolver,
		reporter:  reporter,
		flows:     flows,
		pricing:   pricing,
		collector: collector,
		google:    google,
	}
}

// SetLeadSyncer enables best-effort CRM lead sync on wizard completion.
func (s *Server) SetLeadSyncer(ls *crm.LeadSyncer) {
	s.leads = ls
}

// Router builds the chi router with middleware and all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(rateLimit(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/advance", s.handleAdvance)
			r.Post("/recommendation", s.handleResolveRecommendation)
			r.Get("/recommendation", s.handleGetRecommendation)
			r.Get("/scores", s.handleGetScores)
			r.Get("/pricing", s.handleGetPricing)
		})
		r.Get("/metrics/funnel", s.handleFunnelMetrics)

		if s.google != nil && s.google.Configured() {
			s.google.Routes(r)
		}
	})

	return r
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		srv.Shutdown(context.Background())
	}()

	zap.L().Info("starting server", zap.Int("port", s.cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}
