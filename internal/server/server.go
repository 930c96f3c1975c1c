// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects the store, services,
// handlers, middleware and background jobs, and decides:
//   - Which URL patterns map to which handler functions
//   - Which middleware runs on which routes
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Store (sqlite or memory)
//	Store + Hub + Metrics → service.Deps → one service per entity family
//	services → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes) rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/greenpath/greenpath/internal/auth"
	"github.com/greenpath/greenpath/internal/config"
	"github.com/greenpath/greenpath/internal/handler"
	"github.com/greenpath/greenpath/internal/metrics"
	"github.com/greenpath/greenpath/internal/middleware"
	"github.com/greenpath/greenpath/internal/realtime"
	"github.com/greenpath/greenpath/internal/repository"
	"github.com/greenpath/greenpath/internal/repository/memory"
	sqliteRepo "github.com/greenpath/greenpath/internal/repository/sqlite"
	"github.com/greenpath/greenpath/internal/scheduler"
	"github.com/greenpath/greenpath/internal/service"
)

const (
	limiterCleanupSchedule = "@every 5m"
	limiterMaxIdle         = 10 * time.Minute
	shutdownTimeout        = 30 * time.Second
)

// Server represents the HTTP server and everything it owns.
//
// RESOURCE MANAGEMENT:
// The Server owns the store, the WebSocket hub and the scheduler. Start
// releases all three on shutdown, in reverse order of dependency: stop
// taking requests, stop the jobs, close the sockets, then close the store.
type Server struct {
	router    *chi.Mux
	config    config.Config
	logger    *slog.Logger
	store     repository.Store
	metrics   *metrics.Metrics
	hub       *realtime.Hub
	limiter   *middleware.RateLimiter
	scheduler *scheduler.Scheduler
	mailer    service.Mailer
	passwords *auth.PasswordService

	events *service.EventService
}

// Option customises a Server. Tests use them to swap collaborators.
type Option func(*Server)

// WithStore uses store instead of opening the one cfg.Store names.
func WithStore(store repository.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithMailer replaces the default mailer, which only logs the code.
func WithMailer(m service.Mailer) Option {
	return func(s *Server) { s.mailer = m }
}

// WithPasswords replaces the production scrypt cost, which is too slow for
// tests that register many accounts.
func WithPasswords(p *auth.PasswordService) Option {
	return func(s *Server) { s.passwords = p }
}

// New creates a Server from cfg.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		metrics: metrics.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.passwords == nil {
		s.passwords = auth.NewPasswordService()
	}

	if s.store == nil {
		store, err := openStore(cfg)
		if err != nil {
			return nil, err
		}
		s.store = store
	}

	if err := s.setupRoutes(); err != nil {
		s.store.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	if err := s.setupJobs(); err != nil {
		s.store.Close()
		return nil, fmt.Errorf("setting up jobs: %w", err)
	}
	return s, nil
}

// openStore picks the Store implementation. The memory store forgets
// everything on restart and is meant for demos and tests.
func openStore(cfg config.Config) (repository.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreSQLite:
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return db, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// setupRoutes configures all middleware and route handlers.
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns a unique ID to each request (for tracing)
//  2. RealIP: extracts the client IP from proxy headers (the rate limiter keys on it)
//  3. Logger: logs each request with timing info
//  4. Metrics: counts and times requests by route pattern
//  5. Recoverer: catches panics and returns 500 instead of crashing
//
// AUTH ON ROUTES:
//   - OptionalAuth: public reads where a logged-in user sees a bit more
//   - RequireAuth: everything else; the services then apply role rules
func (s *Server) setupRoutes() error {
	cfg := s.config

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(chimiddleware.Recoverer)

	// === Auth infrastructure ===
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	revoked := auth.NewRevocations(cfg.SessionTTL)
	authn := auth.NewAuthenticator(tokens, revoked, s.store)

	var github *auth.GitHubProvider
	if cfg.GitHubEnabled() {
		github = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL)
	}

	// === Services ===
	// The hub is the Notifier every service publishes through.
	s.hub = realtime.NewHub(cfg.AllowedOrigins, s.metrics, s.logger)
	deps := service.Deps{
		Store:    s.store,
		Notifier: s.hub,
		Metrics:  s.metrics,
		Logger:   s.logger,
	}

	authService := service.NewAuthService(deps, tokens, s.passwords, auth.NewOTPStore(cfg.OTPTTL), revoked, s.mailer)
	s.events = service.NewEventService(deps)

	authHandler := handler.NewAuthHandler(authService, github, cfg.SessionTTL, cfg.CookieSecure, s.logger)
	users := handler.NewUserHandler(service.NewUserService(deps), s.logger)
	reports := handler.NewWasteReportHandler(service.NewWasteReportService(deps), s.logger)
	donations := handler.NewDonationHandler(service.NewDonationService(deps), s.logger)
	events := handler.NewEventHandler(s.events, s.logger)
	media := handler.NewMediaHandler(service.NewMediaService(deps), s.logger)
	issues := handler.NewIssueHandler(service.NewIssueService(deps), s.logger)
	helpRequests := handler.NewHelpRequestHandler(service.NewHelpRequestService(deps), s.logger)
	feedback := handler.NewFeedbackHandler(service.NewFeedbackService(deps), s.logger)
	analytics := handler.NewAnalyticsHandler(service.NewAnalyticsService(deps, cfg.StatsCacheTTL), s.logger)

	s.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, s.metrics, s.logger)

	// === Operational routes ===
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", s.metrics.Handler())
	s.router.With(authn.OptionalAuth).Get("/ws-api", s.hub.ServeHTTP)

	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	}

	// === API routes ===
	s.router.Route("/api", func(r chi.Router) {
		// Credentials and OTPs: rate limited per client IP.
		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Handler)
			r.Post("/otp/send", authHandler.HandleSendOTP)
			r.Post("/otp/verify", authHandler.HandleVerifyOTP)
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
		})

		// Public reads.
		r.Group(func(r chi.Router) {
			r.Use(authn.OptionalAuth)
			r.Get("/stats", analytics.HandleStats)
			r.Get("/leaderboard", analytics.HandleLeaderboard)
			r.Get("/events", events.HandleList)
			r.Get("/events/{id}", events.HandleGet)
			r.Get("/media", media.HandleList)
			r.Get("/media/{id}", media.HandleGet)
		})

		// Everything else needs a session.
		r.Group(func(r chi.Router) {
			r.Use(authn.RequireAuth)

			r.Post("/logout", authHandler.HandleLogout)
			r.Get("/user", authHandler.HandleMe)
			r.Put("/user", authHandler.HandleUpdateMe)

			r.Get("/users", users.HandleList)
			r.Get("/users/{id}", users.HandleGet)
			r.Put("/users/{id}", users.HandleUpdate)

			r.Get("/waste-reports", reports.HandleList)
			r.Post("/waste-reports", reports.HandleCreate)
			r.Get("/waste-reports/{id}", reports.HandleGet)
			r.Put("/waste-reports/{id}", reports.HandleUpdate)

			r.Get("/donations", donations.HandleList)
			r.Post("/donations", donations.HandleCreate)
			r.Get("/donations/available", donations.HandleAvailable)
			r.Get("/donations/{id}", donations.HandleGet)
			r.Put("/donations/{id}", donations.HandleUpdate)

			r.Post("/events", events.HandleCreate)
			r.Put("/events/{id}", events.HandleUpdate)
			r.Get("/events/{id}/participants", events.HandleParticipants)
			r.Post("/events/{id}/participants", events.HandleJoin)
			r.Delete("/events/{id}/participants", events.HandleLeave)

			r.Post("/media", media.HandleCreate)
			r.Put("/media/{id}", media.HandleUpdate)

			r.Get("/issues", issues.HandleList)
			r.Post("/issues", issues.HandleCreate)
			r.Get("/issues/{id}", issues.HandleGet)
			r.Put("/issues/{id}", issues.HandleUpdate)

			r.Get("/help-requests", helpRequests.HandleList)
			r.Post("/help-requests", helpRequests.HandleCreate)
			r.Get("/help-requests/{id}", helpRequests.HandleGet)
			r.Put("/help-requests/{id}", helpRequests.HandleUpdate)

			r.Get("/feedback", feedback.HandleList)
			r.Post("/feedback", feedback.HandleCreate)
			r.Get("/feedback/{id}", feedback.HandleGet)
			r.Put("/feedback/{id}", feedback.HandleUpdate)

			r.Get("/environmental-impact", analytics.HandleEnvironmentalImpact)
		})
	})

	return nil
}

// setupJobs registers the background jobs. They start with Start.
func (s *Server) setupJobs() error {
	s.scheduler = scheduler.New(s.metrics, s.logger)
	if err := s.scheduler.AddEventSweep(s.config.EventSweepSchedule, s.events, s.config.EventDuration); err != nil {
		return err
	}
	return s.scheduler.AddLimiterCleanup(limiterCleanupSchedule, s.limiter, limiterMaxIdle)
}

// handleHealth is the liveness check.
//
// HTTP: GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Start starts the HTTP server and the scheduler, and blocks until SIGINT
// or SIGTERM.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Stop the scheduler, letting a running sweep complete
//  4. Disconnect WebSocket clients
//  5. Close the store (flushes the WAL, releases the file lock)
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.store.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.scheduler.Start()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("store", string(s.config.Store)),
			slog.Bool("github_login", s.config.GitHubEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			runErr = fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.scheduler.Stop(stopCtx)
	s.hub.Close()

	if runErr == nil {
		s.logger.Info("server stopped gracefully")
	}
	return runErr
}
