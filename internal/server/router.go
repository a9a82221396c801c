package server

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/projectdesk/projectdesk/internal/auth"
	"github.com/projectdesk/projectdesk/internal/handler"
	"github.com/projectdesk/projectdesk/internal/metrics"
	"github.com/projectdesk/projectdesk/internal/middleware"
	"github.com/projectdesk/projectdesk/internal/service"
)

// RouterConfig holds everything the HTTP routes depend on.
type RouterConfig struct {
	Logger   *slog.Logger
	Resolver *auth.Resolver
	Users    *service.UserService
	Projects *service.ProjectService
	Health   *handler.HealthHandler
	Metrics  *metrics.InMemoryRecorder

	// Limiter guards signup and login per client address. Nil disables it.
	Limiter           middleware.IPLimiter
	AuthRatePerMinute int
	AuthRateBurst     int
	// TrustProxyHeaders takes the client address from forwarding headers.
	TrustProxyHeaders bool

	// EnforceManagerRole turns the manager gate from log-only into 403s.
	EnforceManagerRole bool

	AllowedOrigins     []string
	MaxRequestBodySize int64
	IsDevelopment      bool
	SecureCookies      bool
	Location           *time.Location
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	var recorder metrics.Recorder = metrics.NewNoop()
	var snapshotter metrics.Snapshotter
	if cfg.Metrics != nil {
		recorder = cfg.Metrics
		snapshotter = cfg.Metrics
	}
	cookies := handler.CookieConfig{Secure: cfg.SecureCookies}

	h := handler.New()
	metricsHandler := handler.NewMetricsHandler(snapshotter)
	userHandler := handler.NewUserHandler(cfg.Users, cfg.Resolver, cookies, logger)
	projectHandler := handler.NewProjectHandler(cfg.Projects, handler.ProjectHandlerConfig{
		Location:       cfg.Location,
		AllowedOrigins: cfg.AllowedOrigins,
	}, logger, recorder)
	sessionHandler := handler.NewSessionHandler(cfg.Projects, cfg.Users, cookies, cfg.AllowedOrigins, logger, recorder)

	maxBody := cfg.MaxRequestBodySize
	if maxBody <= 0 {
		maxBody = middleware.DefaultSecurityConfig().MaxRequestBodySize
	}

	r := chi.NewRouter()

	// Global middleware
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger, cfg.IsDevelopment))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins)))
	r.Use(middleware.MaxBodySize(maxBody))

	// Health endpoints (no auth required)
	r.Get("/", h.Index)
	if cfg.Health != nil {
		r.Get("/healthz", cfg.Health.Healthz)
		r.Get("/readyz", cfg.Health.Readyz)
	}
	r.Get("/metrics", metricsHandler.Metrics)

	authenticate := middleware.Auth(middleware.AuthConfig{Logger: logger, Resolver: cfg.Resolver})
	manager := middleware.RequireManager(cfg.EnforceManagerRole, logger)
	rateLimit := middleware.RateLimitIP(middleware.RateLimitConfig{
		Logger:    logger,
		Limiter:   cfg.Limiter,
		PerMinute: cfg.AuthRatePerMinute,
		Burst:     cfg.AuthRateBurst,
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.With(rateLimit).Post("/signup", userHandler.Signup)
			r.With(rateLimit).Post("/login", userHandler.Login)
			r.Get("/logout", userHandler.Logout)
			r.With(authenticate).Get("/me", userHandler.Me)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectHandler.List)
				r.Get("/watch", projectHandler.Watch)
				r.With(manager).Post("/", projectHandler.Create)
				r.With(manager).Patch("/{id}", projectHandler.Update)
				r.Patch("/{id}/status", projectHandler.UpdateStatus)
				r.With(manager).Delete("/{id}", projectHandler.Delete)
				r.Post("/{id}/queries", projectHandler.RaiseQuery)
			})

			r.With(manager).Get("/queries", projectHandler.ListQueries)

			r.Route("/settings/manager-password", func(r chi.Router) {
				r.Get("/", sessionHandler.GetManagerPassword)
				r.Get("/watch", sessionHandler.WatchManagerPassword)
				r.With(manager).Put("/", sessionHandler.PutManagerPassword)
			})

			r.Post("/session/role", sessionHandler.SwitchRole)
		})
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
