// Package main is the entrypoint for the projectdesk API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/projectdesk/projectdesk/internal/auth"
	"github.com/projectdesk/projectdesk/internal/cache"
	"github.com/projectdesk/projectdesk/internal/config"
	"github.com/projectdesk/projectdesk/internal/credstore"
	"github.com/projectdesk/projectdesk/internal/handler"
	"github.com/projectdesk/projectdesk/internal/metrics"
	"github.com/projectdesk/projectdesk/internal/middleware"
	"github.com/projectdesk/projectdesk/internal/notify"
	"github.com/projectdesk/projectdesk/internal/realtime"
	"github.com/projectdesk/projectdesk/internal/repository"
	"github.com/projectdesk/projectdesk/internal/server"
	"github.com/projectdesk/projectdesk/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Credential store
	connector := credstore.NewConnector(cfg.MongoURL, cfg.MongoDatabase, logger)
	db, err := connector.Connect(ctx)
	if err != nil {
		logger.Error(
			"failed to connect to credential store",
			slog.String("error", sanitizeError(err, cfg.MongoURL)),
			slog.String("mongo_url", redactURL(cfg.MongoURL)),
		)
		os.Exit(1)
	}
	users := credstore.NewUserRepository(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		logger.Error("failed to create credential store indexes", "error", err)
		os.Exit(1)
	}

	// Project store
	if err := repository.Migrate(ctx, cfg.DatabaseURL); err != nil {
		logger.Error(
			"failed to migrate database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	if version, err := repository.MigrationVersion(ctx, cfg.DatabaseURL); err != nil {
		logger.Warn("failed to read schema version", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
	} else {
		logger.Info("database schema ready", slog.Int64("version", version))
	}
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Redis is optional. Without it changes only reach watchers of this
	// process and the limits, revocations and query log are disabled.
	var (
		cacheClient *cache.Cache
		broker      realtime.Broker = realtime.NewLocalBroker()
		profiles    service.ProfileCache
		revoker     service.TokenRevoker
		revoked     auth.RevocationChecker
		limiter     service.AttemptLimiter
		queries     service.QueryLog
		ipLimiter   middleware.IPLimiter
		cacheHealth handler.HealthChecker
	)
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL, cfg.AppNamespace)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			os.Exit(1)
		}
		logger.Info("connected to Redis")

		broker = cacheClient
		profiles = cacheClient
		revoker = cacheClient
		revoked = cacheClient
		limiter = cacheClient
		queries = cacheClient
		ipLimiter = cacheClient
		cacheHealth = cacheClient
	} else {
		logger.Warn("REDIS_URL not set, using in-process change notifications")
	}

	// Services
	recorder := metrics.NewInMemory()
	tokens := auth.NewTokenManager([]byte(cfg.JWTSecret), cfg.TokenTTL)
	userService := service.NewUserService(users, profiles, tokens, revoker, logger, recorder)
	projectService := service.NewProjectService(repo, broker, limiter, queries, service.ProjectServiceConfig{
		Namespace:             cfg.AppNamespace,
		RoleSwitchMaxAttempts: cfg.RoleSwitchMaxAttempts,
		RoleSwitchWindow:      cfg.RoleSwitchWindow,
	}, logger, recorder)

	r := server.NewRouter(server.RouterConfig{
		Logger:             logger,
		Resolver:           auth.NewResolver(tokens, revoked),
		Users:              userService,
		Projects:           projectService,
		Health:             handler.NewHealthHandler(connector, repo, cacheHealth),
		Metrics:            recorder,
		Limiter:            ipLimiter,
		AuthRatePerMinute:  cfg.AuthRateLimitPerMinute,
		AuthRateBurst:      cfg.AuthRateLimitBurst,
		TrustProxyHeaders:  cfg.TrustProxyHeaders,
		EnforceManagerRole: cfg.EnforceManagerRole,
		AllowedOrigins:     cfg.GetCORSAllowedOrigins(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		IsDevelopment:      cfg.IsDevelopment(),
		SecureCookies:      cfg.SecureCookies(),
		Location:           cfg.Location(),
	})

	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Shutdown runs LIFO: Redis first, then the stores.
	srv.OnShutdown("credential store", connector.Close)
	srv.OnShutdown("database", func(context.Context) error {
		repo.Close()
		return nil
	})
	if cacheClient != nil {
		srv.OnShutdown("redis", func(context.Context) error {
			return cacheClient.Close()
		})
	}

	// Registered after redis so it stops before the connection closes.
	if notifier := newQueryNotifier(ctx, cfg, cacheClient, logger, recorder); notifier != nil {
		go func() {
			if err := notifier.Run(context.Background()); err != nil {
				logger.Error("query notifier stopped", "error", err)
			}
		}()
		srv.OnShutdown("query notifier", notifier.Shutdown)
	}

	if !cfg.EnforceManagerRole {
		logger.Warn("manager role is not enforced, restricted endpoints only log mismatches")
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"namespace", cfg.AppNamespace,
		"timezone", cfg.Location().String(),
		"token_ttl", cfg.TokenTTL.Round(time.Second),
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newQueryNotifier returns nil when no webhook is configured or it cannot run.
func newQueryNotifier(ctx context.Context, cfg *config.Config, c *cache.Cache, logger *slog.Logger, recorder metrics.Recorder) *notify.Worker {
	if cfg.QueryWebhookURL == "" {
		return nil
	}
	if c == nil {
		logger.Warn("QUERY_WEBHOOK_URL set without REDIS_URL, query notifications disabled")
		return nil
	}
	if err := notify.ValidateTarget(ctx, cfg.QueryWebhookURL, cfg.IsProduction()); err != nil {
		logger.Error("invalid QUERY_WEBHOOK_URL, query notifications disabled",
			"target_host", notify.TargetHost(cfg.QueryWebhookURL),
			"error", err,
		)
		return nil
	}
	if cfg.QueryWebhookSecret == "" {
		logger.Warn("QUERY_WEBHOOK_SECRET not set, webhook requests are signed with an empty key")
	}

	return notify.NewWorker(c.Client(), c.QueryStream(), notify.Config{
		TargetURL:   cfg.QueryWebhookURL,
		Secret:      cfg.QueryWebhookSecret,
		MaxAttempts: cfg.QueryWebhookMaxAttempts,
		ConsumerID:  notify.NewConsumerID(),
	}, logger, recorder)
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// redactURL strips the password from a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

// sanitizeError replaces connection secrets in driver error messages.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
