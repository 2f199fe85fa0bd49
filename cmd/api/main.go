// Package main is the entrypoint for the SplitLedger API server.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/splitledger/splitledger/internal/activity"
	"github.com/splitledger/splitledger/internal/auth"
	"github.com/splitledger/splitledger/internal/cache"
	"github.com/splitledger/splitledger/internal/config"
	"github.com/splitledger/splitledger/internal/handler"
	"github.com/splitledger/splitledger/internal/metrics"
	"github.com/splitledger/splitledger/internal/middleware"
	"github.com/splitledger/splitledger/internal/notifier"
	"github.com/splitledger/splitledger/internal/repository"
	"github.com/splitledger/splitledger/internal/server"
	"github.com/splitledger/splitledger/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

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

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		repo.Close()
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheus(registry)

	// Realtime delivery
	hub := notifier.NewHub(logger, recorder)
	var delivery notifier.Notifier = hub
	fanoutCtx, stopFanout := context.WithCancel(ctx)
	if cfg.NotifyFanoutEnabled {
		fanout := notifier.NewRedisFanout(cacheClient.Redis(), hub, logger, recorder)
		delivery = fanout
		go func() {
			if err := fanout.Run(fanoutCtx); err != nil {
				logger.Error("notification fan-out stopped", "error", err)
			}
		}()
	}

	tickets := auth.NewTicketManager(ticketSecret(cfg, logger), cfg.RealtimeTicketTTL)

	// Activity feed: services append to a Redis stream, the worker moves entries into Postgres.
	var feed service.ActivityRecorder
	var worker *activity.Worker
	if cfg.ActivityFeedEnabled {
		feed = activity.NewPublisher(cacheClient.Redis(), logger, recorder)
		worker = activity.NewWorker(cacheClient.Redis(), repo, logger, activity.NewConsumerID("splitledger"), recorder)
		worker.SetBatchSize(cfg.ActivityBatchSize)
		worker.SetBlockTimeout(cfg.ActivityBlockTime)
		go func() {
			if err := worker.Run(ctx); err != nil {
				logger.Error("activity worker stopped", "error", err)
			}
		}()
	}

	// Services
	loc, _ := cfg.Location()
	var store service.Store = repo
	if cfg.UserCacheEnabled {
		store = service.WithUserCache(repo, cacheClient, logger)
	}
	services := service.New(store, delivery, recorder, service.Options{
		OpTimeout:  cfg.ServiceOpTimeout,
		MaxRetries: cfg.ServiceMaxRetries,
		Location:   loc,
		Logger:     logger,
		Activity:   feed,
	})

	// Handlers
	h := handler.New()
	handlers := routeHandlers{
		health: handler.NewHealthHandler(
			handler.Dependency{Name: "postgres", Checker: repo},
			handler.Dependency{Name: "redis", Checker: cacheClient},
		),
		groups:        handler.NewGroupHandler(services.Groups, logger),
		expenses:      handler.NewExpenseHandler(services.Expenses, services.Balances, logger),
		notifications: handler.NewNotificationHandler(services.Notifications, tickets, logger),
		activity:      handler.NewActivityHandler(services.Activity, logger),
		apiKeys:       handler.NewAPIKeyHandler(logger, repo, cacheClient),
		admin:         handler.NewAdminHandler(repo, repo, hub, cacheClient, logger),
		metrics:       handler.NewMetricsHandler(registry),
		ws:            notifier.NewWSServer(hub, tickets, logger),
	}

	r := setupRouter(h, handlers, repo, cacheClient, cfg, logger)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Registered in start order; stopped in reverse.
	srv.OnShutdown("postgres", func(ctx context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(ctx context.Context) error {
		return cacheClient.Close()
	})
	srv.OnShutdown("notify-fanout", func(ctx context.Context) error {
		stopFanout()
		return nil
	})
	if worker != nil {
		srv.OnShutdown("activity-worker", worker.Shutdown)
	}
	srv.OnDrain("realtime-hub", hub.Shutdown)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"fanout", cfg.NotifyFanoutEnabled,
		"activity_feed", cfg.ActivityFeedEnabled,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	if cfg.LogFormat == "text" {
		h = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			NoColor:    !cfg.IsDevelopment(),
		})
	} else {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ticketSecret returns the configured signing secret, or an ephemeral one
// outside production. Ephemeral tickets do not survive restarts or span instances.
func ticketSecret(cfg *config.Config, logger *slog.Logger) string {
	if cfg.RealtimeTicketSecret != "" {
		return cfg.RealtimeTicketSecret
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		logger.Error("failed to generate realtime ticket secret", "error", err)
		os.Exit(1)
	}
	logger.Warn("REALTIME_TICKET_SECRET not set; using an ephemeral secret")
	return hex.EncodeToString(buf)
}

type routeHandlers struct {
	health        *handler.HealthHandler
	groups        *handler.GroupHandler
	expenses      *handler.ExpenseHandler
	notifications *handler.NotificationHandler
	activity      *handler.ActivityHandler
	apiKeys       *handler.APIKeyHandler
	admin         *handler.AdminHandler
	metrics       http.Handler
	ws            http.Handler
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h *handler.Handler,
	hs routeHandlers,
	repo *repository.Repository,
	cacheClient *cache.Cache,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment:      cfg.IsDevelopment(),
		AllowedOrigins:     cfg.GetCORSAllowedOrigins(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))

	// Health and metrics (no auth required)
	r.Get("/healthz", hs.health.Healthz)
	r.Get("/readyz", hs.health.Readyz)
	r.Method("GET", "/metrics", hs.metrics)

	r.Get("/", h.Index)

	authCfg := middleware.AuthConfig{
		Logger: logger,
		Keys:   repo,
		Cache:  cacheClient,
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:     logger,
		Limiter:    cacheClient,
		APIEnabled: cfg.RateLimitAPIEnabled,
		IPEnabled:  cfg.RateLimitIPEnabled,
		IPRPS:      cfg.RateLimitIPRPS,
		IPBurst:    cfg.RateLimitIPBurst,
	}

	// Realtime endpoint authenticates with a ticket inside the first frame.
	r.With(middleware.RateLimitIP(rateLimitCfg)).Method("GET", "/ws", hs.ws)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))
		r.Use(middleware.Auth(authCfg))
		r.Use(middleware.RateLimitAPI(rateLimitCfg))

		r.Route("/groups", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", hs.groups.List)
			r.With(middleware.RequireWrite()).Post("/", hs.groups.Create)

			r.Route("/{groupID}", func(r chi.Router) {
				r.Use(middleware.ValidateIDParams("groupID"))

				r.With(middleware.RequireRead()).Get("/", hs.groups.Get)
				r.With(middleware.RequireWrite()).Delete("/", hs.groups.Delete)
				r.With(middleware.RequireWrite()).Post("/respond", hs.groups.Respond)
				r.With(middleware.RequireWrite()).Post("/members", hs.groups.AddMember)
				r.With(middleware.RequireWrite(), middleware.ValidateIDParams("memberID")).
					Delete("/members/{memberID}", hs.groups.RemoveMember)

				r.With(middleware.RequireRead()).Get("/expenses", hs.expenses.List)
				r.With(middleware.RequireWrite()).Post("/expenses", hs.expenses.Add)
				r.With(middleware.RequireWrite(), middleware.ValidateIDParams("expenseID")).
					Put("/expenses/{expenseID}", hs.expenses.Edit)
				r.With(middleware.RequireWrite(), middleware.ValidateIDParams("expenseID")).
					Delete("/expenses/{expenseID}", hs.expenses.Delete)

				r.With(middleware.RequireRead()).Get("/balance", hs.expenses.Balance)
				r.With(middleware.RequireRead()).Get("/settlements", hs.expenses.Settlements)
				r.With(middleware.RequireRead()).Get("/activity", hs.activity.List)
			})
		})

		r.With(middleware.RequireRead()).Get("/notifications", hs.notifications.List)
		r.With(middleware.RequireRead()).Post("/realtime/ticket", hs.notifications.Ticket)

		// API key management (requires admin scope for mutations)
		r.Route("/api-keys", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", hs.apiKeys.ListAPIKeys)
			r.With(middleware.RequireAdmin()).Post("/", hs.apiKeys.CreateAPIKey)
			r.With(middleware.RequireAdmin(), middleware.ValidateIDParams("keyID")).
				Delete("/{keyID}", hs.apiKeys.RevokeAPIKey)
			r.With(middleware.RequireAdmin(), middleware.ValidateIDParams("keyID")).
				Post("/{keyID}/rotate", hs.apiKeys.RotateAPIKey)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin())
			r.Post("/users", hs.admin.CreateUser)
			r.Get("/users", hs.admin.LookupUser)
			r.Get("/api-keys", hs.admin.ListAPIKeysByUser)
			r.Get("/stats", hs.admin.Stats)
		})
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

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
