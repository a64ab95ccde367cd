package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	_ "modernc.org/sqlite"

	"github.com/dharmasatrya/flightpoll/internal/cache"
	"github.com/dharmasatrya/flightpoll/internal/config"
	"github.com/dharmasatrya/flightpoll/internal/controller"
	"github.com/dharmasatrya/flightpoll/internal/handler"
	"github.com/dharmasatrya/flightpoll/internal/observability"
	"github.com/dharmasatrya/flightpoll/internal/poller"
	"github.com/dharmasatrya/flightpoll/internal/prefs"
	"github.com/dharmasatrya/flightpoll/internal/ratelimit"
	"github.com/dharmasatrya/flightpoll/internal/transport"
)

func main() {
	configPath := flag.String("config", os.Getenv("FLIGHTPOLL_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	slog.SetDefault(logger)

	reporter := initReporter(cfg, logger)
	defer reporter.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	preferences, closePrefs, err := initPrefs(ctx, cfg.Prefs, logger)
	if err != nil {
		logger.Error("failed to load preferences", "error", err)
		os.Exit(1)
	}
	defer closePrefs()

	limiter := ratelimit.NewHostLimiter(ratelimit.RateLimitConfig{
		RequestsPerSecond: cfg.Upstream.RateLimit,
		BurstSize:         cfg.Upstream.RateBurst,
	})
	for host, l := range cfg.Upstream.HostLimits {
		limiter.SetHostLimit(host, l.RateLimit, l.RateBurst)
		logger.Info("host rate limit", "host", host, "rps", l.RateLimit, "burst", l.RateBurst)
	}
	tr := transport.NewHTTPTransport(transport.Config{
		Timeout:     cfg.Upstream.RequestTimeout,
		APIKey:      cfg.Upstream.APIKey,
		RateLimiter: limiter,
		Logger:      logger,
	})

	resultCache := initCache(cfg.Cache, logger)
	defer func() { _ = resultCache.Close() }()

	ctrlConfig := controller.Config{
		BaseURL: cfg.Upstream.BaseURL,
		Poller: poller.Config{
			PageSize:       cfg.Upstream.PageSize,
			RequestTimeout: cfg.Upstream.RequestTimeout,
			MaxRetries:     cfg.Upstream.MaxRetries,
			RetryBackoff:   cfg.Upstream.RetryBackoff,
			MaxBackoff:     cfg.Upstream.MaxBackoff,
		},
		ConvergenceDelay:    cfg.Polling.ConvergenceDelay,
		MaxConvergencePolls: cfg.Polling.MaxConvergencePolls,
		Logger:              logger,
	}
	registry := handler.NewRegistry(ctx, func() *controller.Controller {
		return controller.NewFromTransport(tr, preferences, ctrlConfig,
			controller.WithCache(resultCache),
			controller.WithReporter(reporter),
		)
	}, logger, handler.WithIdleTTL(cfg.Polling.IdleTTL))
	defer registry.Close()

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())

	searchHandler := handler.NewSearchHandler(registry)
	searchHandler.Register(e.Group("/api/v1"))
	e.GET("/health", handler.HealthHandler)

	go func() {
		logger.Info("starting flight poll server", "port", cfg.Port, "upstream", cfg.Upstream.BaseURL)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func initReporter(cfg config.Config, logger *slog.Logger) observability.Reporter {
	if cfg.Sentry.DSN == "" {
		return observability.NopReporter{}
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      cfg.Sentry.Environment,
		AttachStacktrace: true,
	})
	if err != nil {
		logger.Warn("sentry initialization failed", "error", err)
		return observability.NopReporter{}
	}
	logger.Info("sentry initialized", "environment", cfg.Sentry.Environment)
	return observability.NewSentryReporter(nil)
}

func initPrefs(ctx context.Context, cfg config.PrefsConfig, logger *slog.Logger) (prefs.Store, func(), error) {
	defaults := prefs.Static{
		Country:  cfg.Country,
		Currency: cfg.Currency,
		Language: cfg.Language,
	}
	if cfg.Database == "" {
		logger.Info("using static preferences", "country", defaults.Country, "currency", defaults.Currency)
		return defaults, func() {}, nil
	}

	db, err := sql.Open("sqlite", cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := prefs.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	store, err := prefs.NewSQLStore(ctx, db, defaults, logger)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	logger.Info("preferences loaded", "database", cfg.Database,
		"country", store.CountryCode(),
		"currency", store.CurrencyCode(),
	)
	return store, func() { _ = db.Close() }, nil
}

func initCache(cfg config.CacheConfig, logger *slog.Logger) cache.Cache {
	if !cfg.Enabled {
		logger.Info("cache disabled")
		return cache.NewNoOpCache()
	}
	redisCache, err := cache.NewRedisCache(cache.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.TTL,
	})
	if err != nil {
		// Polling works without the cache; only a restart of a converged
		// epoch gets slower.
		logger.Warn("redis unavailable, cache disabled", "error", err)
		return cache.NewNoOpCache()
	}
	logger.Info("redis cache enabled", "host", cfg.RedisHost, "port", cfg.RedisPort, "ttl", cfg.TTL)
	return redisCache
}
