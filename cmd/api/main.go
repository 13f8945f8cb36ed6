package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/config"
	"github.com/BradenHooton/gatekeeper/internal/database"
	"github.com/BradenHooton/gatekeeper/internal/handlers"
	middlewareCustom "github.com/BradenHooton/gatekeeper/internal/middleware"
	"github.com/BradenHooton/gatekeeper/internal/repositories"
	"github.com/BradenHooton/gatekeeper/internal/routes"
	"github.com/BradenHooton/gatekeeper/internal/services"
	"github.com/BradenHooton/gatekeeper/pkg/clock"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Server.SlogLevel()}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Apply migrations before opening the pool when asked to
	if cfg.Database.AutoMigrate {
		if err := migrate(cfg, logger); err != nil {
			logger.Error("failed to migrate database", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	clk := clock.System{}
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(db)
	codeRepo := repositories.NewOneTimeCodeRepository(db)

	healthChecks := map[string]handlers.HealthChecker{"database": db}

	// Rate limit counters: process memory, or Redis when several replicas share budgets
	var windowStore services.WindowStore
	switch cfg.RateLimit.Backend {
	case "redis":
		opts, err := redis.ParseURL(cfg.RateLimit.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", slog.Any("error", err))
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		redisStore := repositories.NewRedisWindowStore(client, "gatekeeper:ratelimit")
		windowStore = redisStore
		healthChecks["redis"] = handlers.HealthCheckFunc(redisStore.Ping)
	default:
		windowStore = repositories.NewMemoryWindowStore(clk)
	}
	logger.Info("rate limit store ready", slog.String("backend", cfg.RateLimit.Backend))

	// Email dispatch
	var emailService services.EmailService
	switch cfg.Email.Provider {
	case "log":
		emailService = services.NewLogEmailService(logger, cfg.Server.Env)
	default:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		sesService, err := services.NewAWSSESEmailService(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.BrandName, logger)
		cancel()
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		emailService = sesService
	}

	// Initialize auth components
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTokenExpiry, clk)
	ledger := services.NewOTPLedger(codeRepo, clk, cfg.Auth.OTPExpiry, logger)
	lockout := services.NewLockoutTracker(accountRepo, clk, services.LockoutConfig{
		MaxFailedAttempts: cfg.Auth.MaxFailedAttempts,
		LockoutDuration:   cfg.Auth.LockoutDuration,
	}, logger)
	limiter := services.NewRateLimiter(windowStore, services.RulesFromConfig(cfg.RateLimit), logger)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.FailureDelayBaseMs,
		RandomDelayMs: cfg.Auth.FailureDelayRandomMs,
	})

	authService := services.NewAuthService(services.AuthServiceDeps{
		Accounts:    accountRepo,
		Ledger:      ledger,
		Lockout:     lockout,
		Sessions:    tokenManager,
		Email:       emailService,
		Timing:      timingDelay,
		SendTimeout: cfg.Email.SendTimeout,
		Logger:      logger,
		AuditLogger: auditLogger,
	})

	// Bootstrap first admin account if configured
	if cfg.Admin.Email != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := services.EnsureAdminAccount(ctx, accountRepo, cfg.Admin.Email, cfg.Admin.Username, logger, auditLogger); err != nil {
			logger.Error("failed to ensure admin account", slog.Any("error", err))
		}
		cancel()
	} else {
		logger.Info("no ADMIN_EMAIL set, skipping admin account creation")
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.ClientIP(&pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.RateLimitByIP(middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.RateLimit.GlobalPerMinute}))
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, routes.Dependencies{
		AuthHandler:      handlers.NewAuthHandler(authService, logger),
		HealthHandler:    handlers.NewHealthHandler(healthChecks, logger),
		SessionValidator: tokenManager,
		Limiter:          limiter,
		Logger:           logger,
		AuditLogger:      auditLogger,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// migrate runs pending goose migrations over a short-lived database/sql handle
func migrate(cfg *config.Config, logger *slog.Logger) error {
	sqlDB, err := database.OpenSQL(cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	return database.Migrate(ctx, sqlDB, "up", logger)
}
