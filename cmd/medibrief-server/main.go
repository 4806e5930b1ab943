package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medibrief/medibrief/internal/config"
	"github.com/medibrief/medibrief/internal/domain/ai"
	"github.com/medibrief/medibrief/internal/domain/analytics"
	"github.com/medibrief/medibrief/internal/domain/audit"
	"github.com/medibrief/medibrief/internal/domain/clinic"
	"github.com/medibrief/medibrief/internal/domain/identity"
	"github.com/medibrief/medibrief/internal/domain/patients"
	"github.com/medibrief/medibrief/internal/domain/portal"
	"github.com/medibrief/medibrief/internal/domain/records"
	"github.com/medibrief/medibrief/internal/platform/auth"
	"github.com/medibrief/medibrief/internal/platform/cache"
	"github.com/medibrief/medibrief/internal/platform/db"
	"github.com/medibrief/medibrief/internal/platform/events"
	"github.com/medibrief/medibrief/internal/platform/httperr"
	"github.com/medibrief/medibrief/internal/platform/llm"
	"github.com/medibrief/medibrief/internal/platform/middleware"
	"github.com/medibrief/medibrief/internal/platform/queue"
	"github.com/medibrief/medibrief/internal/platform/redisconn"
)

const maxBodyBytes = 1 << 20 // 1 MB

func main() {
	rootCmd := &cobra.Command{
		Use:   "medibrief-server",
		Short: "MediBrief clinical API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and AI worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s).\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("%-10s %-30s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-30s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	redisClient, err := redisconn.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	logger.Info().Msg("connected to redis")

	tokens, err := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.JWTTTL())
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid token configuration")
	}

	// Repositories
	clinicRepo := clinic.NewRepoPG(pool)
	userRepo := identity.NewUserRepoPG(pool)
	patientRepo := patients.NewRepoPG(pool)
	recordsRepo := records.NewRepoPG(pool)
	auditRepo := audit.NewRepoPG(pool)
	summaryRepo := ai.NewSummaryRepoPG(pool)

	// Platform services
	cacheStore := cache.New(redisClient, logger)
	jobQueue := queue.New(redisClient, ai.QueueName, queue.Options{})
	bus := events.NewBus(redisClient, logger)

	var provider llm.Provider
	llmCfg := llm.Config{APIKey: cfg.LLMAPIKey, BaseURL: cfg.LLMBaseURL, Model: cfg.LLMModel}
	if llmCfg.Configured() {
		provider = llm.NewOpenAIProvider(llmCfg)
		logger.Info().Str("model", cfg.LLMModel).Msg("language model configured")
	} else {
		logger.Warn().Msg("no language model configured, summaries use the deterministic renderer")
	}

	// Domain services
	auditSvc := audit.NewService(auditRepo, logger)
	patientSvc := patients.NewService(patientRepo, auditSvc)
	recordsSvc := records.NewService(recordsRepo, patientRepo, auditSvc)
	identitySvc := identity.NewService(userRepo, patientRepo, clinicRepo, tokens, auditSvc, pool)
	inputBuilder := ai.NewInputBuilder(recordsRepo, patientRepo, cacheStore)
	recordsSvc.SetWriteHook(inputBuilder.Invalidate)
	analyticsSvc := analytics.NewService(recordsRepo, patientRepo, summaryRepo)
	quotas := clinic.QuotaLimits{Free: cfg.QuotaFree, Pro: cfg.QuotaPro, Enterprise: cfg.QuotaEnterprise}
	aiSvc := ai.NewService(summaryRepo, clinicRepo, patientRepo, inputBuilder,
		jobQueue, bus, provider, auditSvc, quotas, logger)
	portalSvc := portal.NewService(patientRepo, recordsRepo, analyticsSvc, summaryRepo, auditSvc)

	// AI worker pool
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	workers := queue.NewWorkerPool(jobQueue, cfg.AIWorkerConcurrency, aiSvc.ProcessJob, logger)
	workers.OnComplete(aiSvc.PublishCompleted)
	workers.OnTerminalFailure(aiSvc.PublishFailed)
	go workers.Run(workerCtx)
	logger.Info().Int("concurrency", cfg.AIWorkerConcurrency).Msg("ai worker pool started")

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httperr.Handler(logger)

	globalTier := middleware.RateLimitConfig{MaxRequests: cfg.RateLimitGlobalPerMin, Window: time.Minute}
	authTier := middleware.RateLimitConfig{MaxRequests: cfg.RateLimitAuthPerMin, Window: time.Minute}
	aiTier := middleware.RateLimitConfig{MaxRequests: cfg.RateLimitAIPerMin, Window: time.Minute}
	if globalTier.MaxRequests <= 0 || authTier.MaxRequests <= 0 || aiTier.MaxRequests <= 0 {
		globalTier, authTier, aiTier = middleware.DefaultRateLimitTiers()
	}

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.EnforceHTTPS(cfg.ForceHTTPS))
	e.Use(middleware.OriginPolicy(cfg.CORSOrigins, cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit(maxBodyBytes))
	e.Use(middleware.RateLimit(globalTier))

	e.GET("/health", func(c echo.Context) error {
		dbOK := db.CheckHealth(c.Request().Context(), pool)
		redisOK := redisconn.CheckHealth(c.Request().Context(), redisClient)
		status := http.StatusOK
		overall := "ok"
		if !dbOK || !redisOK {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}
		return c.JSON(status, map[string]any{
			"status": overall,
			"db":     dbOK,
			"redis":  redisOK,
		})
	})

	// Handlers
	identityHandler := identity.NewHandler(identitySvc)
	patientsHandler := patients.NewHandler(patientSvc)
	recordsHandler := records.NewHandler(recordsSvc)
	analyticsHandler := analytics.NewHandler(analyticsSvc)
	auditHandler := audit.NewHandler(auditSvc)
	aiHandler := ai.NewHandler(aiSvc)
	portalHandler := portal.NewHandler(portalSvc)

	// Public auth endpoints get the tight credential rate tier.
	public := e.Group("/api", middleware.RateLimit(authTier))
	identityHandler.RegisterPublicRoutes(public)

	// Authenticated, clinic-bound API.
	api := e.Group("/api", auth.Middleware(tokens, false), db.ClinicBinder(pool, auth.ClinicIDOf))
	identityHandler.RegisterRoutes(api)
	patientsHandler.RegisterRoutes(api)
	recordsHandler.RegisterRoutes(api)
	analyticsHandler.RegisterRoutes(api)
	auditHandler.RegisterRoutes(api)
	portalHandler.RegisterRoutes(api)

	// AI endpoints carry their own rate tier; the stream group additionally
	// accepts a query token for EventSource clients.
	aiGroup := e.Group("/api", middleware.RateLimit(aiTier),
		auth.Middleware(tokens, false), db.ClinicBinder(pool, auth.ClinicIDOf))
	streamGroup := e.Group("/api", auth.Middleware(tokens, true), db.ClinicBinder(pool, auth.ClinicIDOf))
	aiHandler.RegisterRoutes(aiGroup, streamGroup)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	stopWorkers()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
		return err
	}
	return nil
}
