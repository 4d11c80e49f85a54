package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/engageflow/backend/internal/ai"
	"github.com/engageflow/backend/internal/api"
	"github.com/engageflow/backend/internal/config"
	"github.com/engageflow/backend/internal/database"
	"github.com/engageflow/backend/internal/health"
	"github.com/engageflow/backend/internal/jobs"
	"github.com/engageflow/backend/internal/logger"
	"github.com/engageflow/backend/internal/platform"
	"github.com/engageflow/backend/internal/services"
	"github.com/engageflow/backend/internal/websocket"
)

func main() {
	// Missing .env is fine in production; env vars are set directly.
	_ = godotenv.Load()

	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}

	logger.Init(logger.Config{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Pretty: env == "development",
	})

	log := logger.Get()
	log.Info().
		Str("env", env).
		Msg("Starting EngageFlow engagement backend")

	cfg := config.Load()
	validateConfig(cfg, env, log)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	log.Info().Msg("Connected to PostgreSQL")

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get SQL DB")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			// A nil client makes the container fall back to the
			// in-process rate limiter.
			log.Warn().Err(err).Msg("Redis unavailable, using in-memory rate limiter")
		} else {
			redisClient = client
			log.Info().Msg("Connected to Redis")
		}
	}

	wsHub := websocket.NewHub()
	go wsHub.Run()
	log.Info().Msg("WebSocket hub started")

	sender := platform.NewGraphClient(cfg.PlatformAPIURL, cfg.PlatformAPIToken)
	generator := ai.NewClient(cfg.AIServiceURL)

	svc := services.NewContainer(cfg, db, redisClient, wsHub, sender, generator)

	svc.Dispatcher.Start()
	svc.Event.Start()

	scheduler := jobs.NewScheduler(svc)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start maintenance scheduler")
	}

	server := api.NewServer(svc)

	healthChecker := health.NewChecker(db, redisClient, svc.Dispatcher)
	healthChecker.RegisterRoutes(server.Router())

	addr := ":" + getEnvOrDefault("PORT", "8080")
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	healthChecker.SetReady(true)
	log.Info().Msg("Service is ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down")
	healthChecker.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	scheduler.Stop()
	svc.Event.Stop()
	svc.Dispatcher.Stop()

	if err := sqlDB.Close(); err != nil {
		log.Error().Err(err).Msg("Database close error")
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("Redis close error")
		}
	}

	log.Info().Msg("Shutdown complete")
}

func validateConfig(cfg *config.Config, env string, log *zerolog.Logger) {
	var problems []string

	if cfg.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" || cfg.JWTSecret == "your-secret-key-change-in-production" {
		if env != "development" {
			problems = append(problems, "JWT_SECRET must be set in production")
		} else {
			log.Warn().Msg("Using default JWT_SECRET - NOT SAFE FOR PRODUCTION")
		}
	}

	if cfg.PlatformAPIToken == "" && env != "development" {
		problems = append(problems, "PLATFORM_API_TOKEN must be set in production")
	}

	if len(problems) > 0 {
		for _, p := range problems {
			log.Error().Msg(p)
		}
		log.Fatal().Msg("Configuration validation failed")
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
