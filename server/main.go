package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seatflow/api/routes"
	"seatflow/internal/delivery"
	"seatflow/internal/shared/clock"
	"seatflow/internal/shared/config"
	"seatflow/internal/shared/database"
	"seatflow/internal/shared/middleware"
	"seatflow/pkg/logger"
	"seatflow/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	appLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// rebuild once LOG_LEVEL and the gin mode come from the loaded environment
	appLogger = logger.New()
	logger.SetDefault(appLogger)

	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("failed to initialize storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	repos := routes.NewRepositories(cfg, db, clock.System{})

	// Ticket delivery: Kafka producer + consumer group, or inline handling
	deliveryHandler := delivery.NewHandler(newDeduper(cfg, db), delivery.NewMailer(cfg.Email))
	publisher, consumer := setupDelivery(cfg, deliveryHandler)
	defer func() {
		if err := publisher.Close(); err != nil {
			appLogger.Error("Error closing delivery publisher", slog.Any("error", err))
		}
	}()

	appRouter := routes.NewRouter(cfg, db, repos, publisher)

	// Rate limiter needs Redis
	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled && db.GetRedis() != nil {
		rateLimiter = ratelimit.NewRateLimiter(db.GetRedis(), &ratelimit.Config{
			Enabled:         cfg.RateLimit.Enabled,
			WindowDuration:  cfg.RateLimit.WindowDuration,
			DefaultRequests: cfg.RateLimit.DefaultRequests,
			PublicRequests:  cfg.RateLimit.PublicRequests,
			AuthRequests:    cfg.RateLimit.AuthRequests,
			HoldRequests:    cfg.RateLimit.HoldRequests,
			OrderRequests:   cfg.RateLimit.OrderRequests,
			PaymentRequests: cfg.RateLimit.PaymentRequests,
			AdminRequests:   cfg.RateLimit.AdminRequests,
			WhitelistedIPs:  cfg.RateLimit.WhitelistedIPs,
		})
		appLogger.Info("Rate limiter initialized",
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	jobsCtx, jobsCancel := context.WithCancel(context.Background())
	defer jobsCancel()

	appRouter.StartJobs(jobsCtx)
	if consumer != nil {
		consumer.Start(jobsCtx)
	}

	router := setupRouter(cfg, appRouter, rateLimiter)

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("🚀 Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("api_status", fmt.Sprintf("http://localhost:%s/status", cfg.Port)),
			slog.String("version", Version),
			slog.String("commit", GitCommit),
			slog.String("built", BuildTime),
			slog.String("store", cfg.Database.Driver),
			slog.Bool("redis", db.GetRedis() != nil),
			slog.Bool("kafka", cfg.Kafka.Enabled),
			slog.Bool("rate_limiting", rateLimiter != nil),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	appRouter.StopJobs()
	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			appLogger.Error("Error stopping delivery consumer", slog.Any("error", err))
		}
	}

	appLogger.Info("Server exited gracefully")
}

func newDeduper(cfg *config.Config, db *database.DB) delivery.Deduper {
	if db.GetRedis() != nil {
		return delivery.NewRedisDeduper(db.GetRedis(), cfg.Redis.DeliveryDedupTTL)
	}
	logger.GetDefault().Warn("Redis disabled: delivery dedupe is process local")
	return delivery.NewLocalDeduper()
}

// setupDelivery returns the publisher used by reconciliation and, with Kafka
// enabled, the consumer that feeds the handler
func setupDelivery(cfg *config.Config, handler *delivery.Handler) (delivery.Publisher, *delivery.Consumer) {
	appLogger := logger.GetDefault()
	if !cfg.Kafka.Enabled {
		appLogger.Info("Kafka disabled: ticket delivery runs inline")
		return delivery.NewInlinePublisher(handler), nil
	}

	publisher, err := delivery.NewKafkaPublisher(cfg.Kafka)
	if err != nil {
		appLogger.Error("Failed to create Kafka publisher, delivering inline", slog.Any("error", err))
		return delivery.NewInlinePublisher(handler), nil
	}

	consumer, err := delivery.NewConsumer(cfg.Kafka, handler)
	if err != nil {
		appLogger.Error("Failed to create delivery consumer; requests stay queued in Kafka", slog.Any("error", err))
		return publisher, nil
	}
	return publisher, consumer
}

func setupRouter(cfg *config.Config, appRouter *routes.Router, rateLimiter *ratelimit.RateLimiter) *gin.Engine {
	engine := gin.New()
	appLogger := logger.GetDefault()

	// Request id, request logging, panic recovery
	engine.Use(middleware.RequestID(), middleware.RequestLogger(appLogger), gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Guest-Token", "X-Signature"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
		appLogger.Info("Rate limiting middleware applied to all routes")
	}

	appRouter.SetupRoutes(engine)

	return engine
}
