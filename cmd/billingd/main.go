package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/clubworks/billing-engine/internal/accounting"
	"github.com/clubworks/billing-engine/internal/gateway"
	"github.com/clubworks/billing-engine/internal/ledger"
	"github.com/clubworks/billing-engine/internal/ledger/handler"
	"github.com/clubworks/billing-engine/internal/ledger/repository"
	"github.com/clubworks/billing-engine/internal/processor"
	"github.com/clubworks/billing-engine/internal/reconcile"
	"github.com/clubworks/billing-engine/kafka"
	"github.com/clubworks/billing-engine/pkg/database"
	"github.com/clubworks/billing-engine/pkg/logger"
	"github.com/clubworks/billing-engine/pkg/tracing"
)

func main() {
	// Load .env if present; real deployments use the environment directly
	_ = godotenv.Load()

	// Initialize logger
	serviceName := getEnv("OTEL_SERVICE_NAME", "billing-service")
	isDevelopment := getEnv("ENVIRONMENT", "development") == "development"
	logLevel := getEnv("LOG_LEVEL", "info")
	logger.Init(serviceName, logLevel, isDevelopment)

	logger.Logger.Info().
		Str("service", serviceName).
		Str("environment", getEnv("ENVIRONMENT", "development")).
		Str("log_level", logLevel).
		Msg("Starting billing service")

	// Initialize tracer
	jaegerEndpoint := getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces")
	tp, err := tracing.InitTracer(serviceName, jaegerEndpoint)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to initialize tracer")
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(ctx, tp); err != nil {
				logger.Logger.Error().Err(err).Msg("Failed to shutdown tracer")
			}
		}()
	}

	// Load database configuration
	dbConfig := database.Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "billingdb"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Connect to database
	db, err := database.NewGormConnection(dbConfig)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to get database instance")
	}
	defer sqlDB.Close()

	// Run migrations
	if err := repository.NewGormLedger(db).AutoMigrate(); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	logger.Logger.Info().Msg("Database initialized successfully")

	// Initialize Redis for the accounting contact cache
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	redisPassword := getEnv("REDIS_PASSWORD", "")
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       0,
	})

	// Test Redis connection
	pingCtx := context.Background()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Logger.Warn().
			Err(err).
			Str("redis_addr", redisAddr).
			Msg("Failed to connect to Redis - contact caching will be disabled")
		redisClient = nil
	} else {
		logger.Logger.Info().
			Str("redis_addr", redisAddr).
			Msg("Connected to Redis for contact caching")
	}

	// Initialize Kafka publisher (events are optional; billing runs without them)
	kafkaBrokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	var notifier kafka.Notifier
	publisher, err := kafka.NewPublisher(kafkaBrokers)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("Kafka publisher unavailable - billing events disabled")
	} else {
		notifier = publisher
		defer publisher.Close()
	}

	// Payment gateway and accounting clients
	gatewayClient := gateway.NewClient(
		getEnv("GATEWAY_URL", "http://localhost:8090"),
		getEnv("GATEWAY_API_KEY", ""),
	)

	accountingURL := getEnv("ACCOUNTING_URL", "http://localhost:8091")
	accountingToken := getEnv("ACCOUNTING_TOKEN", "")
	accountingClient := accounting.NewHTTPClient(accountingURL, accountingToken)
	contactCacheTTL := parseDuration(getEnv("CONTACT_CACHE_TTL", "1h"), time.Hour)
	contacts := accounting.NewCachedContactResolver(
		accounting.NewHTTPContactResolver(accountingURL, accountingToken),
		redisClient,
		contactCacheTTL,
	)

	// Initialize service with Wire DI
	svc, err := ledger.InitializeService(db, gatewayClient, gatewayClient, notifier, accountingClient, contacts)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize billing service")
	}

	logger.Logger.Info().
		Str("gateway_url", getEnv("GATEWAY_URL", "http://localhost:8090")).
		Str("accounting_url", accountingURL).
		Msg("Billing service initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start background workers
	collectionInterval := parseDuration(getEnv("COLLECTION_INTERVAL", "24h"), 24*time.Hour)
	syncInterval := parseDuration(getEnv("SYNC_INTERVAL", "15m"), 15*time.Minute)
	processor.NewRunner(svc.Processor, collectionInterval).Start(ctx)
	reconcile.NewRunner(svc.Syncer, syncInterval).Start(ctx)

	// Start Kafka consumer for registration events
	if getEnv("KAFKA_CONSUMER_ENABLED", "true") == "true" {
		consumer, err := kafka.NewConsumer(
			kafkaBrokers,
			getEnv("KAFKA_GROUP_ID", "billing-service"),
			[]string{kafka.TopicRegistrationCompleted},
		)
		if err != nil {
			logger.Logger.Warn().Err(err).Msg("Kafka consumer unavailable - registration events disabled")
		} else {
			consumer.RegisterHandler(kafka.EventTypeRegistrationCompleted, svc.RegistrationHandler)
			if err := consumer.Start(ctx); err != nil {
				logger.Logger.Error().Err(err).Msg("Failed to start Kafka consumer")
			}
			defer consumer.Close()
		}
	}

	// Start HTTP server
	httpPort := getEnv("HTTP_PORT", "8085")
	go startHTTPServer(svc.Handler, sqlDB, httpPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info().Msg("Shutting down server...")
}

func startHTTPServer(billingHandler *handler.BillingHandler, db *sql.DB, port string) {
	// Setup router
	router := mux.NewRouter()

	// Register all middlewares using middleware registration system
	handler.RegisterMiddlewares(router, handler.DefaultMiddlewareConfig())

	// Register routes
	billingHandler.RegisterRoutes(router)

	// Health check endpoint
	billingHandler.RegisterHealthCheck(router, db)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	logger.Logger.Info().
		Str("port", port).
		Str("metrics_endpoint", "/metrics").
		Msg("HTTP server started")

	if err := http.ListenAndServe(":"+port, c.Handler(router)); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to start HTTP server")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
