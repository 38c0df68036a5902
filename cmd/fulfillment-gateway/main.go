package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	fulfillmentAPI "github.com/Mrhamza01/prlabel/internal/api/fulfillment"
	"github.com/Mrhamza01/prlabel/internal/application"
	mongoRepo "github.com/Mrhamza01/prlabel/internal/infrastructure/mongodb"
	"github.com/Mrhamza01/prlabel/pkg/cloudevents"
	"github.com/Mrhamza01/prlabel/pkg/kafka"
	"github.com/Mrhamza01/prlabel/pkg/logging"
	"github.com/Mrhamza01/prlabel/pkg/metrics"
	"github.com/Mrhamza01/prlabel/pkg/middleware"
	"github.com/Mrhamza01/prlabel/pkg/mongodb"
	"github.com/Mrhamza01/prlabel/pkg/outbox"
	"github.com/Mrhamza01/prlabel/pkg/tracing"
)

const serviceName = "fulfillment-gateway"

func main() {
	logger := logging.New(logging.DefaultConfig(serviceName))
	logger.SetDefault()

	logger.Info("Starting fulfillment-gateway")

	config := loadConfig()
	ctx := context.Background()

	tracingConfig := tracing.DefaultConfig(serviceName)
	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		// Continue without tracing
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", tracingConfig.OTLPEndpoint)
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))

	mongoClient, err := mongodb.NewClient(ctx, config.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	instrumentedMongo := mongodb.NewInstrumentedClient(mongoClient, m, logger)
	defer instrumentedMongo.Close(context.Background())
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceFulfillmentGateway)
	repo := mongoRepo.NewPickListRepository(instrumentedMongo, eventFactory)

	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to create indexes")
	}

	if config.SeedFile != "" {
		if err := seed(ctx, repo, config.SeedFile); err != nil {
			logger.WithError(err).Error("Failed to import seed file", "path", config.SeedFile)
			os.Exit(1)
		}
		logger.Info("Seed file imported", "path", config.SeedFile)
	}

	if config.OutboxEnabled {
		producer := kafka.NewProducer(config.Kafka)
		defer producer.Close()

		outboxPublisher := outbox.NewPublisher(
			repo.OutboxRepository(),
			kafka.NewInstrumentedProducer(producer, m, logger),
			logger,
			m,
			&outbox.PublisherConfig{
				PollInterval: config.OutboxPollInterval,
				BatchSize:    100,
			},
		)
		if err := outboxPublisher.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start outbox publisher")
			os.Exit(1)
		}
		defer outboxPublisher.Stop()
		logger.Info("Outbox publisher started", "brokers", config.Kafka.Brokers)
	} else {
		logger.Info("Outbox publisher disabled; events stay in the outbox collection")
	}

	service := application.NewFulfillmentService(repo, logger, m)

	router := gin.New()
	middleware.Setup(router, middleware.DefaultConfig(serviceName, logger.Logger))
	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.TracingMiddleware(serviceName))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func(c *gin.Context) error {
		return instrumentedMongo.HealthCheck(c.Request.Context())
	}))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	fulfillmentAPI.NewHandlers(service, logger).RegisterRoutes(&router.RouterGroup)

	srv := &http.Server{
		Addr:         config.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Server error")
			os.Exit(1)
		}
	}()
	logger.Info("Server started", "addr", config.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}

func seed(ctx context.Context, repo *mongoRepo.PickListRepository, path string) error {
	fixture, err := mongoRepo.LoadFixture(path)
	if err != nil {
		return err
	}
	return repo.Import(ctx, fixture)
}

// Config holds application configuration
type Config struct {
	ServerAddr         string
	ShutdownTimeout    time.Duration
	SeedFile           string
	OutboxEnabled      bool
	OutboxPollInterval time.Duration
	MongoDB            *mongodb.Config
	Kafka              *kafka.Config
}

func loadConfig() *Config {
	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = kafka.ParseBrokers(getEnv("KAFKA_BROKERS", "localhost:9092"))
	kafkaConfig.ClientID = serviceName

	return &Config{
		ServerAddr:         getEnv("SERVER_ADDR", ":3000"),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		SeedFile:           os.Getenv("SEED_FILE"),
		OutboxEnabled:      getEnv("OUTBOX_ENABLED", "true") == "true",
		OutboxPollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", time.Second),
		MongoDB:            mongodb.ConfigFromEnv(),
		Kafka:              kafkaConfig,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
