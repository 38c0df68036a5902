package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	labelsAPI "github.com/Mrhamza01/prlabel/internal/api/labels"
	"github.com/Mrhamza01/prlabel/internal/infrastructure/carrier"
	"github.com/Mrhamza01/prlabel/internal/infrastructure/printer"
	"github.com/Mrhamza01/prlabel/internal/printing"
	"github.com/Mrhamza01/prlabel/pkg/cloudevents"
	"github.com/Mrhamza01/prlabel/pkg/kafka"
	"github.com/Mrhamza01/prlabel/pkg/logging"
	"github.com/Mrhamza01/prlabel/pkg/metrics"
	"github.com/Mrhamza01/prlabel/pkg/middleware"
	"github.com/Mrhamza01/prlabel/pkg/tracing"
)

const serviceName = "print-gateway"

func main() {
	logger := logging.New(logging.DefaultConfig(serviceName))
	logger.SetDefault()

	logger.Info("Starting print-gateway")

	config := loadConfig()
	ctx := context.Background()

	tracingConfig := tracing.DefaultConfig(serviceName)
	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
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

	if config.Carrier.APIKey == "" {
		logger.Warn("CARRIER_API_KEY is not set; carrier requests will be rejected")
	}
	shipStation := carrier.NewShipStationAdapter(config.Carrier, logger, m)

	registry, err := printer.LoadRegistry(config.PrintersFile, config.Printers)
	if err != nil {
		logger.WithError(err).Error("Failed to load printers", "path", config.PrintersFile)
		os.Exit(1)
	}
	if def, _, err := registry.Default(); err == nil {
		logger.Info("Printers loaded", "count", len(registry.Printers()), "default", def.Name)
	} else {
		logger.Warn("No printers configured; print requests will fail")
	}

	var opts []printing.Option
	if config.EventsEnabled {
		producer := kafka.NewProducer(config.Kafka)
		defer producer.Close()

		opts = append(opts, printing.WithEventPublisher(
			kafka.NewInstrumentedProducer(producer, m, logger),
			cloudevents.NewEventFactory(cloudevents.SourcePrintGateway),
			kafka.Topics.DispatchEvents,
		))
		logger.Info("Label printed events enabled", "brokers", config.Kafka.Brokers)
	}

	service := printing.NewService(shipStation, registry, logger, m, opts...)

	router := gin.New()
	middleware.Setup(router, middleware.DefaultConfig(serviceName, logger.Logger))
	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.TracingMiddleware(serviceName))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func(c *gin.Context) error {
		_, err := service.DefaultPrinter(c.Request.Context())
		return err
	}))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	labelsAPI.NewHandlers(service, logger).RegisterRoutes(&router.RouterGroup)

	srv := &http.Server{
		Addr:         config.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
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

// Config holds application configuration
type Config struct {
	ServerAddr      string
	ShutdownTimeout time.Duration
	PrintersFile    string
	Printers        printer.Defaults
	EventsEnabled   bool
	Carrier         *carrier.Config
	Kafka           *kafka.Config
}

func loadConfig() *Config {
	carrierConfig := carrier.DefaultConfig()
	carrierConfig.BaseURL = getEnv("CARRIER_BASE_URL", carrierConfig.BaseURL)
	carrierConfig.APIKey = os.Getenv("CARRIER_API_KEY")
	carrierConfig.Timeout = getEnvDuration("CARRIER_TIMEOUT", carrierConfig.Timeout)

	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = kafka.ParseBrokers(getEnv("KAFKA_BROKERS", "localhost:9092"))
	kafkaConfig.ClientID = serviceName

	return &Config{
		ServerAddr:      getEnv("SERVER_ADDR", ":4000"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		PrintersFile:    os.Getenv("PRINTERS_FILE"),
		Printers: printer.Defaults{
			DefaultPrinter: os.Getenv("DEFAULT_PRINTER"),
			SpoolDir:       getEnv("SPOOL_DIR", "./labels"),
			Command:        strings.Fields(os.Getenv("PRINT_COMMAND")),
		},
		EventsEnabled: getEnv("EVENTS_ENABLED", "false") == "true",
		Carrier:       carrierConfig,
		Kafka:         kafkaConfig,
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
