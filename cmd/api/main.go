package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/printflow/job-lifecycle/pkg/cloudevents"
	"github.com/printflow/job-lifecycle/pkg/contracts/asyncapi"
	"github.com/printflow/job-lifecycle/pkg/contracts/openapi"
	"github.com/printflow/job-lifecycle/pkg/kafka"
	"github.com/printflow/job-lifecycle/pkg/logging"
	"github.com/printflow/job-lifecycle/pkg/metrics"
	"github.com/printflow/job-lifecycle/pkg/middleware"
	"github.com/printflow/job-lifecycle/pkg/outbox"
	"github.com/printflow/job-lifecycle/pkg/tracing"

	"github.com/printflow/job-lifecycle/internal/application"
	"github.com/printflow/job-lifecycle/internal/domain"
	"github.com/printflow/job-lifecycle/internal/infrastructure/events"
	"github.com/printflow/job-lifecycle/internal/notifier"
)

const serviceName = "job-lifecycle"

func main() {
	// Load configuration before the logger so LOG_LEVEL from files applies
	config, err := loadConfig()
	instanceID := uuid.NewString()

	logConfig := logging.DefaultConfig(serviceName)
	if config != nil {
		logConfig.Level = logging.ParseLevel(config.LogLevel)
		logConfig.Environment = config.Environment
	}
	logConfig.InstanceID = instanceID
	logger := logging.New(logConfig)
	logger.SetDefault()

	if err != nil {
		logger.WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}
	logger.Info("Starting job-lifecycle API", "backend", config.StoreBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = config.OTLPEndpoint
	tracingConfig.Environment = config.Environment
	tracingConfig.Enabled = config.TracingEnabled

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
		logger.Info("Tracing initialized", "enabled", tracingConfig.Enabled, "endpoint", tracingConfig.OTLPEndpoint)
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))

	// Lifecycle events are enveloped once and shared by the outbox and the bridge
	eventFactory := cloudevents.NewEventFactory(instanceID)
	var eventValidator *asyncapi.EventValidator
	if config.EventSchemaValidation {
		eventValidator, err = asyncapi.NewLifecycleValidator()
		if err != nil {
			logger.WithError(err).Error("Failed to load event contract")
			os.Exit(1)
		}
	}
	envelopes := events.NewEnvelopeBuilder(eventFactory, config.KafkaTopic, envelopeValidator(eventValidator))

	store, err := openBackend(ctx, config, envelopes, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to open store", "backend", config.StoreBackend)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.close(closeCtx); err != nil {
			logger.WithError(err).Warn("Failed to close store")
		}
	}()

	producer := kafka.NewProductionProducer(config.Kafka, m, logger)
	defer producer.Close()
	logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers, "topic", config.KafkaTopic)

	publisherConfig := outbox.DefaultPublisherConfig()
	publisherConfig.PollInterval = config.OutboxPollInterval
	outboxPublisher := outbox.NewPublisher(store.outbox, producer, logger, m, publisherConfig)
	if err := outboxPublisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	defer outboxPublisher.Stop()

	hub := notifier.NewHub(config.NotifierBuffer, logger, m)
	defer hub.Close()

	if config.KafkaBridgeEnabled {
		bridgeConfig := *config.Kafka
		bridgeConfig.ConsumerGroup = serviceName + "-" + instanceID
		bridgeConfig.StartFromLatest = true
		consumer := kafka.NewProductionConsumer(&bridgeConfig, m, logger)

		bridge := notifier.NewKafkaBridge(consumer, hub, config.KafkaTopic, eventFactory.Source(), bridgeValidator(eventValidator), logger)
		defer bridge.Close()
		go func() {
			if err := bridge.Run(ctx); err != nil {
				logger.WithError(err).Error("Kafka bridge stopped")
			}
		}()
	}

	lifecycleService := application.NewJobLifecycleService(
		store.jobs,
		store.ledger,
		domain.NewStateMachineRegistry(),
		hub,
		m,
		logger,
		application.ServiceConfig{
			StrictStageOrder: config.StrictStageOrder,
			StatsCacheTTL:    config.StatsCacheTTL,
		},
	)

	var requestValidator *openapi.Validator
	if config.OpenAPIValidation {
		requestValidator, err = openapi.NewLifecycleValidator()
		if err != nil {
			logger.WithError(err).Error("Failed to load HTTP contract")
			os.Exit(1)
		}
	}

	router := setupRouter(lifecycleService, hub, m, logger, routerOptions{
		ready:            store.health,
		requestValidator: requestValidator,
		resyncInterval:   config.NotifierResyncInterval,
		requestTimeout:   config.RequestTimeout,
	})

	// No WriteTimeout: the event stream is long-lived
	srv := &http.Server{
		Addr:              config.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
		}
	}()
	logger.Info("Server started", "addr", config.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Closing the hub ends open streams so Shutdown does not wait on them
	hub.Close()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}

type routerOptions struct {
	ready            func(ctx context.Context) error
	requestValidator *openapi.Validator
	resyncInterval   time.Duration
	requestTimeout   time.Duration
}

func setupRouter(service *application.JobLifecycleService, hub *notifier.Hub, m *metrics.Metrics, logger *logging.Logger, opts routerOptions) *gin.Engine {
	router := gin.New()

	middleware.Setup(router, middleware.DefaultConfig(serviceName, logger.Logger))
	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.TracingMiddleware(middleware.DefaultTracingConfig(serviceName)))

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, opts.ready))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	apiV1 := router.Group("/api/v1")
	if opts.requestValidator != nil {
		apiV1.Use(contractValidation(opts.requestValidator, logger))
	}

	// every route but the event stream is bounded
	bounded := apiV1.Group("")
	if opts.requestTimeout > 0 {
		bounded.Use(middleware.Timeout(opts.requestTimeout))
	}

	jobs := bounded.Group("/jobs")
	{
		jobs.POST("", createJobHandler(service, logger))
		jobs.GET("", listJobsHandler(service, logger))
		jobs.GET("/:jobId", getJobHandler(service, logger))
		jobs.POST("/:jobId/transitions", transitionJobHandler(service, logger))
		jobs.GET("/:jobId/transitions/:domain", nextStatusesHandler(service, logger))
		jobs.PUT("/:jobId/stages/:department", updateStageHandler(service, logger))
		jobs.GET("/:jobId/progress", getProgressHandler(service, logger))
		jobs.POST("/:jobId/assignments", assignJobHandler(service, logger))
		jobs.POST("/:jobId/reassignments", reassignJobHandler(service, logger))
		jobs.POST("/:jobId/unassignments", unassignJobHandler(service, logger))
		jobs.GET("/:jobId/assignments", assignmentHistoryHandler(service, logger))
	}

	bounded.GET("/stats/departments", departmentStatsHandler(service, logger))
	bounded.GET("/state-machines/:domain", stateMachineHandler(service, logger))
	apiV1.GET("/events", streamEventsHandler(service, hub, opts.resyncInterval, logger))

	return router
}

// envelopeValidator avoids handing a typed nil to the interface
func envelopeValidator(v *asyncapi.EventValidator) events.Validator {
	if v == nil {
		return nil
	}
	return v
}

func bridgeValidator(v *asyncapi.EventValidator) notifier.EventValidator {
	if v == nil {
		return nil
	}
	return v
}
