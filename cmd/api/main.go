package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Ramsey-B/laurel/config"
	"github.com/Ramsey-B/laurel/internal/handlers"
	assignmentrepo "github.com/Ramsey-B/laurel/internal/repositories/assignment"
	catalogrepo "github.com/Ramsey-B/laurel/internal/repositories/catalog"
	employeerepo "github.com/Ramsey-B/laurel/internal/repositories/employee"
	idempotencyrepo "github.com/Ramsey-B/laurel/internal/repositories/idempotency"
	loanticketrepo "github.com/Ramsey-B/laurel/internal/repositories/loanticket"
	pendingchangerepo "github.com/Ramsey-B/laurel/internal/repositories/pendingchange"
	uploadrepo "github.com/Ramsey-B/laurel/internal/repositories/upload"
	assignmentservice "github.com/Ramsey-B/laurel/internal/services/assignment"
	catalogservice "github.com/Ramsey-B/laurel/internal/services/catalog"
	dashboardservice "github.com/Ramsey-B/laurel/internal/services/dashboard"
	loanticketservice "github.com/Ramsey-B/laurel/internal/services/loanticket"
	pendingchangeservice "github.com/Ramsey-B/laurel/internal/services/pendingchange"
	uploadservice "github.com/Ramsey-B/laurel/internal/services/upload"
	"github.com/Ramsey-B/laurel/pkg/audit"
	"github.com/Ramsey-B/laurel/pkg/cache"
	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/events"
	"github.com/Ramsey-B/laurel/pkg/kafka"
	"github.com/Ramsey-B/laurel/pkg/middleware"
	"github.com/Ramsey-B/laurel/pkg/storage"
	"github.com/Ramsey-B/laurel/pkg/tracing"
	"github.com/Ramsey-B/laurel/pkg/tracing/exporters"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)
	ctx := context.Background()

	shutdownTracing := setupTracing(ctx, cfg, logger)
	defer shutdownTracing()

	db, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	if err := runMigrations(cfg, db, logger); err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}

	dbInstance := database.NewDatabaseInstance(db, logger)

	cacheClient := newCache(cfg, logger)
	notifier, closeNotifier := newNotifier(cfg, logger)
	defer closeNotifier()

	storageClient, err := storage.NewClient(ctx, storage.Config{
		Endpoint:     cfg.StorageEndpoint,
		AccessKey:    cfg.StorageAccessKey,
		SecretKey:    cfg.StorageSecretKey,
		Bucket:       cfg.StorageBucket,
		UseSSL:       cfg.StorageUseSSL,
		SignedURLTTL: cfg.StorageSignedURLTTL,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to object storage")
		os.Exit(1)
	}

	auditSink := audit.NewDBSink(dbInstance, logger)

	changes := pendingchangerepo.NewRepository(dbInstance, logger)
	ledger := idempotencyrepo.NewRepository(dbInstance, logger)
	properties := catalogrepo.NewProperties(dbInstance, logger)
	banners := catalogrepo.NewBanners(dbInstance, logger)
	uploads := uploadrepo.NewRepository(dbInstance, logger)
	assignments := assignmentrepo.NewRepository(dbInstance, logger)
	tickets := loanticketrepo.NewRepository(dbInstance, logger)
	employees := employeerepo.NewRepository(dbInstance, logger)

	changeService := pendingchangeservice.NewService(changes, ledger, properties, banners, uploads, assignments, notifier, auditSink, cacheClient, logger)
	assignmentService := assignmentservice.NewService(assignments, employees, properties, notifier, auditSink, logger)
	uploadService := uploadservice.NewService(uploads, storageClient, logger)
	ticketService := loanticketservice.NewService(tickets, employees, notifier, auditSink, time.Duration(cfg.TicketSLAHours)*time.Hour, logger)
	dashboardService := dashboardservice.NewService(changes, properties, banners, tickets, cacheClient, cfg.DashboardTTL, logger)
	catalogService := catalogservice.NewService(properties, banners, employees, auditSink, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	if cfg.TracingEnabled {
		e.Use(otelecho.Middleware(cfg.AppName))
	}
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	handlers.NewHealthHandler(dbInstance).RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	if cfg.AuthEnabled {
		api.Use(middleware.Authentication(logger, cfg.AuthIssuerURL, cfg.AuthClientID))
	}

	handlers.NewChangeHandler(changeService).RegisterRoutes(api)
	handlers.NewAssignmentHandler(assignmentService).RegisterRoutes(api)
	handlers.NewUploadHandler(uploadService).RegisterRoutes(api)
	handlers.NewTicketHandler(ticketService).RegisterRoutes(api)
	handlers.NewDashboardHandler(dashboardService).RegisterRoutes(api)
	handlers.NewCatalogHandler(catalogService).RegisterRoutes(api)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		ReadTimeout:  time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
	}

	go func() {
		logger.Infof("%s listening on port %d", cfg.AppName, cfg.Port)
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server stopped unexpectedly")
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}

func newLogger(cfg config.Config) ectologger.Logger {
	zapConfig := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapConfig = zap.NewDevelopmentConfig()
	}
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zapConfig.Level = level
	}

	zapLogger, err := zapConfig.Build()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

// connectDatabase dials postgres with fibonacci backoff between attempts,
// matching the startup budget in config.
func connectDatabase(ctx context.Context, cfg config.Config, logger ectologger.Logger) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode,
	)

	var db *sqlx.DB
	var err error
	a, b := 1, 1
	for attempt := 1; attempt <= cfg.StartupMaxAttempts; attempt++ {
		db, err = sqlx.ConnectContext(ctx, cfg.DatabaseDriver, dsn)
		if err == nil {
			break
		}

		logger.WithError(err).Warnf("Database connection attempt %d/%d failed", attempt, cfg.StartupMaxAttempts)
		if attempt == cfg.StartupMaxAttempts {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(a) * time.Second):
		}
		a, b = b, a+b
	}

	db.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

	logger.Infof("Connected to database %s on %s", cfg.DatabaseName, cfg.DatabaseHost)
	return db, nil
}

func runMigrations(cfg config.Config, db *sqlx.DB, logger ectologger.Logger) error {
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return err
	}

	migrationService := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})

	return migrationService.Migrate(cfg.DatabaseName, driver)
}

// newCache prefers redis but degrades to the in-process cache when redis is
// unreachable; the dashboard tolerates stale or missing cache entries.
func newCache(cfg config.Config, logger ectologger.Logger) cache.Cache {
	redisCache, err := cache.NewRedisCache(cache.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, using in-process cache")
		return cache.NewMemoryCache(nil)
	}
	return redisCache
}

func newNotifier(cfg config.Config, logger ectologger.Logger) (events.Notifier, func()) {
	if !cfg.KafkaEnabled {
		logger.Info("Kafka disabled, notifications will be dropped")
		return events.NopNotifier{}, func() {}
	}

	producerConfig := kafka.DefaultProducerConfig()
	producerConfig.Brokers = cfg.KafkaBrokers
	producerConfig.Topic = cfg.KafkaNotificationTopic
	producerConfig.BatchSize = cfg.KafkaBatchSize
	producerConfig.BatchTimeout = cfg.KafkaBatchTimeout
	producerConfig.RequiredAcks = cfg.KafkaRequiredAcks
	producerConfig.Compression = cfg.KafkaCompression

	producer, err := kafka.NewProducer(producerConfig, logger)
	if err != nil {
		logger.WithError(err).Warn("Kafka producer setup failed, notifications will be dropped")
		return events.NopNotifier{}, func() {}
	}

	return events.NewEmitter(producer, logger), func() {
		if err := producer.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close kafka producer")
		}
	}
}

func setupTracing(ctx context.Context, cfg config.Config, logger ectologger.Logger) func() {
	if !cfg.TracingEnabled {
		return func() {}
	}

	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.TracingOTLPEndpoint,
		Protocol: cfg.TracingOTLPProtocol,
		Insecure: true,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		logger.WithError(err).Warn("Tracing exporter setup failed, tracing disabled")
		return func() {}
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.AppName),
		)),
	)
	otel.SetTracerProvider(provider)
	tracing.SetTracer(provider.Tracer(cfg.AppName))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Tracing shutdown failed")
		}
	}
}
