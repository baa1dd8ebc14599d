package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"lootledger/api"
	"lootledger/config"
	"lootledger/database"
	"lootledger/domain/interfaces"
	"lootledger/domain/services"
	"lootledger/events"
	"lootledger/infrastructure"
	"lootledger/infrastructure/observability"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// app holds the wired services and the resources that must be closed on shutdown
type app struct {
	cfg     *config.Config
	db      *database.DB
	metrics *observability.MetricsProvider
	nats    *infrastructure.NATSClient
	redis   *redis.Client

	uowFactory interfaces.UnitOfWorkFactory
	engine     interfaces.FairnessEngine

	ledger interfaces.LedgerService
	wagers interfaces.WagerService
	audit  interfaces.AuditService
	resell interfaces.ResellService
}

// ConfigureLogging applies the configured level and formatter to the global logger
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// bootstrap connects every backing service and wires the domain on top of them.
// Without publishEvents, NATS is never dialled and events are dropped.
func bootstrap(ctx context.Context, cfg *config.Config, publishEvents bool) (*app, error) {
	a := &app{cfg: cfg}

	log.Info("Connecting to database...")
	db, err := database.NewConnectionWithMaxConns(ctx, cfg.GetDatabaseURL(), cfg.DatabaseMaxConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	log.Info("Database connection established successfully")

	log.Info("Initializing metrics...")
	a.metrics = observability.NewMetricsProvider(cfg)
	if err := a.metrics.Initialize(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	eventBus := events.NewBus()
	a.metrics.SubscribeToEvents(eventBus)

	var publisher interfaces.EventPublisher = eventBus
	switch {
	case !publishEvents:
		publisher = infrastructure.NewNoopEventPublisher()
	case cfg.NATSServers != "":
		log.WithField("servers", cfg.NATSServers).Info("Connecting to NATS...")
		a.nats = infrastructure.NewNATSClient(cfg.NATSServers)
		if err := a.nats.Connect(ctx); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		if err := infrastructure.EnsureLedgerStream(a.nats, cfg.NATSStream); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to ensure ledger stream: %w", err)
		}
		publisher = infrastructure.NewNATSEventPublisher(a.nats, infrastructure.NewEventSubjectMapper(), eventBus).
			WithRecorder(a.metrics)
		log.Info("NATS event publishing enabled")
	default:
		log.Info("NATS not configured, events stay in-process")
	}

	var locker interfaces.UserLocker = infrastructure.NoopUserLocker{}
	redisClient, err := infrastructure.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		a.close()
		return nil, err
	}
	if redisClient != nil {
		a.redis = redisClient
		locker = infrastructure.NewRedisUserLocker(redisClient, cfg.UserLockTTL)
	}

	uowFactory := infrastructure.NewUnitOfWorkFactory(db, publisher, a.metrics)
	engine := services.NewFairnessEngine()
	a.uowFactory = uowFactory
	a.engine = engine

	a.ledger = services.NewLedgerService(uowFactory, locker, a.metrics, cfg.MaxConflictRetries)
	a.wagers = services.NewWagerOrchestrator(uowFactory, locker, engine, a.ledger, a.metrics, cfg.MaxConflictRetries)
	a.audit = services.NewAuditVerifier(uowFactory, engine)
	a.resell = services.NewResellService(uowFactory, locker, a.ledger, a.metrics, cfg.MaxConflictRetries, cfg.ResellPercentage)

	return a, nil
}

func (a *app) close() {
	if a.nats != nil {
		if err := a.nats.Close(); err != nil {
			log.WithError(err).Warn("Error closing NATS connection")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.WithError(err).Warn("Error closing Redis client")
		}
	}
	if a.metrics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metrics.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Error shutting down metrics")
		}
		cancel()
	}
	if a.db != nil {
		log.Info("Closing database connection...")
		a.db.Close()
	}
}

// Run initializes and starts the HTTP service
func Run(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)
	log.WithField("environment", cfg.Environment).Info("Starting lootledger...")

	if err := database.RunMigrationsWithURL(cfg.GetDatabaseURL()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	a, err := bootstrap(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	handler := api.NewHandler(a.ledger, a.wagers, a.audit, a.resell, a.metrics)
	router := api.NewRouter(handler, api.RouterConfig{
		JWTSecret:       cfg.JWTSecret,
		AllowedOrigins:  cfg.AllowedOrigins,
		DemoSpinEnabled: cfg.DemoSpinEnabled,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down HTTP server...")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	// Give in-flight wagers time to commit
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown timed out")
	}

	log.Info("Shutdown completed")
	return nil
}
