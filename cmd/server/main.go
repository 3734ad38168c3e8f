package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/tokenstay/service-stay/internal/application"
	"github.com/tokenstay/service-stay/internal/config"
	bookingDomain "github.com/tokenstay/service-stay/internal/domain/booking"
	"github.com/tokenstay/service-stay/internal/domain/money"
	"github.com/tokenstay/service-stay/internal/domain/uow"
	stayEvents "github.com/tokenstay/service-stay/internal/events"
	"github.com/tokenstay/service-stay/internal/handler"
	"github.com/tokenstay/service-stay/internal/lock"
	"github.com/tokenstay/service-stay/internal/platform/auth"
	"github.com/tokenstay/service-stay/internal/platform/clock"
	"github.com/tokenstay/service-stay/internal/platform/database"
	"github.com/tokenstay/service-stay/internal/platform/health"
	"github.com/tokenstay/service-stay/internal/platform/kafka"
	"github.com/tokenstay/service-stay/internal/platform/logger"
	"github.com/tokenstay/service-stay/internal/platform/middleware"
	"github.com/tokenstay/service-stay/internal/platform/observability"
	"github.com/tokenstay/service-stay/internal/repository"
	"github.com/tokenstay/service-stay/internal/repository/memory"
	"github.com/tokenstay/service-stay/internal/settlement"
)

const serviceName = "service-stay"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("storage", cfg.StorageDriver),
		zap.String("lock", cfg.LockBackend),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing
	if cfg.Tracing.Enabled {
		shutdownTracer, err := observability.InitTracer(ctx, serviceName, cfg.AppEnv, cfg.Tracing.Endpoint)
		if err != nil {
			log.Fatal("failed to initialize tracing", zap.Error(err))
		}
		defer func() { _ = shutdownTracer(context.Background()) }()
	}

	// Storage
	store, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("failed to open storage", zap.Error(err))
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		cfg.JWTConfig.AccessTTL,
		cfg.JWTConfig.RefreshTTL,
	)

	// Initialize Kafka producer; without brokers events are not published.
	var publisher application.EventPublisher
	if len(cfg.KafkaConfig.Brokers) > 0 {
		kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = kafkaProducer.Close() }()
		publisher = kafkaProducer
	} else {
		log.Warn("no kafka brokers configured; domain events are disabled")
	}

	// Per-home lock
	readiness := map[string]health.Pinger{"storage": store}
	var locker lock.Locker
	switch cfg.LockBackend {
	case config.LockRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		defer func() { _ = client.Close() }()
		readiness["redis"] = health.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		locker = lock.NewRedis(client, cfg.RedisConfig.LockTTL, log)
	default:
		locker = lock.NewLocal()
	}

	// Settlement backends
	operator, err := uuid.Parse(cfg.Settlement.OperatorID)
	if err != nil {
		log.Fatal("invalid settlement operator ID", zap.Error(err))
	}
	clk := clock.Real()
	ledgers := map[money.Instrument]*settlement.Ledger{
		money.InstrumentA: settlement.NewLedger(money.InstrumentA, log),
		money.InstrumentB: settlement.NewLedger(money.InstrumentB, log),
	}
	registry := settlement.NewMembershipRegistry(clk)
	gateway := settlement.NewGateway(operator, map[money.Instrument]settlement.Token{
		money.InstrumentA: settlement.NewGatedToken(ledgers[money.InstrumentA], registry),
		money.InstrumentB: ledgers[money.InstrumentB],
	}, log)

	// Initialize application services
	pricingStrategy := bookingDomain.NewDailyRateStrategy()
	topic := cfg.KafkaConfig.EventsTopic

	listingService := application.NewListingService(store, locker, clk, cfg.Calendar.HorizonDays, publisher, topic, log)
	bookingService := application.NewBookingService(store, locker, gateway, pricingStrategy, clk, publisher, topic, log)
	sharedService := application.NewSharedBookingService(store, locker, gateway, pricingStrategy, clk, publisher, topic, log)
	ledgerService := application.NewLedgerService(ledgers, registry, operator, clk, cfg.Settlement.MembershipTTL, log)

	// Membership event consumer
	if len(cfg.KafkaConfig.Brokers) > 0 {
		groupID := cfg.KafkaConfig.GroupPrefix + serviceName
		membershipConsumer := stayEvents.NewMembershipEventConsumer(
			cfg.KafkaConfig.Brokers,
			groupID,
			cfg.KafkaConfig.MembershipTopic,
			ledgerService,
			log,
		)
		defer func() { _ = membershipConsumer.Close() }()

		go func() {
			log.Info("starting membership event consumer")
			if err := membershipConsumer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("membership event consumer error", zap.Error(err))
			}
		}()
	}

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	health.NewHandler(serviceName, readiness).RegisterRoutes(router)

	// Register routes
	handler.NewHomeHandler(listingService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewBookingHandler(bookingService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewSharedBookingHandler(sharedService).RegisterRoutes(&router.RouterGroup, jwtManager)
	handler.NewAdminLedgerHandler(ledgerService).RegisterRoutes(&router.RouterGroup, jwtManager)

	var httpHandler http.Handler = router
	if cfg.Tracing.Enabled {
		httpHandler = otelhttp.NewHandler(router, serviceName)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down " + serviceName + "...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info(serviceName + " stopped")
}

// openStore returns the unit of work for the configured storage driver,
// applying migrations when it is backed by PostgreSQL.
func openStore(cfg *config.ServiceConfig, log *zap.Logger) (uow.Transactor, error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn("using in-memory storage; state is lost on restart")
		return memory.NewUnitOfWork(), nil
	}

	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		return nil, err
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := repository.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("failed to run auto-migration: %w", err)
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else if err := database.RunMigrations(dbConfig.DatabaseURL(), "migrations", log); err != nil {
		return nil, err
	}
	return repository.NewGormUnitOfWork(db), nil
}
