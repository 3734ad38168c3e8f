//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tokenstay/service-stay/internal/application"
	"github.com/tokenstay/service-stay/internal/contracts"
	bookingDomain "github.com/tokenstay/service-stay/internal/domain/booking"
	"github.com/tokenstay/service-stay/internal/domain/calendar"
	"github.com/tokenstay/service-stay/internal/domain/money"
	stayEvents "github.com/tokenstay/service-stay/internal/events"
	"github.com/tokenstay/service-stay/internal/lock"
	"github.com/tokenstay/service-stay/internal/platform/clock"
	"github.com/tokenstay/service-stay/internal/platform/database"
	"github.com/tokenstay/service-stay/internal/platform/kafka"
	"github.com/tokenstay/service-stay/internal/repository"
	"github.com/tokenstay/service-stay/internal/settlement"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	Redis        *redis.Client
	KafkaBrokers []string
	Cleanup      func()
}

// stayStack holds wired-up stay service components.
type stayStack struct {
	Listings        *application.ListingService
	Bookings        *application.BookingService
	Shared          *application.SharedBookingService
	Ledgers         *application.LedgerService
	Registry        *settlement.MembershipRegistry
	LedgerA         *settlement.Ledger
	LedgerB         *settlement.Ledger
	Operator        uuid.UUID
	Consumer        *stayEvents.MembershipEventConsumer
	CleanupProducer func()
}

// setupContainers starts PostgreSQL, Redis and Kafka testcontainers and
// returns a migrated GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	logger, _ := zap.NewDevelopment()

	// Start PostgreSQL container with log-based wait strategy.
	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_stay",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dbConfig := database.PostgresConfig{
		Host:     pgHost,
		Port:     pgPort.Port(),
		User:     "test",
		Password: "test",
		DBName:   "test_stay",
		SSLMode:  "disable",
	}

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = database.Connect(dbConfig, logger)
		return err == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, database.RunMigrations(dbConfig.DatabaseURL(), "migrations", logger))

	// Start Redis for the distributed home lock.
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start Redis container")
	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)
	redisClient := redis.NewClient(&redis.Options{Addr: net.JoinHostPort(redisHost, redisPort.Port())})

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers, contracts.TopicStayEvents, contracts.TopicMembershipEvents)

	cleanup := func() {
		_ = redisClient.Close()
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		Redis:        redisClient,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupStayStack wires up the full stay service stack over PostgreSQL, Redis and Kafka.
func setupStayStack(t *testing.T, infra *testInfra) *stayStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	clk := clock.Real()

	store := repository.NewGormUnitOfWork(infra.DB)
	locker := lock.NewRedis(infra.Redis, 10*time.Second, logger)
	producer := kafka.NewProducer(infra.KafkaBrokers, logger)
	pricing := bookingDomain.NewDailyRateStrategy()
	operator := uuid.New()

	ledgerA := settlement.NewLedger(money.InstrumentA, logger)
	ledgerB := settlement.NewLedger(money.InstrumentB, logger)
	registry := settlement.NewMembershipRegistry(clk)
	gateway := settlement.NewGateway(operator, map[money.Instrument]settlement.Token{
		money.InstrumentA: settlement.NewGatedToken(ledgerA, registry),
		money.InstrumentB: ledgerB,
	}, logger)

	ledgerSvc := application.NewLedgerService(map[money.Instrument]*settlement.Ledger{
		money.InstrumentA: ledgerA,
		money.InstrumentB: ledgerB,
	}, registry, operator, clk, time.Hour, logger)

	groupID := fmt.Sprintf("test-stay-%s", uuid.New().String()[:8])
	consumer := stayEvents.NewMembershipEventConsumer(infra.KafkaBrokers, groupID, contracts.TopicMembershipEvents, ledgerSvc, logger)

	return &stayStack{
		Listings:        application.NewListingService(store, locker, clk, calendar.DefaultHorizon, producer, contracts.TopicStayEvents, logger),
		Bookings:        application.NewBookingService(store, locker, gateway, pricing, clk, producer, contracts.TopicStayEvents, logger),
		Shared:          application.NewSharedBookingService(store, locker, gateway, pricing, clk, producer, contracts.TopicStayEvents, logger),
		Ledgers:         ledgerSvc,
		Registry:        registry,
		LedgerA:         ledgerA,
		LedgerB:         ledgerB,
		Operator:        operator,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedListedHome registers an active home through the listing service.
func seedListedHome(t *testing.T, stack *stayStack, owner uuid.UUID, pricePerDay int64) int64 {
	t.Helper()
	ctx := context.Background()
	home, err := stack.Listings.Register(ctx, owner, application.RegisterHomeRequest{
		ContentRef: fmt.Sprintf("%064x", time.Now().UnixNano()),
		PriceA:     money.MustAmount(pricePerDay),
		PriceB:     money.MustAmount(pricePerDay),
		AcceptsA:   true,
		AcceptsB:   true,
	})
	require.NoError(t, err, "failed to register home")
	_, err = stack.Listings.SetActive(ctx, owner, home.HomeID, true)
	require.NoError(t, err, "failed to list home")
	return home.HomeID
}

// fund mints and approves tokens so the operator can pull them.
func fund(stack *stayStack, ledger *settlement.Ledger, party uuid.UUID, units int64) {
	ledger.Mint(party, money.MustAmount(units))
	ledger.Approve(party, stack.Operator, money.MustAmount(units))
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
