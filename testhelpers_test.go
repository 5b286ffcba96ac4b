//go:build integration

package main_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/serviceloop/service-booking/internal/application"
	bookingDomain "github.com/serviceloop/service-booking/internal/domain/booking"
	"github.com/serviceloop/service-booking/internal/domain/catalog"
	bookingEvents "github.com/serviceloop/service-booking/internal/events"
	"github.com/serviceloop/service-booking/internal/platform/kafka"
	"github.com/serviceloop/service-booking/internal/repository"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Bookings        *application.BookingService
	Catalog         *application.CatalogService
	Consumer        *bookingEvents.CatalogEventConsumer
	CleanupProducer func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_booking",
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

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_booking sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(
		&repository.BookingModel{},
		&repository.ModificationProposalModel{},
		&repository.ProviderModel{},
		&repository.ServicePackageModel{},
		&repository.PortfolioItemModel{},
	))
	// AutoMigrate cannot express the partial unique index.
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_proposals_one_pending
		ON modification_proposals (booking_id) WHERE status = 'pending'`).Error)

	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create the topics so the first publish doesn't race topic
	// auto-creation, then wait for the metadata to settle.
	topics := []string{bookingEvents.TopicBookingEvents, bookingEvents.TopicCatalogEvents}
	admin := &kafkago.Client{Addr: kafkago.TCP(kafkaBrokers...)}
	topicConfigs := make([]kafkago.TopicConfig, 0, len(topics))
	for _, topic := range topics {
		topicConfigs = append(topicConfigs, kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
	}
	createResp, err := admin.CreateTopics(ctx, &kafkago.CreateTopicsRequest{Topics: topicConfigs})
	require.NoError(t, err, "failed to create Kafka topics")
	for topic, topicErr := range createResp.Errors {
		require.NoErrorf(t, topicErr, "failed to create topic %s", topic)
	}
	require.Eventually(t, func() bool {
		meta, err := admin.Metadata(ctx, &kafkago.MetadataRequest{Topics: topics})
		if err != nil || len(meta.Topics) != len(topics) {
			return false
		}
		for _, topic := range meta.Topics {
			if topic.Error != nil {
				return false
			}
		}
		return true
	}, 15*time.Second, 250*time.Millisecond, "Kafka topic metadata did not settle")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupBookingStack wires up the full booking service stack.
func setupBookingStack(t *testing.T, db *gorm.DB, brokers []string) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	bookingRepo := repository.NewGormBookingRepository(db)
	providerRepo := repository.NewGormProviderRepository(db)
	packageRepo := repository.NewGormPackageRepository(db)
	portfolioRepo := repository.NewGormPortfolioRepository(db)

	producer := kafka.NewProducer(brokers, logger)
	publisher := bookingEvents.NewPublisher(producer, "service-booking-test")

	catalogSvc := application.NewCatalogService(providerRepo, packageRepo, portfolioRepo, nil, logger)
	bookingSvc := application.NewBookingService(
		bookingRepo, catalogSvc, bookingDomain.NewFlatRatePricingStrategy(), publisher, logger)

	groupID := fmt.Sprintf("test-booking-%s", uuid.New().String()[:8])
	consumer := bookingEvents.NewCatalogEventConsumer(brokers, groupID, catalogSvc, logger)

	return &bookingStack{
		Bookings:        bookingSvc,
		Catalog:         catalogSvc,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedProviderAndPackage inserts a provider with its category package set.
func seedProviderAndPackage(t *testing.T, db *gorm.DB, minimumCostCents, packagePriceCents int64) (uuid.UUID, uuid.UUID) {
	t.Helper()

	providerRepo := repository.NewGormProviderRepository(db)
	packageRepo := repository.NewGormPackageRepository(db)

	now := time.Now().UTC()
	provider := &catalog.Provider{
		ID:               uuid.New(),
		Name:             "Integration Electrician",
		Category:         "electrician",
		MinimumCostCents: minimumCostCents,
		Verified:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, providerRepo.Save(context.Background(), provider))

	slug := fmt.Sprintf("standard-%s", uuid.New().String()[:8])
	pkg, err := catalog.NewServicePackage("electrician", slug, "Standard Installation", "", packagePriceCents)
	require.NoError(t, err)
	require.NoError(t, packageRepo.Save(context.Background(), pkg))

	return provider.ID, pkg.ID()
}

// waitForBookingStatus polls the bookings table until the status matches.
func waitForBookingStatus(t *testing.T, db *gorm.DB, bookingID uuid.UUID, expectedStatus string, timeout time.Duration) repository.BookingModel {
	t.Helper()
	var result repository.BookingModel
	require.Eventually(t, func() bool {
		var model repository.BookingModel
		if err := db.Where("id = ?", bookingID).First(&model).Error; err != nil {
			return false
		}
		if model.Status == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "booking did not reach status %s", expectedStatus)
	return result
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType, key string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, key, ce)
	require.NoError(t, err, "failed to publish event")
}

// awaitPublished scans a single-partition topic from the beginning until an
// event of the wanted type appears. The test topics have one partition, so a
// plain partition reader is enough and no consumer group is needed.
func awaitPublished(t *testing.T, brokers []string, topic, wantType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MaxBytes:  10e6,
	})
	defer func() { _ = reader.Close() }()
	require.NoError(t, reader.SetOffset(kafkago.FirstOffset))

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			t.Fatalf("no %q event appeared on topic %q within %s: %v", wantType, topic, timeout, err)
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err == nil && ce.Type == wantType {
			return ce
		}
	}
}
