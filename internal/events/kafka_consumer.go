package events

import (
	"context"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/serviceloop/service-booking/internal/platform/kafka"
)

// ProviderCacheInvalidator drops cached provider state after an upstream
// profile change. The application layer's catalog service satisfies it.
type ProviderCacheInvalidator interface {
	InvalidateProvider(ctx context.Context, id uuid.UUID)
}

// CatalogEventConsumer listens to the catalog topic and drops stale provider
// cache entries when profiles change upstream. Bookings are never touched:
// fees are captured at creation, so a catalog change only affects new quotes.
type CatalogEventConsumer struct {
	consumer *kafka.Consumer
	catalog  ProviderCacheInvalidator
	logger   *zap.Logger
}

// NewCatalogEventConsumer creates a consumer bound to the catalog topic.
func NewCatalogEventConsumer(brokers []string, groupID string, catalog ProviderCacheInvalidator, logger *zap.Logger) *CatalogEventConsumer {
	return &CatalogEventConsumer{
		consumer: kafka.NewConsumer(brokers, groupID, TopicCatalogEvents, logger),
		catalog:  catalog,
		logger:   logger,
	}
}

// Start consumes catalog events until the context is cancelled.
func (c *CatalogEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka reader.
func (c *CatalogEventConsumer) Close() error {
	return c.consumer.Close()
}

// handleMessage processes one catalog event. Malformed messages are logged
// and committed so they cannot wedge the partition.
func (c *CatalogEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	event, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Warn("skipping malformed catalog event",
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return nil
	}

	switch event.Type {
	case CatalogProviderUpdated:
		var payload ProviderUpdatedEvent
		if err := event.ParseData(&payload); err != nil {
			c.logger.Warn("skipping catalog event with bad payload",
				zap.String("event_type", event.Type),
				zap.Error(err),
			)
			return nil
		}
		c.catalog.InvalidateProvider(ctx, payload.ProviderID)
		c.logger.Info("invalidated provider cache",
			zap.String("provider_id", payload.ProviderID.String()),
		)
	default:
		c.logger.Debug("ignoring catalog event", zap.String("event_type", event.Type))
	}
	return nil
}
