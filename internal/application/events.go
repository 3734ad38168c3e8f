package application

import (
	"context"

	"go.uber.org/zap"

	"github.com/tokenstay/service-stay/internal/contracts"
	"github.com/tokenstay/service-stay/internal/platform/kafka"
)

// EventPublisher is the outbound side of the event bus.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// eventEmitter publishes domain events after a state change has committed.
// A nil publisher disables publishing. Failures are logged and never returned.
type eventEmitter struct {
	publisher EventPublisher
	topic     string
	logger    *zap.Logger
}

func newEventEmitter(publisher EventPublisher, topic string, logger *zap.Logger) eventEmitter {
	if topic == "" {
		topic = contracts.TopicStayEvents
	}
	return eventEmitter{publisher: publisher, topic: topic, logger: logger}
}

func (e eventEmitter) publish(ctx context.Context, eventType, subject string, data interface{}) {
	if e.publisher == nil {
		return
	}
	cloudEvent, err := kafka.NewCloudEvent(contracts.EventSource, eventType, data)
	if err != nil {
		e.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}
	cloudEvent.Subject = subject

	if err := e.publisher.PublishEvent(ctx, e.topic, cloudEvent); err != nil {
		e.logger.Error("failed to publish event",
			zap.String("topic", e.topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
