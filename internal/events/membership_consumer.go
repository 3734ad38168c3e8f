package events

import (
	"context"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/tokenstay/service-stay/internal/application"
	"github.com/tokenstay/service-stay/internal/contracts"
	"github.com/tokenstay/service-stay/internal/platform/kafka"
)

// MembershipService applies membership changes to the gated token.
type MembershipService interface {
	VerifyMember(ctx context.Context, req application.VerifyMemberRequest) (*application.MembershipDTO, error)
	RevokeMember(ctx context.Context, party uuid.UUID, reason string)
}

// MembershipEventConsumer listens to membership events and keeps the
// membership registry of the gated instrument current.
type MembershipEventConsumer struct {
	consumer *kafka.Consumer
	service  MembershipService
	logger   *zap.Logger
}

// NewMembershipEventConsumer creates a new MembershipEventConsumer.
func NewMembershipEventConsumer(
	brokers []string,
	groupID string,
	topic string,
	service MembershipService,
	logger *zap.Logger,
) *MembershipEventConsumer {
	if topic == "" {
		topic = contracts.TopicMembershipEvents
	}
	return &MembershipEventConsumer{
		consumer: kafka.NewConsumer(brokers, groupID, topic, logger),
		service:  service,
		logger:   logger,
	}
}

// Start begins consuming membership events. This blocks until the context is cancelled.
func (c *MembershipEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *MembershipEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *MembershipEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from membership topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case contracts.MembershipVerified:
		return c.handleVerified(ctx, cloudEvent)
	case contracts.MembershipRevoked:
		return c.handleRevoked(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled membership event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *MembershipEventConsumer) handleVerified(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt contracts.MembershipVerifiedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse MembershipVerifiedEvent data", zap.Error(err))
		return nil
	}

	req := application.VerifyMemberRequest{PartyID: evt.PartyID}
	if !evt.ExpiresAt.IsZero() {
		req.ExpiresAt = &evt.ExpiresAt
	}
	if _, err := c.service.VerifyMember(ctx, req); err != nil {
		// An already-lapsed grant can never succeed; skip it.
		c.logger.Warn("membership grant rejected",
			zap.String("party_id", evt.PartyID.String()),
			zap.Error(err),
		)
	}
	return nil
}

func (c *MembershipEventConsumer) handleRevoked(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt contracts.MembershipRevokedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse MembershipRevokedEvent data", zap.Error(err))
		return nil
	}
	c.service.RevokeMember(ctx, evt.PartyID, evt.Reason)
	return nil
}
