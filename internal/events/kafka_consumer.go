package events

import (
	"context"
	"strings"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/learnsphere/service-payment/internal/platform/kafka"
)

// RefundRequestHandler applies a refund command to a payment. Implemented by
// the checkout service; declared here to avoid an import cycle.
type RefundRequestHandler interface {
	HandleRefundCommand(ctx context.Context, evt RefundRequestedEvent) error
}

// BillingCommandConsumer listens to the billing command topic for refund
// requests raised by support tooling and other services.
type BillingCommandConsumer struct {
	consumer *kafka.Consumer
	handler  RefundRequestHandler
	logger   *zap.Logger
}

// NewBillingCommandConsumer creates a new consumer for billing commands.
func NewBillingCommandConsumer(
	brokers []string,
	groupID string,
	handler RefundRequestHandler,
	logger *zap.Logger,
) *BillingCommandConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, TopicBillingCommands, logger)
	return &BillingCommandConsumer{
		consumer: consumer,
		handler:  handler,
		logger:   logger,
	}
}

// Start begins consuming billing commands. It blocks until the context is cancelled.
func (c *BillingCommandConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// handleMessage routes incoming Kafka messages to the appropriate handler.
func (c *BillingCommandConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from billing command topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return err
	}

	c.logger.Info("received billing command",
		zap.String("type", cloudEvent.Type),
		zap.String("id", cloudEvent.ID),
	)

	switch {
	case strings.EqualFold(cloudEvent.Type, RefundRequested):
		return c.handleRefundRequested(ctx, cloudEvent)

	default:
		c.logger.Debug("ignoring unhandled billing command type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

// handleRefundRequested processes a RefundRequestedEvent.
func (c *BillingCommandConsumer) handleRefundRequested(ctx context.Context, ce kafka.CloudEvent) error {
	var event RefundRequestedEvent
	if err := ce.ParseData(&event); err != nil {
		c.logger.Error("failed to parse RefundRequestedEvent data", zap.Error(err))
		return err
	}

	return c.handler.HandleRefundCommand(ctx, event)
}

// Close closes the underlying Kafka consumer.
func (c *BillingCommandConsumer) Close() error {
	return c.consumer.Close()
}
