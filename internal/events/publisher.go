package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/learnsphere/service-payment/internal/domain/payment"
	"github.com/learnsphere/service-payment/internal/platform/kafka"
)

const eventSource = "service-payment"

// Publisher emits billing events to Kafka.
type Publisher struct {
	producer *kafka.Producer
	logger   *zap.Logger
}

// NewPublisher creates a Publisher over the given producer.
func NewPublisher(producer *kafka.Producer, logger *zap.Logger) *Publisher {
	return &Publisher{producer: producer, logger: logger}
}

func (p *Publisher) publish(ctx context.Context, eventType string, data any) error {
	ce, err := kafka.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		return err
	}
	return p.producer.PublishEvent(ctx, TopicBillingEvents, ce)
}

// CheckoutCompleted publishes the completion event for a payment.
func (p *Publisher) CheckoutCompleted(ctx context.Context, pay *payment.Payment) error {
	evt := CheckoutCompletedEvent{
		PaymentID:   pay.ID(),
		UserID:      pay.UserID(),
		CourseID:    pay.CourseID(),
		PaymentType: string(pay.PaymentType()),
		Amount:      pay.Amount(),
		Currency:    pay.Currency(),
		Gateway:     pay.Gateway(),
		PromoCode:   pay.PromoCode(),
		OccurredAt:  time.Now().UTC(),
	}
	for _, item := range pay.CartItems() {
		evt.CourseIDs = append(evt.CourseIDs, item.CourseID)
	}
	return p.publish(ctx, CheckoutCompleted, evt)
}

// PaymentFailed publishes the failure event for a payment.
func (p *Publisher) PaymentFailed(ctx context.Context, pay *payment.Payment, reason string) error {
	return p.publish(ctx, PaymentFailed, PaymentFailedEvent{
		PaymentID:  pay.ID(),
		UserID:     pay.UserID(),
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	})
}

// PaymentRefunded publishes the refund event for a payment.
func (p *Publisher) PaymentRefunded(ctx context.Context, pay *payment.Payment, reason string) error {
	return p.publish(ctx, PaymentRefunded, PaymentRefundedEvent{
		PaymentID:  pay.ID(),
		UserID:     pay.UserID(),
		Amount:     pay.Amount(),
		Currency:   pay.Currency(),
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	})
}

// PromoRedeemed publishes the redemption event for a consumed promo use.
func (p *Publisher) PromoRedeemed(ctx context.Context, evt PromoRedeemedEvent) error {
	evt.OccurredAt = time.Now().UTC()
	return p.publish(ctx, PromoRedeemed, evt)
}
