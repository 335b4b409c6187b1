// Package events defines the billing event contracts and their Kafka plumbing.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	// TopicBillingEvents carries outcomes consumed by the enrollment service.
	TopicBillingEvents = "billing.events"
	// TopicBillingCommands carries back-office commands into this service.
	TopicBillingCommands = "billing.commands"
)

// Event types.
const (
	CheckoutCompleted = "billing.checkout.completed"
	PaymentFailed     = "billing.payment.failed"
	PaymentRefunded   = "billing.payment.refunded"
	PromoRedeemed     = "billing.promo.redeemed"
	RefundRequested   = "billing.refund.requested"
)

// CheckoutCompletedEvent announces a confirmed purchase. The enrollment service
// grants course or membership access off this event.
type CheckoutCompletedEvent struct {
	PaymentID   uuid.UUID   `json:"payment_id"`
	UserID      uuid.UUID   `json:"user_id"`
	CourseID    *uuid.UUID  `json:"course_id,omitempty"`
	CourseIDs   []uuid.UUID `json:"course_ids,omitempty"` // bundle purchases
	PaymentType string      `json:"payment_type"`
	Amount      float64     `json:"amount"`
	Currency    string      `json:"currency"`
	Gateway     string      `json:"gateway"`
	PromoCode   string      `json:"promo_code,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// PaymentFailedEvent announces a terminally failed or cancelled checkout.
type PaymentFailedEvent struct {
	PaymentID  uuid.UUID `json:"payment_id"`
	UserID     uuid.UUID `json:"user_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PaymentRefundedEvent announces a refund so enrollment access can be revoked.
type PaymentRefundedEvent struct {
	PaymentID  uuid.UUID `json:"payment_id"`
	UserID     uuid.UUID `json:"user_id"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PromoRedeemedEvent announces one consumed promo use.
type PromoRedeemedEvent struct {
	PromoID    uuid.UUID `json:"promo_id"`
	Code       string    `json:"code"`
	UserID     uuid.UUID `json:"user_id"`
	PaymentID  uuid.UUID `json:"payment_id"`
	Discount   float64   `json:"discount"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RefundRequestedEvent is the back-office command asking this service to
// refund a completed payment.
type RefundRequestedEvent struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	RequestedBy uuid.UUID `json:"requested_by"`
	Reason      string    `json:"reason"`
	OccurredAt  time.Time `json:"occurred_at"`
}
