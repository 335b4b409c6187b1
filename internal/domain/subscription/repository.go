package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence operations for subscriptions.
type Repository interface {
	Save(ctx context.Context, s *Subscription) error
	Update(ctx context.Context, s *Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*Subscription, error)
	FindActiveByUserID(ctx context.Context, userID uuid.UUID) (*Subscription, error)
}
