package promo

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence operations for promo codes.
type Repository interface {
	Save(ctx context.Context, p *PromoCode) error
	Update(ctx context.Context, p *PromoCode) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByCode(ctx context.Context, code string) (*PromoCode, error)
	FindByID(ctx context.Context, id uuid.UUID) (*PromoCode, error)
	FindActive(ctx context.Context) ([]*PromoCode, error)
	FindAll(ctx context.Context) ([]*PromoCode, error)
	FindByCourse(ctx context.Context, courseID uuid.UUID) ([]*PromoCode, error)

	// IncrementUsage must be an atomic conditional increment: it bumps used_count
	// only while the cap is not exhausted and reports whether it won. Two
	// concurrent redemptions of the last remaining use must not both succeed.
	IncrementUsage(ctx context.Context, id uuid.UUID) error

	SaveRedemption(ctx context.Context, r *Redemption) error
	HasUserRedeemed(ctx context.Context, promoID, userID uuid.UUID) (bool, error)
}

// Redemption records one completed-checkout use of a promo code.
type Redemption struct {
	ID         uuid.UUID
	PromoID    uuid.UUID
	UserID     uuid.UUID
	PaymentID  uuid.UUID
	Discount   float64
	RedeemedAt time.Time
}
