package payment

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for Payment aggregates.
type Repository interface {
	// FindByID retrieves a payment by its unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindByGatewayRef retrieves a payment by the provider-assigned reference
	// (checkout-session id or payment token).
	FindByGatewayRef(ctx context.Context, gatewayRef string) (*Payment, error)

	// FindByUser retrieves a user's payments, newest first.
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*Payment, error)

	// ListAll retrieves all payments with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Payment, int64, error)

	// GetRevenueStats returns total completed revenue and a count per status (admin).
	GetRevenueStats(ctx context.Context) (totalRevenue float64, countByStatus map[string]int64, err error)

	// Save persists a new payment aggregate.
	Save(ctx context.Context, payment *Payment) error

	// Update persists changes to an existing payment aggregate with optimistic locking.
	Update(ctx context.Context, payment *Payment) error
}
