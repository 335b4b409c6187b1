package transaction

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence operations for transaction records.
type Repository interface {
	Save(ctx context.Context, t *Transaction) error
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Transaction, error)
	// MarkRefunded flips the stored status of a completed transaction.
	MarkRefunded(ctx context.Context, paymentID uuid.UUID) error
}
