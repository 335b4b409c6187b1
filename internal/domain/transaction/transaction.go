// Package transaction holds the immutable financial record written once a
// gateway confirms a payment outcome.
package transaction

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is the immutable-after-completion record of one payment attempt's
// financial facts. Exactly one is produced per payment at its first transition
// into completed; a later refund updates only the status.
type Transaction struct {
	ID              uuid.UUID
	PaymentID       uuid.UUID
	UserID          uuid.UUID
	CourseID        *uuid.UUID
	Amount          float64
	Currency        string
	Status          string
	PaymentMethod   string
	Gateway         string
	GatewayTxnID    string
	GatewayResponse []byte // opaque provider payload, kept for traceability
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// New builds the completed-transaction record for a confirmed payment.
func New(paymentID, userID uuid.UUID, courseID *uuid.UUID, amount float64, currency, status, method, gateway, gatewayTxnID string, gatewayResponse []byte) *Transaction {
	now := time.Now().UTC()
	completedAt := now
	return &Transaction{
		ID:              uuid.New(),
		PaymentID:       paymentID,
		UserID:          userID,
		CourseID:        courseID,
		Amount:          amount,
		Currency:        currency,
		Status:          status,
		PaymentMethod:   method,
		Gateway:         gateway,
		GatewayTxnID:    gatewayTxnID,
		GatewayResponse: gatewayResponse,
		CreatedAt:       now,
		UpdatedAt:       now,
		CompletedAt:     &completedAt,
	}
}
