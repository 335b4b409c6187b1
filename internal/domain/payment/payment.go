package payment

import (
	"time"

	"github.com/google/uuid"

	"github.com/learnsphere/service-payment/internal/domain"
	"github.com/learnsphere/service-payment/internal/money"
)

// Status represents the lifecycle state of a payment.
//
// pending -> completed | failed | cancelled | unknown
// completed -> refunded
// unknown -> completed | failed (resolved by reconciliation)
//
// failed, cancelled and refunded are terminal. completed only admits a refund.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
	// StatusUnknown parks a payment whose gateway outcome could not be mapped to
	// a known status. It is a manual-review state, never coerced to completed or
	// failed by guesswork.
	StatusUnknown Status = "unknown"
)

// Type classifies what a checkout is paying for.
type Type string

const (
	TypeCoursePurchase Type = "course_purchase"
	TypeBundlePurchase Type = "bundle_purchase"
	TypeSubscription   Type = "subscription"
)

// CartItem is one course line in a bundle purchase.
type CartItem struct {
	CourseID uuid.UUID `json:"course_id"`
	Title    string    `json:"title"`
	Price    float64   `json:"price"`
}

// Payment is the aggregate root for a checkout attempt. Amounts are TND
// major-unit decimals; the gateway adapters own all minor-unit conversion.
type Payment struct {
	id             uuid.UUID
	userID         uuid.UUID
	courseID       *uuid.UUID // set for course_purchase
	cartItems      []CartItem // set for bundle_purchase
	paymentType    Type
	amount         float64 // charged amount, after discount
	originalAmount float64 // pre-discount subtotal
	promoCodeID    *uuid.UUID
	promoCode      string
	promoDiscount  float64
	currency       string
	gateway        string // provider name the checkout was routed to
	paymentMethod  string
	status         Status
	gatewayRef     string // checkout-session id or payment token, provider-assigned
	gatewayTxnID   string // provider transaction id, set on completion
	checkoutURL    string
	failureReason  string
	completedAt    *time.Time
	refundedAt     *time.Time
	version        int64
	createdAt      time.Time
	updatedAt      time.Time
}

// NewPayment creates a pending payment before any gateway call is made.
// amount must equal originalAmount minus promoDiscount.
func NewPayment(
	userID uuid.UUID,
	paymentType Type,
	courseID *uuid.UUID,
	cartItems []CartItem,
	originalAmount, promoDiscount float64,
	promoCodeID *uuid.UUID,
	promoCode string,
	currency, gateway string,
) (*Payment, error) {
	if originalAmount <= 0 {
		return nil, domain.NewValidationError("amount must be positive")
	}
	if promoDiscount < 0 || promoDiscount > originalAmount {
		return nil, domain.NewValidationError("promo discount must be between 0 and the original amount")
	}
	switch paymentType {
	case TypeCoursePurchase, TypeSubscription:
		if courseID == nil && paymentType == TypeCoursePurchase {
			return nil, domain.NewValidationError("course id is required for a course purchase")
		}
		if len(cartItems) > 0 {
			return nil, domain.NewValidationError("cart items are only valid for a bundle purchase")
		}
	case TypeBundlePurchase:
		if len(cartItems) == 0 {
			return nil, domain.NewValidationError("cart items are required for a bundle purchase")
		}
		if courseID != nil {
			return nil, domain.NewValidationError("course id is not valid for a bundle purchase")
		}
	default:
		return nil, domain.NewValidationError("invalid payment type: " + string(paymentType))
	}

	now := time.Now().UTC()
	return &Payment{
		id:             uuid.New(),
		userID:         userID,
		courseID:       courseID,
		cartItems:      cartItems,
		paymentType:    paymentType,
		amount:         money.Round2(originalAmount - promoDiscount),
		originalAmount: originalAmount,
		promoCodeID:    promoCodeID,
		promoCode:      promoCode,
		promoDiscount:  promoDiscount,
		currency:       currency,
		gateway:        gateway,
		status:         StatusPending,
		version:        1,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// --- Behavior / State Transitions ---

// IsTerminal reports whether no further automatic transition is expected.
// completed is semi-terminal: only a refund may follow.
func (s Status) IsTerminal() bool {
	return s == StatusFailed || s == StatusCancelled || s == StatusRefunded
}

// AttachGatewayRef records the provider correlation data returned by a
// successful initiate call. The payment stays pending.
func (p *Payment) AttachGatewayRef(gatewayRef, checkoutURL, paymentMethod string) error {
	if p.status != StatusPending {
		return domain.NewTransitionError(string(p.status), string(StatusPending))
	}
	p.gatewayRef = gatewayRef
	p.checkoutURL = checkoutURL
	p.paymentMethod = paymentMethod
	p.updatedAt = time.Now().UTC()
	return nil
}

// Complete transitions into completed, driven by an adapter-normalized verify or
// webhook result. Returns false without error when the payment is already
// completed with the same outcome (idempotent re-delivery). A completion
// arriving after a different terminal state is an inconsistency, never an
// overwrite.
func (p *Payment) Complete(gatewayTxnID string) (bool, error) {
	switch p.status {
	case StatusCompleted:
		return false, nil
	case StatusPending, StatusUnknown:
		now := time.Now().UTC()
		p.status = StatusCompleted
		p.gatewayTxnID = gatewayTxnID
		p.completedAt = &now
		p.updatedAt = now
		return true, nil
	default:
		return false, domain.NewInconsistentError(
			"gateway reported completion but payment is already " + string(p.status))
	}
}

// Fail transitions into failed on an authoritative gateway failure.
func (p *Payment) Fail(reason string) (bool, error) {
	switch p.status {
	case StatusFailed:
		return false, nil
	case StatusPending, StatusUnknown:
		p.status = StatusFailed
		p.failureReason = reason
		p.updatedAt = time.Now().UTC()
		return true, nil
	default:
		return false, domain.NewInconsistentError(
			"gateway reported failure but payment is already " + string(p.status))
	}
}

// Cancel transitions into cancelled when the buyer abandons the checkout.
func (p *Payment) Cancel(reason string) (bool, error) {
	switch p.status {
	case StatusCancelled:
		return false, nil
	case StatusPending:
		p.status = StatusCancelled
		p.failureReason = reason
		p.updatedAt = time.Now().UTC()
		return true, nil
	default:
		return false, domain.NewInconsistentError(
			"cancellation received but payment is already " + string(p.status))
	}
}

// Refund transitions from completed to refunded.
func (p *Payment) Refund(reason string) (bool, error) {
	switch p.status {
	case StatusRefunded:
		return false, nil
	case StatusCompleted:
		now := time.Now().UTC()
		p.status = StatusRefunded
		p.failureReason = reason
		p.refundedAt = &now
		p.updatedAt = now
		return true, nil
	default:
		return false, domain.NewTransitionError(string(p.status), string(StatusRefunded))
	}
}

// MarkUnknown parks a pending payment whose gateway outcome could not be mapped
// to a known status. Terminal payments are left untouched.
func (p *Payment) MarkUnknown(reason string) (bool, error) {
	switch p.status {
	case StatusUnknown:
		return false, nil
	case StatusPending:
		p.status = StatusUnknown
		p.failureReason = reason
		p.updatedAt = time.Now().UTC()
		return true, nil
	default:
		return false, domain.NewInconsistentError(
			"unmapped gateway outcome for payment already " + string(p.status))
	}
}

// IncrementVersion bumps the version for optimistic locking.
func (p *Payment) IncrementVersion() {
	p.version++
	p.updatedAt = time.Now().UTC()
}

// --- Getters ---

func (p *Payment) ID() uuid.UUID           { return p.id }
func (p *Payment) UserID() uuid.UUID       { return p.userID }
func (p *Payment) CourseID() *uuid.UUID    { return p.courseID }
func (p *Payment) CartItems() []CartItem   { return p.cartItems }
func (p *Payment) PaymentType() Type       { return p.paymentType }
func (p *Payment) Amount() float64         { return p.amount }
func (p *Payment) OriginalAmount() float64 { return p.originalAmount }
func (p *Payment) PromoCodeID() *uuid.UUID { return p.promoCodeID }
func (p *Payment) PromoCode() string       { return p.promoCode }
func (p *Payment) PromoDiscount() float64  { return p.promoDiscount }
func (p *Payment) Currency() string        { return p.currency }
func (p *Payment) Gateway() string         { return p.gateway }
func (p *Payment) PaymentMethod() string   { return p.paymentMethod }
func (p *Payment) Status() Status          { return p.status }
func (p *Payment) GatewayRef() string      { return p.gatewayRef }
func (p *Payment) GatewayTxnID() string    { return p.gatewayTxnID }
func (p *Payment) CheckoutURL() string     { return p.checkoutURL }
func (p *Payment) FailureReason() string   { return p.failureReason }
func (p *Payment) CompletedAt() *time.Time { return p.completedAt }
func (p *Payment) RefundedAt() *time.Time  { return p.refundedAt }
func (p *Payment) Version() int64          { return p.version }
func (p *Payment) CreatedAt() time.Time    { return p.createdAt }
func (p *Payment) UpdatedAt() time.Time    { return p.updatedAt }

// --- Reconstitution (used by the repository to rebuild from persistence) ---

// Reconstitute rebuilds a Payment from persisted data.
func Reconstitute(
	id, userID uuid.UUID,
	courseID *uuid.UUID,
	cartItems []CartItem,
	paymentType Type,
	amount, originalAmount float64,
	promoCodeID *uuid.UUID,
	promoCode string,
	promoDiscount float64,
	currency, gateway, paymentMethod string,
	status Status,
	gatewayRef, gatewayTxnID, checkoutURL, failureReason string,
	completedAt, refundedAt *time.Time,
	version int64,
	createdAt, updatedAt time.Time,
) *Payment {
	return &Payment{
		id:             id,
		userID:         userID,
		courseID:       courseID,
		cartItems:      cartItems,
		paymentType:    paymentType,
		amount:         amount,
		originalAmount: originalAmount,
		promoCodeID:    promoCodeID,
		promoCode:      promoCode,
		promoDiscount:  promoDiscount,
		currency:       currency,
		gateway:        gateway,
		paymentMethod:  paymentMethod,
		status:         status,
		gatewayRef:     gatewayRef,
		gatewayTxnID:   gatewayTxnID,
		checkoutURL:    checkoutURL,
		failureReason:  failureReason,
		completedAt:    completedAt,
		refundedAt:     refundedAt,
		version:        version,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}
