package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/learnsphere/service-payment/internal/domain"
)

// PlanType represents the membership plan.
type PlanType string

const (
	PlanBasic   PlanType = "basic"
	PlanPremium PlanType = "premium"
)

// Status represents the subscription status.
type Status string

const (
	// StatusPendingPayment is the state between subscribe and checkout completion.
	StatusPendingPayment Status = "pending_payment"
	StatusActive         Status = "active"
	StatusCancelled      Status = "cancelled"
	StatusExpired        Status = "expired"
)

// PlanInfo defines the properties of a membership plan. Prices are TND.
type PlanInfo struct {
	Plan         PlanType `json:"plan"`
	Price        float64  `json:"price"`
	DurationDays int      `json:"duration_days"`
	Description  string   `json:"description"`
}

// AvailablePlans returns the list of membership plans.
func AvailablePlans() []PlanInfo {
	return []PlanInfo{
		{Plan: PlanBasic, Price: 29.900, DurationDays: 30, Description: "Access to all basic courses, valid 30 days"},
		{Plan: PlanPremium, Price: 79.900, DurationDays: 30, Description: "Access to the full catalog + instructor Q&A, valid 30 days"},
	}
}

// FindPlan looks up a plan by type.
func FindPlan(plan PlanType) (PlanInfo, error) {
	for _, p := range AvailablePlans() {
		if p.Plan == plan {
			return p, nil
		}
	}
	return PlanInfo{}, domain.NewValidationError("invalid plan: " + string(plan))
}

// Subscription is the aggregate root for platform memberships. A subscription
// starts pending and only becomes active once its checkout completes.
type Subscription struct {
	id        uuid.UUID
	userID    uuid.UUID
	plan      PlanType
	price     float64
	paymentID *uuid.UUID
	startedAt *time.Time
	expiresAt *time.Time
	status    Status
	autoRenew bool
	createdAt time.Time
	updatedAt time.Time
}

// NewSubscription creates a pending subscription awaiting payment.
func NewSubscription(userID uuid.UUID, plan PlanType) (*Subscription, error) {
	planInfo, err := FindPlan(plan)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Subscription{
		id:        uuid.New(),
		userID:    userID,
		plan:      plan,
		price:     planInfo.Price,
		status:    StatusPendingPayment,
		autoRenew: true,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstruct rebuilds a Subscription from persistence.
func Reconstruct(id, userID uuid.UUID, plan PlanType, price float64, paymentID *uuid.UUID, startedAt, expiresAt *time.Time, status Status, autoRenew bool, createdAt, updatedAt time.Time) *Subscription {
	return &Subscription{
		id: id, userID: userID, plan: plan, price: price, paymentID: paymentID,
		startedAt: startedAt, expiresAt: expiresAt, status: status,
		autoRenew: autoRenew, createdAt: createdAt, updatedAt: updatedAt,
	}
}

// AttachPayment links the checkout that pays for this subscription.
func (s *Subscription) AttachPayment(paymentID uuid.UUID) {
	s.paymentID = &paymentID
	s.updatedAt = time.Now().UTC()
}

// Activate starts the membership clock once the checkout completes.
func (s *Subscription) Activate() error {
	if s.status != StatusPendingPayment {
		return domain.NewTransitionError(string(s.status), string(StatusActive))
	}
	planInfo, err := FindPlan(s.plan)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	expires := now.AddDate(0, 0, planInfo.DurationDays)
	s.status = StatusActive
	s.startedAt = &now
	s.expiresAt = &expires
	s.updatedAt = now
	return nil
}

// Cancel cancels the subscription.
func (s *Subscription) Cancel() {
	s.status = StatusCancelled
	s.autoRenew = false
	s.updatedAt = time.Now().UTC()
}

// IsActive reports whether the subscription is currently active and not expired.
func (s *Subscription) IsActive() bool {
	return s.status == StatusActive && s.expiresAt != nil && time.Now().UTC().Before(*s.expiresAt)
}

// Getters.
func (s *Subscription) ID() uuid.UUID         { return s.id }
func (s *Subscription) UserID() uuid.UUID     { return s.userID }
func (s *Subscription) Plan() PlanType        { return s.plan }
func (s *Subscription) Price() float64        { return s.price }
func (s *Subscription) PaymentID() *uuid.UUID { return s.paymentID }
func (s *Subscription) StartedAt() *time.Time { return s.startedAt }
func (s *Subscription) ExpiresAt() *time.Time { return s.expiresAt }
func (s *Subscription) Status() Status        { return s.status }
func (s *Subscription) AutoRenew() bool       { return s.autoRenew }
func (s *Subscription) CreatedAt() time.Time  { return s.createdAt }
func (s *Subscription) UpdatedAt() time.Time  { return s.updatedAt }
