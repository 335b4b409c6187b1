package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnsphere/service-payment/internal/domain"
	subDomain "github.com/learnsphere/service-payment/internal/domain/subscription"
)

// SubscribeRequest is the DTO for starting a membership checkout.
type SubscribeRequest struct {
	Plan      string `json:"plan" binding:"required"`
	Gateway   string `json:"gateway" binding:"required"`
	PromoCode string `json:"promo_code"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone"`
}

// SubscriptionDTO is the API response DTO for subscription data.
type SubscriptionDTO struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Plan      string     `json:"plan"`
	Price     float64    `json:"price"`
	PaymentID *uuid.UUID `json:"payment_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Status    string     `json:"status"`
	AutoRenew bool       `json:"auto_renew"`
	CreatedAt time.Time  `json:"created_at"`
}

// SubscribeResponse pairs the pending subscription with its checkout.
type SubscribeResponse struct {
	Subscription SubscriptionDTO `json:"subscription"`
	Payment      PaymentDTO      `json:"payment"`
}

// SubscriptionService manages membership plans. A subscription is created
// pending, linked to a checkout and activated by the checkout completion path.
type SubscriptionService struct {
	repo     subDomain.Repository
	checkout *CheckoutService
	logger   *zap.Logger
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(repo subDomain.Repository, checkout *CheckoutService, logger *zap.Logger) *SubscriptionService {
	return &SubscriptionService{repo: repo, checkout: checkout, logger: logger}
}

// GetPlans returns the available membership plans.
func (s *SubscriptionService) GetPlans(ctx context.Context) []subDomain.PlanInfo {
	return subDomain.AvailablePlans()
}

// Subscribe creates a pending subscription and opens a checkout for it. A user
// with a running membership cannot stack another one.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID uuid.UUID, req SubscribeRequest) (*SubscribeResponse, error) {
	if existing, err := s.repo.FindActiveByUserID(ctx, userID); err == nil && existing.IsActive() {
		return nil, domain.NewConflictError("an active subscription already exists")
	}

	plan, err := subDomain.FindPlan(subDomain.PlanType(req.Plan))
	if err != nil {
		return nil, err
	}

	sub, err := subDomain.NewSubscription(userID, plan.Plan)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, err
	}

	payment, err := s.checkout.InitiateCheckout(ctx, userID, InitiateCheckoutRequest{
		Gateway:     req.Gateway,
		PaymentType: "subscription",
		Amount:      plan.Price,
		PromoCode:   req.PromoCode,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Phone:       req.Phone,
	})
	if err != nil {
		// Orphaned pending subscriptions are harmless; they never activate.
		s.logger.Warn("subscription checkout failed to start",
			zap.String("subscription_id", sub.ID().String()),
			zap.Error(err),
		)
		return nil, err
	}

	sub.AttachPayment(payment.ID)
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("subscription checkout started",
		zap.String("subscription_id", sub.ID().String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("plan", string(plan.Plan)),
	)

	return &SubscribeResponse{
		Subscription: toSubscriptionDTO(sub),
		Payment:      *payment,
	}, nil
}

// GetMySubscription returns the caller's most recent active subscription.
func (s *SubscriptionService) GetMySubscription(ctx context.Context, userID uuid.UUID) (*SubscriptionDTO, error) {
	sub, err := s.repo.FindActiveByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	dto := toSubscriptionDTO(sub)
	return &dto, nil
}

// CancelSubscription cancels the caller's subscription. Only the owner may
// cancel it.
func (s *SubscriptionService) CancelSubscription(ctx context.Context, userID, subscriptionID uuid.UUID) (*SubscriptionDTO, error) {
	sub, err := s.repo.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID() != userID {
		return nil, domain.NewUnauthorizedError("subscription belongs to another user")
	}

	sub.Cancel()
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}

	dto := toSubscriptionDTO(sub)
	return &dto, nil
}

func toSubscriptionDTO(sub *subDomain.Subscription) SubscriptionDTO {
	return SubscriptionDTO{
		ID:        sub.ID(),
		UserID:    sub.UserID(),
		Plan:      string(sub.Plan()),
		Price:     sub.Price(),
		PaymentID: sub.PaymentID(),
		StartedAt: sub.StartedAt(),
		ExpiresAt: sub.ExpiresAt(),
		Status:    string(sub.Status()),
		AutoRenew: sub.AutoRenew(),
		CreatedAt: sub.CreatedAt(),
	}
}
