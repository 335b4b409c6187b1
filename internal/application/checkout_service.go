package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnsphere/service-payment/internal/adapter"
	"github.com/learnsphere/service-payment/internal/domain"
	paymentDomain "github.com/learnsphere/service-payment/internal/domain/payment"
	subDomain "github.com/learnsphere/service-payment/internal/domain/subscription"
	txnDomain "github.com/learnsphere/service-payment/internal/domain/transaction"
	"github.com/learnsphere/service-payment/internal/events"
	"github.com/learnsphere/service-payment/internal/money"
	"github.com/learnsphere/service-payment/internal/saga"
)

// CheckoutItemRequest is one course line of a bundle checkout.
type CheckoutItemRequest struct {
	CourseID string  `json:"course_id" binding:"required"`
	Title    string  `json:"title"`
	Price    float64 `json:"price" binding:"required,gt=0"`
}

// InitiateCheckoutRequest is the DTO for starting a checkout.
type InitiateCheckoutRequest struct {
	Gateway     string                `json:"gateway" binding:"required"`
	PaymentType string                `json:"payment_type" binding:"required"`
	CourseID    *string               `json:"course_id"`
	Amount      float64               `json:"amount"` // course price for a single-course purchase
	CartItems   []CheckoutItemRequest `json:"cart_items"`
	PromoCode   string                `json:"promo_code"`
	FirstName   string                `json:"first_name"`
	LastName    string                `json:"last_name"`
	Email       string                `json:"email" binding:"required,email"`
	Phone       string                `json:"phone"`
}

// PaymentDTO is the API response DTO for payment data.
type PaymentDTO struct {
	ID             uuid.UUID                `json:"id"`
	UserID         uuid.UUID                `json:"user_id"`
	CourseID       *uuid.UUID               `json:"course_id,omitempty"`
	CartItems      []paymentDomain.CartItem `json:"cart_items,omitempty"`
	PaymentType    string                   `json:"payment_type"`
	Amount         float64                  `json:"amount"`
	OriginalAmount float64                  `json:"original_amount"`
	PromoCode      string                   `json:"promo_code,omitempty"`
	PromoDiscount  float64                  `json:"promo_discount"`
	Currency       string                   `json:"currency"`
	Gateway        string                   `json:"gateway"`
	PaymentMethod  string                   `json:"payment_method,omitempty"`
	Status         string                   `json:"status"`
	GatewayRef     string                   `json:"gateway_ref,omitempty"`
	GatewayTxnID   string                   `json:"gateway_txn_id,omitempty"`
	CheckoutURL    string                   `json:"checkout_url,omitempty"`
	FailureReason  string                   `json:"failure_reason,omitempty"`
	CompletedAt    *time.Time               `json:"completed_at,omitempty"`
	RefundedAt     *time.Time               `json:"refunded_at,omitempty"`
	Version        int64                    `json:"version"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// CheckoutService orchestrates checkout initiation and drives the payment
// lifecycle from adapter-normalized gateway outcomes. It is the only writer of
// payment status: callers never infer state from partial data.
type CheckoutService struct {
	payments  paymentDomain.Repository
	txns      txnDomain.Repository
	subs      subDomain.Repository
	promos    *PromoService
	gateways  *adapter.Registry
	publisher *events.Publisher
	logger    *zap.Logger
}

// NewCheckoutService creates a new CheckoutService. publisher may be nil in tests.
func NewCheckoutService(
	payments paymentDomain.Repository,
	txns txnDomain.Repository,
	subs subDomain.Repository,
	promos *PromoService,
	gateways *adapter.Registry,
	publisher *events.Publisher,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		payments:  payments,
		txns:      txns,
		subs:      subs,
		promos:    promos,
		gateways:  gateways,
		publisher: publisher,
		logger:    logger,
	}
}

// InitiateCheckout validates the request and promo, creates a pending payment
// and opens a provider checkout. The returned DTO carries the redirect URL.
func (s *CheckoutService) InitiateCheckout(ctx context.Context, userID uuid.UUID, req InitiateCheckoutRequest) (*PaymentDTO, error) {
	paymentType := paymentDomain.Type(req.PaymentType)

	var courseID *uuid.UUID
	var cartItems []paymentDomain.CartItem
	var subtotal float64

	switch paymentType {
	case paymentDomain.TypeCoursePurchase:
		if req.CourseID == nil {
			return nil, domain.NewValidationError("course_id is required for a course purchase")
		}
		id, err := uuid.Parse(*req.CourseID)
		if err != nil {
			return nil, domain.NewValidationError("invalid course id")
		}
		courseID = &id
		subtotal = req.Amount
	case paymentDomain.TypeBundlePurchase:
		for _, item := range req.CartItems {
			id, err := uuid.Parse(item.CourseID)
			if err != nil {
				return nil, domain.NewValidationError("invalid course id in cart: " + item.CourseID)
			}
			cartItems = append(cartItems, paymentDomain.CartItem{CourseID: id, Title: item.Title, Price: item.Price})
			subtotal += item.Price
		}
		subtotal = money.Round2(subtotal)
	case paymentDomain.TypeSubscription:
		subtotal = req.Amount
	default:
		return nil, domain.NewValidationError("invalid payment type: " + req.PaymentType)
	}
	if subtotal <= 0 {
		return nil, domain.NewValidationError("amount must be positive")
	}

	var promoID *uuid.UUID
	var promoDiscount float64
	if req.PromoCode != "" {
		validation, err := s.promos.Validate(ctx, &userID, ValidatePromoRequest{
			Code:     req.PromoCode,
			Subtotal: subtotal,
			CourseID: req.CourseID,
		})
		if err != nil {
			return nil, err
		}
		promoID = &validation.PromoCodeID
		promoDiscount = validation.Discount
	}

	p, err := paymentDomain.NewPayment(
		userID, paymentType, courseID, cartItems,
		subtotal, promoDiscount, promoID, req.PromoCode,
		money.TND, req.Gateway,
	)
	if err != nil {
		return nil, err
	}

	if err := s.runInitiateSaga(ctx, p, req); err != nil {
		return nil, err
	}

	dto := toPaymentDTO(p)
	return &dto, nil
}

// runInitiateSaga saves the pending payment, opens the provider checkout and
// attaches the returned reference, compensating on failure. A transport-level
// initiate failure deliberately leaves the payment pending: the provider may
// have registered it, so it is reconciled later by webhook or verify instead
// of being assumed failed.
func (s *CheckoutService) runInitiateSaga(ctx context.Context, p *paymentDomain.Payment, req InitiateCheckoutRequest) error {
	gw, err := s.gateways.Get(req.Gateway)
	if err != nil {
		return err
	}

	var initResult *adapter.InitiateResult
	var initErr error

	sg := saga.New("initiate_checkout", s.logger)

	sg.AddStep(saga.Step{
		Name: "save_payment",
		Execute: func(ctx context.Context) error {
			return s.payments.Save(ctx, p)
		},
		Compensate: func(ctx context.Context) error {
			if errors.Is(initErr, domain.ErrGatewayUnavailable) {
				s.logger.Warn("gateway unreachable; payment left pending for reconciliation",
					zap.String("payment_id", p.ID().String()),
				)
				return nil
			}
			if _, failErr := p.Fail("checkout initiation failed"); failErr != nil {
				return failErr
			}
			p.IncrementVersion()
			return s.payments.Update(ctx, p)
		},
	})

	sg.AddStep(saga.Step{
		Name: "gateway_initiate",
		Execute: func(ctx context.Context) error {
			initResult, initErr = gw.InitiatePayment(ctx, adapter.InitiateRequest{
				OrderID:   p.ID().String(),
				Amount:    p.Amount(),
				FirstName: req.FirstName,
				LastName:  req.LastName,
				Email:     req.Email,
				Phone:     req.Phone,
				Note:      checkoutNote(p),
			})
			return initErr
		},
		Compensate: nil, // provider sessions expire on their own
	})

	sg.AddStep(saga.Step{
		Name: "attach_gateway_ref",
		Execute: func(ctx context.Context) error {
			if err := p.AttachGatewayRef(initResult.ProviderRef, initResult.CheckoutURL, initResult.Method); err != nil {
				return err
			}
			p.IncrementVersion()
			return s.payments.Update(ctx, p)
		},
	})

	return sg.Execute(ctx)
}

// VerifyPayment runs a synchronous status check against the provider and
// applies the outcome to the payment. A transport failure is inconclusive and
// surfaces as a retryable gateway-unavailable error without touching state.
func (s *CheckoutService) VerifyPayment(ctx context.Context, paymentID uuid.UUID) (*PaymentDTO, error) {
	p, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.GatewayRef() == "" {
		return nil, domain.NewInvalidStateError("payment has no gateway reference to verify")
	}

	gw, err := s.gateways.Get(p.Gateway())
	if err != nil {
		return nil, err
	}

	result, err := gw.VerifyPayment(ctx, p.GatewayRef())
	if err != nil {
		return nil, err
	}
	if result.Status == adapter.StatusError {
		return nil, domain.NewGatewayUnavailableError(p.Gateway(), result.Message)
	}

	if err := s.applyGatewayOutcome(ctx, p, result.Status, result.TransactionID, result.Raw); err != nil {
		return nil, err
	}

	dto := toPaymentDTO(p)
	return &dto, nil
}

// HandleWebhook verifies, normalizes and applies one provider webhook delivery.
func (s *CheckoutService) HandleWebhook(ctx context.Context, provider string, payload []byte, signature string) error {
	gw, err := s.gateways.Get(provider)
	if err != nil {
		return err
	}

	evt, err := gw.ProcessWebhook(payload, signature)
	if err != nil {
		return err
	}

	p, err := s.findWebhookPayment(ctx, evt)
	if err != nil {
		s.logger.Warn("webhook for unknown payment",
			zap.String("provider", provider),
			zap.String("event_type", evt.EventType),
			zap.String("provider_ref", evt.ProviderRef),
			zap.String("order_id", evt.OrderID),
		)
		return err
	}

	s.logger.Info("webhook received",
		zap.String("provider", provider),
		zap.String("event_type", evt.EventType),
		zap.String("payment_id", p.ID().String()),
		zap.String("status", string(evt.Status)),
	)

	return s.applyGatewayOutcome(ctx, p, evt.Status, evt.TransactionID, evt.Raw)
}

func (s *CheckoutService) findWebhookPayment(ctx context.Context, evt *adapter.WebhookEvent) (*paymentDomain.Payment, error) {
	if evt.ProviderRef != "" {
		if p, err := s.payments.FindByGatewayRef(ctx, evt.ProviderRef); err == nil {
			return p, nil
		}
	}
	if evt.OrderID != "" {
		id, err := uuid.Parse(evt.OrderID)
		if err == nil {
			return s.payments.FindByID(ctx, id)
		}
	}
	return nil, domain.NewNotFoundError("Payment", evt.ProviderRef)
}

// applyGatewayOutcome drives the state machine from one normalized outcome.
//
// Re-delivery of the same terminal outcome is a no-op. A conflicting terminal
// outcome (e.g. a late failure webhook after a verified completion) is never
// written; it surfaces as an inconsistency for manual reconciliation. An
// unmappable outcome parks the payment in the review state rather than being
// coerced either way.
func (s *CheckoutService) applyGatewayOutcome(ctx context.Context, p *paymentDomain.Payment, status adapter.NormalizedStatus, gatewayTxnID string, raw []byte) error {
	switch status {
	case adapter.StatusCompleted:
		changed, err := p.Complete(gatewayTxnID)
		if err != nil {
			s.logger.Error("conflicting completion outcome",
				zap.String("payment_id", p.ID().String()),
				zap.String("stored_status", string(p.Status())),
			)
			return err
		}
		if !changed {
			return nil
		}
		p.IncrementVersion()
		if err := s.payments.Update(ctx, p); err != nil {
			return err
		}
		s.finalizeCompleted(ctx, p, gatewayTxnID, raw)
		return nil

	case adapter.StatusFailed:
		return s.applyTerminal(ctx, p, func() (bool, error) { return p.Fail("gateway reported failure") }, true)

	case adapter.StatusCancelled:
		return s.applyTerminal(ctx, p, func() (bool, error) { return p.Cancel("checkout cancelled") }, true)

	case adapter.StatusPending:
		// Not an outcome yet.
		return nil

	default:
		return s.applyTerminal(ctx, p, func() (bool, error) { return p.MarkUnknown("unmapped gateway outcome") }, false)
	}
}

func (s *CheckoutService) applyTerminal(ctx context.Context, p *paymentDomain.Payment, transition func() (bool, error), publishFailure bool) error {
	changed, err := transition()
	if err != nil {
		s.logger.Error("conflicting terminal outcome",
			zap.String("payment_id", p.ID().String()),
			zap.String("stored_status", string(p.Status())),
			zap.Error(err),
		)
		return err
	}
	if !changed {
		return nil
	}
	p.IncrementVersion()
	if err := s.payments.Update(ctx, p); err != nil {
		return err
	}
	if publishFailure && s.publisher != nil {
		if err := s.publisher.PaymentFailed(ctx, p, p.FailureReason()); err != nil {
			s.logger.Error("failed to publish payment failed event", zap.Error(err))
		}
	}
	return nil
}

// finalizeCompleted runs the once-per-payment completion side effects: the
// immutable transaction record, the promo redemption, subscription activation
// and the completion event. It only ever runs on the first transition into
// completed; the idempotent no-op path never reaches it.
func (s *CheckoutService) finalizeCompleted(ctx context.Context, p *paymentDomain.Payment, gatewayTxnID string, raw []byte) {
	txn := txnDomain.New(
		p.ID(), p.UserID(), p.CourseID(),
		p.Amount(), p.Currency(), string(paymentDomain.StatusCompleted),
		p.PaymentMethod(), p.Gateway(), gatewayTxnID, raw,
	)
	if err := s.txns.Save(ctx, txn); err != nil {
		s.logger.Error("failed to save transaction record",
			zap.String("payment_id", p.ID().String()),
			zap.Error(err),
		)
	}

	if p.PromoCodeID() != nil {
		if err := s.promos.Redeem(ctx, *p.PromoCodeID(), p.UserID(), p.ID(), p.PromoDiscount()); err != nil {
			s.logger.Error("failed to redeem promo for completed checkout",
				zap.String("payment_id", p.ID().String()),
				zap.Error(err),
			)
		}
	}

	if p.PaymentType() == paymentDomain.TypeSubscription {
		s.activateSubscription(ctx, p)
	}

	if s.publisher != nil {
		if err := s.publisher.CheckoutCompleted(ctx, p); err != nil {
			s.logger.Error("failed to publish checkout completed event", zap.Error(err))
		}
	}

	s.logger.Info("checkout completed",
		zap.String("payment_id", p.ID().String()),
		zap.String("gateway", p.Gateway()),
		zap.Float64("amount", p.Amount()),
	)
}

func (s *CheckoutService) activateSubscription(ctx context.Context, p *paymentDomain.Payment) {
	sub, err := s.subs.FindByPaymentID(ctx, p.ID())
	if err != nil {
		s.logger.Error("no subscription linked to completed subscription checkout",
			zap.String("payment_id", p.ID().String()),
			zap.Error(err),
		)
		return
	}
	if err := sub.Activate(); err != nil {
		s.logger.Error("failed to activate subscription", zap.Error(err))
		return
	}
	if err := s.subs.Update(ctx, sub); err != nil {
		s.logger.Error("failed to persist subscription activation", zap.Error(err))
	}
}

// RefundPayment records a refund on a completed payment, updates the
// transaction record and announces it. The provider-side money movement is
// executed in the provider's own back office; re-deriving amounts through the
// approximate currency bridge would not be refund-exact.
func (s *CheckoutService) RefundPayment(ctx context.Context, paymentID uuid.UUID, reason string) (*PaymentDTO, error) {
	p, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	changed, err := p.Refund(reason)
	if err != nil {
		return nil, err
	}
	if changed {
		p.IncrementVersion()
		if err := s.payments.Update(ctx, p); err != nil {
			return nil, err
		}
		if err := s.txns.MarkRefunded(ctx, p.ID()); err != nil {
			s.logger.Error("failed to mark transaction refunded", zap.Error(err))
		}
		if s.publisher != nil {
			if err := s.publisher.PaymentRefunded(ctx, p, reason); err != nil {
				s.logger.Error("failed to publish refund event", zap.Error(err))
			}
		}
	}

	dto := toPaymentDTO(p)
	return &dto, nil
}

// HandleRefundCommand applies a refund command arriving over the billing
// command topic. Unknown payment IDs are dropped rather than redelivered.
func (s *CheckoutService) HandleRefundCommand(ctx context.Context, evt events.RefundRequestedEvent) error {
	_, err := s.RefundPayment(ctx, evt.PaymentID, evt.Reason)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("refund command for unknown payment",
			zap.String("payment_id", evt.PaymentID.String()),
			zap.String("requested_by", evt.RequestedBy.String()),
		)
		return nil
	}
	return err
}

// GetPayment retrieves a payment by its ID.
func (s *CheckoutService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*PaymentDTO, error) {
	p, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	dto := toPaymentDTO(p)
	return &dto, nil
}

// GetUserPayments retrieves the caller's payments, newest first.
func (s *CheckoutService) GetUserPayments(ctx context.Context, userID uuid.UUID) ([]PaymentDTO, error) {
	payments, err := s.payments.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos, nil
}

// --- Admin methods ---

// PaymentStatsDTO holds payment statistics for the admin dashboard.
type PaymentStatsDTO struct {
	TotalRevenue  float64          `json:"total_revenue"`
	TotalPayments int64            `json:"total_payments"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// ListAllPayments returns a paginated list of all payments (admin).
func (s *CheckoutService) ListAllPayments(ctx context.Context, page, limit int) ([]PaymentDTO, int64, error) {
	payments, total, err := s.payments.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos, total, nil
}

// GetPaymentStats returns aggregate payment statistics (admin).
func (s *CheckoutService) GetPaymentStats(ctx context.Context) (*PaymentStatsDTO, error) {
	revenue, counts, err := s.payments.GetRevenueStats(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &PaymentStatsDTO{
		TotalRevenue:  revenue,
		TotalPayments: total,
		ByStatus:      counts,
	}, nil
}

func checkoutNote(p *paymentDomain.Payment) string {
	switch p.PaymentType() {
	case paymentDomain.TypeBundlePurchase:
		return fmt.Sprintf("LearnSphere bundle of %d courses", len(p.CartItems()))
	case paymentDomain.TypeSubscription:
		return "LearnSphere membership"
	default:
		return "LearnSphere course purchase"
	}
}

// toPaymentDTO maps a domain Payment to a PaymentDTO.
func toPaymentDTO(p *paymentDomain.Payment) PaymentDTO {
	return PaymentDTO{
		ID:             p.ID(),
		UserID:         p.UserID(),
		CourseID:       p.CourseID(),
		CartItems:      p.CartItems(),
		PaymentType:    string(p.PaymentType()),
		Amount:         p.Amount(),
		OriginalAmount: p.OriginalAmount(),
		PromoCode:      p.PromoCode(),
		PromoDiscount:  p.PromoDiscount(),
		Currency:       p.Currency(),
		Gateway:        p.Gateway(),
		PaymentMethod:  p.PaymentMethod(),
		Status:         string(p.Status()),
		GatewayRef:     p.GatewayRef(),
		GatewayTxnID:   p.GatewayTxnID(),
		CheckoutURL:    p.CheckoutURL(),
		FailureReason:  p.FailureReason(),
		CompletedAt:    p.CompletedAt(),
		RefundedAt:     p.RefundedAt(),
		Version:        p.Version(),
		CreatedAt:      p.CreatedAt(),
		UpdatedAt:      p.UpdatedAt(),
	}
}
