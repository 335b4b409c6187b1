package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnsphere/service-payment/internal/domain"
	promoDomain "github.com/learnsphere/service-payment/internal/domain/promo"
	"github.com/learnsphere/service-payment/internal/events"
)

// CreatePromoRequest holds data to create a promo code.
type CreatePromoRequest struct {
	Code              string   `json:"code" binding:"required"`
	DiscountType      string   `json:"discount_type" binding:"required"`
	DiscountValue     float64  `json:"discount_value" binding:"required"`
	MinPurchaseAmount float64  `json:"min_purchase_amount"`
	MaxUses           int      `json:"max_uses"`
	ValidFrom         string   `json:"valid_from"`
	ValidUntil        string   `json:"valid_until"`
	ApplicableCourses []string `json:"applicable_courses"`
}

// UpdatePromoRequest holds optional admin edits to a promo code.
type UpdatePromoRequest struct {
	DiscountValue     *float64  `json:"discount_value"`
	MinPurchaseAmount *float64  `json:"min_purchase_amount"`
	MaxUses           *int      `json:"max_uses"`
	IsActive          *bool     `json:"is_active"`
	ValidFrom         *string   `json:"valid_from"`
	ValidUntil        *string   `json:"valid_until"`
	ApplicableCourses *[]string `json:"applicable_courses"`
}

// ValidatePromoRequest holds data to validate a promo code against a subtotal.
type ValidatePromoRequest struct {
	Code     string  `json:"code" binding:"required"`
	Subtotal float64 `json:"subtotal" binding:"required,gt=0"`
	CourseID *string `json:"course_id"`
}

// PromoDTO is the API response representation of a promo code.
type PromoDTO struct {
	ID                uuid.UUID   `json:"id"`
	Code              string      `json:"code"`
	DiscountType      string      `json:"discount_type"`
	DiscountValue     float64     `json:"discount_value"`
	MinPurchaseAmount float64     `json:"min_purchase_amount"`
	MaxUses           int         `json:"max_uses"`
	UsedCount         int         `json:"used_count"`
	IsActive          bool        `json:"is_active"`
	ValidFrom         *time.Time  `json:"valid_from,omitempty"`
	ValidUntil        *time.Time  `json:"valid_until,omitempty"`
	ApplicableCourses []uuid.UUID `json:"applicable_courses,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// PromoValidationDTO is the pricing-preview result of validating a promo code.
type PromoValidationDTO struct {
	Valid         bool      `json:"valid"`
	Code          string    `json:"code"`
	DiscountType  string    `json:"discount_type"`
	DiscountValue float64   `json:"discount_value"`
	Discount      float64   `json:"discount"`
	PromoCodeID   uuid.UUID `json:"promo_code_id"`
}

// PromoService handles promo code use cases. Validation is a public
// pricing-preview operation; redemption happens only from the checkout
// completion path; administrative operations are role-gated at the HTTP layer.
type PromoService struct {
	repo      promoDomain.Repository
	publisher *events.Publisher
	logger    *zap.Logger
}

// NewPromoService creates a new PromoService. publisher may be nil in tests.
func NewPromoService(repo promoDomain.Repository, publisher *events.Publisher, logger *zap.Logger) *PromoService {
	return &PromoService{repo: repo, publisher: publisher, logger: logger}
}

// Validate checks a promo code against a subtotal and optional course, and
// computes the discount. Read-only; safe to call unauthenticated and
// repeatedly; usage is only consumed at checkout completion. userID, when
// known, enables the one-redemption-per-user check.
func (s *PromoService) Validate(ctx context.Context, userID *uuid.UUID, req ValidatePromoRequest) (*PromoValidationDTO, error) {
	promo, err := s.repo.FindByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	if !promo.IsValid(time.Now().UTC()) {
		return nil, domain.NewInvalidStateError("promo code is inactive, expired or fully used")
	}

	if req.CourseID != nil {
		courseID, err := uuid.Parse(*req.CourseID)
		if err != nil {
			return nil, domain.NewValidationError("invalid course id")
		}
		if !promo.CanApplyToCourse(courseID) {
			return nil, domain.NewIneligibleError("promo code does not apply to this course")
		}
	}

	if userID != nil {
		redeemed, err := s.repo.HasUserRedeemed(ctx, promo.ID(), *userID)
		if err != nil {
			return nil, err
		}
		if redeemed {
			return nil, domain.NewIneligibleError("promo code already used by this account")
		}
	}

	discount, err := promo.CalculateDiscount(req.Subtotal)
	if err != nil {
		return nil, err
	}

	return &PromoValidationDTO{
		Valid:         true,
		Code:          promo.Code(),
		DiscountType:  string(promo.DiscountType()),
		DiscountValue: promo.DiscountValue(),
		Discount:      discount,
		PromoCodeID:   promo.ID(),
	}, nil
}

// Redeem consumes one use of a promo code for a completed checkout. It is
// called exclusively from the payment completion path, never from a
// caller-reachable endpoint, so price previews cannot exhaust limited codes.
// The repository increment is atomic and conditional: when two checkouts race
// for the last remaining use, exactly one wins.
func (s *PromoService) Redeem(ctx context.Context, promoID, userID, paymentID uuid.UUID, discount float64) error {
	if err := s.repo.IncrementUsage(ctx, promoID); err != nil {
		return err
	}

	redemption := &promoDomain.Redemption{
		ID:         uuid.New(),
		PromoID:    promoID,
		UserID:     userID,
		PaymentID:  paymentID,
		Discount:   discount,
		RedeemedAt: time.Now().UTC(),
	}
	if err := s.repo.SaveRedemption(ctx, redemption); err != nil {
		return fmt.Errorf("failed to save redemption: %w", err)
	}

	if s.publisher != nil {
		promo, err := s.repo.FindByID(ctx, promoID)
		code := ""
		if err == nil {
			code = promo.Code()
		}
		if err := s.publisher.PromoRedeemed(ctx, events.PromoRedeemedEvent{
			PromoID:   promoID,
			Code:      code,
			UserID:    userID,
			PaymentID: paymentID,
			Discount:  discount,
		}); err != nil {
			s.logger.Error("failed to publish promo redeemed event", zap.Error(err))
		}
	}

	s.logger.Info("promo code redeemed",
		zap.String("promo_id", promoID.String()),
		zap.String("payment_id", paymentID.String()),
	)
	return nil
}

// CreatePromo creates a new promo code (admin only).
func (s *PromoService) CreatePromo(ctx context.Context, createdBy uuid.UUID, req CreatePromoRequest) (*PromoDTO, error) {
	validFrom, err := parseOptionalTime(req.ValidFrom)
	if err != nil {
		return nil, domain.NewValidationError("invalid valid_from format (use RFC3339)")
	}
	validUntil, err := parseOptionalTime(req.ValidUntil)
	if err != nil {
		return nil, domain.NewValidationError("invalid valid_until format (use RFC3339)")
	}
	courses, err := parseCourseIDs(req.ApplicableCourses)
	if err != nil {
		return nil, err
	}

	promo, err := promoDomain.NewPromoCode(
		req.Code,
		promoDomain.DiscountType(req.DiscountType),
		req.DiscountValue,
		req.MinPurchaseAmount,
		req.MaxUses,
		validFrom,
		validUntil,
		courses,
		createdBy,
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, promo); err != nil {
		return nil, fmt.Errorf("failed to save promo: %w", err)
	}

	s.logger.Info("promo code created", zap.String("code", promo.Code()))
	return toPromoDTO(promo), nil
}

// UpdatePromo applies admin edits to an existing promo code (admin only).
// The code string itself is immutable.
func (s *PromoService) UpdatePromo(ctx context.Context, id uuid.UUID, req UpdatePromoRequest) (*PromoDTO, error) {
	promo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	patch := promoDomain.UpdatePatch{
		DiscountValue:     req.DiscountValue,
		MinPurchaseAmount: req.MinPurchaseAmount,
		MaxUses:           req.MaxUses,
		IsActive:          req.IsActive,
	}
	if req.ValidFrom != nil {
		t, err := parseOptionalTime(*req.ValidFrom)
		if err != nil {
			return nil, domain.NewValidationError("invalid valid_from format (use RFC3339)")
		}
		patch.ValidFrom = t
	}
	if req.ValidUntil != nil {
		t, err := parseOptionalTime(*req.ValidUntil)
		if err != nil {
			return nil, domain.NewValidationError("invalid valid_until format (use RFC3339)")
		}
		patch.ValidUntil = t
	}
	if req.ApplicableCourses != nil {
		courses, err := parseCourseIDs(*req.ApplicableCourses)
		if err != nil {
			return nil, err
		}
		patch.ApplicableCourses = &courses
	}

	if err := promo.Apply(patch); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, promo); err != nil {
		return nil, fmt.Errorf("failed to update promo: %w", err)
	}

	s.logger.Info("promo code updated", zap.String("code", promo.Code()))
	return toPromoDTO(promo), nil
}

// DeactivatePromo soft-deletes a promo code (admin only). This is the
// recommended retirement path.
func (s *PromoService) DeactivatePromo(ctx context.Context, id uuid.UUID) (*PromoDTO, error) {
	promo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	promo.Deactivate()
	if err := s.repo.Update(ctx, promo); err != nil {
		return nil, fmt.Errorf("failed to deactivate promo: %w", err)
	}

	s.logger.Info("promo code deactivated", zap.String("code", promo.Code()))
	return toPromoDTO(promo), nil
}

// DeletePromo hard-deletes a promo code (admin only, explicit).
func (s *PromoService) DeletePromo(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete promo: %w", err)
	}
	s.logger.Info("promo code deleted", zap.String("promo_id", id.String()))
	return nil
}

// GetActivePromos returns all currently redeemable promo codes.
func (s *PromoService) GetActivePromos(ctx context.Context) ([]*PromoDTO, error) {
	promos, err := s.repo.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	return toPromoDTOs(promos), nil
}

// ListAllPromos returns every promo code including inactive ones (admin only).
func (s *PromoService) ListAllPromos(ctx context.Context) ([]*PromoDTO, error) {
	promos, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return toPromoDTOs(promos), nil
}

// GetPromosByCourse returns the promos restricted to a given course.
func (s *PromoService) GetPromosByCourse(ctx context.Context, courseID uuid.UUID) ([]*PromoDTO, error) {
	promos, err := s.repo.FindByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return toPromoDTOs(promos), nil
}

func parseOptionalTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseCourseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, domain.NewValidationError("invalid course id: " + s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func toPromoDTO(p *promoDomain.PromoCode) *PromoDTO {
	return &PromoDTO{
		ID:                p.ID(),
		Code:              p.Code(),
		DiscountType:      string(p.DiscountType()),
		DiscountValue:     p.DiscountValue(),
		MinPurchaseAmount: p.MinPurchaseAmount(),
		MaxUses:           p.MaxUses(),
		UsedCount:         p.UsedCount(),
		IsActive:          p.IsActive(),
		ValidFrom:         p.ValidFrom(),
		ValidUntil:        p.ValidUntil(),
		ApplicableCourses: p.ApplicableCourses(),
		CreatedAt:         p.CreatedAt(),
		UpdatedAt:         p.UpdatedAt(),
	}
}

func toPromoDTOs(promos []*promoDomain.PromoCode) []*PromoDTO {
	dtos := make([]*PromoDTO, len(promos))
	for i, p := range promos {
		dtos[i] = toPromoDTO(p)
	}
	return dtos
}
