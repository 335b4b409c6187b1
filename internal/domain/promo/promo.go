package promo

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/learnsphere/service-payment/internal/domain"
	"github.com/learnsphere/service-payment/internal/money"
)

// DiscountType represents the type of discount.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// PromoCode is the aggregate root for promotional codes.
//
// Amounts are TND major-unit decimals. The code string is stored exactly as
// created; lookups are case-sensitive.
type PromoCode struct {
	id                uuid.UUID
	code              string
	discountType      DiscountType
	discountValue     float64
	minPurchaseAmount float64
	maxUses           int // 0 means unlimited
	usedCount         int
	isActive          bool
	validFrom         *time.Time
	validUntil        *time.Time
	applicableCourses []uuid.UUID // empty means the code applies to every course
	createdBy         uuid.UUID
	createdAt         time.Time
	updatedAt         time.Time
}

// NewPromoCode creates a new promo code.
func NewPromoCode(
	code string,
	discountType DiscountType,
	discountValue, minPurchaseAmount float64,
	maxUses int,
	validFrom, validUntil *time.Time,
	applicableCourses []uuid.UUID,
	createdBy uuid.UUID,
) (*PromoCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.NewValidationError("promo code is required")
	}
	if discountType != DiscountTypePercentage && discountType != DiscountTypeFixed {
		return nil, domain.NewValidationError("invalid discount type: " + string(discountType))
	}
	if discountValue <= 0 {
		return nil, domain.NewValidationError("discount value must be positive")
	}
	if discountType == DiscountTypePercentage && discountValue > 100 {
		return nil, domain.NewValidationError("percentage discount cannot exceed 100")
	}
	if minPurchaseAmount < 0 {
		return nil, domain.NewValidationError("minimum purchase amount cannot be negative")
	}
	if maxUses < 0 {
		return nil, domain.NewValidationError("max uses cannot be negative")
	}
	if validFrom != nil && validUntil != nil && validUntil.Before(*validFrom) {
		return nil, domain.NewValidationError("valid_until must be after valid_from")
	}

	now := time.Now().UTC()
	return &PromoCode{
		id:                uuid.New(),
		code:              code,
		discountType:      discountType,
		discountValue:     discountValue,
		minPurchaseAmount: minPurchaseAmount,
		maxUses:           maxUses,
		usedCount:         0,
		isActive:          true,
		validFrom:         validFrom,
		validUntil:        validUntil,
		applicableCourses: applicableCourses,
		createdBy:         createdBy,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

// Reconstruct rebuilds a PromoCode from persistence.
func Reconstruct(
	id uuid.UUID,
	code string,
	discountType DiscountType,
	discountValue, minPurchaseAmount float64,
	maxUses, usedCount int,
	isActive bool,
	validFrom, validUntil *time.Time,
	applicableCourses []uuid.UUID,
	createdBy uuid.UUID,
	createdAt, updatedAt time.Time,
) *PromoCode {
	return &PromoCode{
		id: id, code: code, discountType: discountType, discountValue: discountValue,
		minPurchaseAmount: minPurchaseAmount,
		maxUses:           maxUses, usedCount: usedCount, isActive: isActive,
		validFrom: validFrom, validUntil: validUntil,
		applicableCourses: applicableCourses,
		createdBy:         createdBy, createdAt: createdAt, updatedAt: updatedAt,
	}
}

// IsValid reports whether the promo code is redeemable at the given time.
// Pure function of entity state and the clock; no side effects.
func (p *PromoCode) IsValid(now time.Time) bool {
	if !p.isActive {
		return false
	}
	if p.validFrom != nil && now.Before(*p.validFrom) {
		return false
	}
	if p.validUntil != nil && now.After(*p.validUntil) {
		return false
	}
	if p.maxUses > 0 && p.usedCount >= p.maxUses {
		return false
	}
	return true
}

// CanApplyToCourse reports whether the code applies to the given course.
// An empty restriction set applies to every course.
func (p *PromoCode) CanApplyToCourse(courseID uuid.UUID) bool {
	if len(p.applicableCourses) == 0 {
		return true
	}
	for _, id := range p.applicableCourses {
		if id == courseID {
			return true
		}
	}
	return false
}

// CalculateDiscount computes the discount for a cart subtotal.
//
// Percentage discounts round half-up to 2 decimals on the computed value; fixed
// discounts are capped at the subtotal so the total can never go negative.
func (p *PromoCode) CalculateDiscount(subtotal float64) (float64, error) {
	if subtotal < p.minPurchaseAmount {
		return 0, domain.NewBelowMinimumError(p.minPurchaseAmount)
	}

	switch p.discountType {
	case DiscountTypePercentage:
		return money.Round2(subtotal * p.discountValue / 100), nil
	case DiscountTypeFixed:
		if p.discountValue > subtotal {
			return subtotal, nil
		}
		return p.discountValue, nil
	default:
		// Unknown types stored by older writers are rejected rather than
		// silently discounting zero.
		return 0, domain.NewInvalidStateError("unknown discount type: " + string(p.discountType))
	}
}

// IncrementUsage records one redemption. The maxUses ceiling is not re-checked
// here; callers re-validate and the repository increment is conditional.
func (p *PromoCode) IncrementUsage() {
	p.usedCount++
	p.updatedAt = time.Now().UTC()
}

// Deactivate soft-deletes the code. This is the recommended retirement path;
// hard deletion is a separate explicit admin operation.
func (p *PromoCode) Deactivate() {
	p.isActive = false
	p.updatedAt = time.Now().UTC()
}

// UpdatePatch carries optional admin edits. The code string itself is immutable
// after creation.
type UpdatePatch struct {
	DiscountValue     *float64
	MinPurchaseAmount *float64
	MaxUses           *int
	IsActive          *bool
	ValidFrom         *time.Time
	ValidUntil        *time.Time
	ApplicableCourses *[]uuid.UUID
}

// Apply validates and applies an admin update.
func (p *PromoCode) Apply(patch UpdatePatch) error {
	if patch.DiscountValue != nil {
		v := *patch.DiscountValue
		if v <= 0 {
			return domain.NewValidationError("discount value must be positive")
		}
		if p.discountType == DiscountTypePercentage && v > 100 {
			return domain.NewValidationError("percentage discount cannot exceed 100")
		}
		p.discountValue = v
	}
	if patch.MinPurchaseAmount != nil {
		if *patch.MinPurchaseAmount < 0 {
			return domain.NewValidationError("minimum purchase amount cannot be negative")
		}
		p.minPurchaseAmount = *patch.MinPurchaseAmount
	}
	if patch.MaxUses != nil {
		if *patch.MaxUses < 0 {
			return domain.NewValidationError("max uses cannot be negative")
		}
		p.maxUses = *patch.MaxUses
	}
	if patch.IsActive != nil {
		p.isActive = *patch.IsActive
	}
	if patch.ValidFrom != nil {
		p.validFrom = patch.ValidFrom
	}
	if patch.ValidUntil != nil {
		p.validUntil = patch.ValidUntil
	}
	if p.validFrom != nil && p.validUntil != nil && p.validUntil.Before(*p.validFrom) {
		return domain.NewValidationError("valid_until must be after valid_from")
	}
	if patch.ApplicableCourses != nil {
		p.applicableCourses = *patch.ApplicableCourses
	}
	p.updatedAt = time.Now().UTC()
	return nil
}

// Getters.
func (p *PromoCode) ID() uuid.UUID                  { return p.id }
func (p *PromoCode) Code() string                   { return p.code }
func (p *PromoCode) DiscountType() DiscountType     { return p.discountType }
func (p *PromoCode) DiscountValue() float64         { return p.discountValue }
func (p *PromoCode) MinPurchaseAmount() float64     { return p.minPurchaseAmount }
func (p *PromoCode) MaxUses() int                   { return p.maxUses }
func (p *PromoCode) UsedCount() int                 { return p.usedCount }
func (p *PromoCode) IsActive() bool                 { return p.isActive }
func (p *PromoCode) ValidFrom() *time.Time          { return p.validFrom }
func (p *PromoCode) ValidUntil() *time.Time         { return p.validUntil }
func (p *PromoCode) ApplicableCourses() []uuid.UUID { return p.applicableCourses }
func (p *PromoCode) CreatedBy() uuid.UUID           { return p.createdBy }
func (p *PromoCode) CreatedAt() time.Time           { return p.createdAt }
func (p *PromoCode) UpdatedAt() time.Time           { return p.updatedAt }
