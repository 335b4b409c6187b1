package promo

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnsphere/service-payment/internal/domain"
)

func newTestPromo(t *testing.T, discountType DiscountType, value float64, opts ...func(*PromoCode)) *PromoCode {
	t.Helper()
	p, err := NewPromoCode("SUMMER20", discountType, value, 0, 0, nil, nil, nil, uuid.New())
	require.NoError(t, err)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func TestNewPromoCode_Validation(t *testing.T) {
	admin := uuid.New()

	_, err := NewPromoCode("", DiscountTypePercentage, 20, 0, 0, nil, nil, nil, admin)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = NewPromoCode("X", "buy_one_get_one", 20, 0, 0, nil, nil, nil, admin)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = NewPromoCode("X", DiscountTypePercentage, 0, 0, 0, nil, nil, nil, admin)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = NewPromoCode("X", DiscountTypePercentage, 120, 0, 0, nil, nil, nil, admin)
	assert.ErrorIs(t, err, domain.ErrValidation)

	from := time.Now().UTC()
	until := from.Add(-time.Hour)
	_, err = NewPromoCode("X", DiscountTypeFixed, 10, 0, 0, &from, &until, nil, admin)
	assert.ErrorIs(t, err, domain.ErrValidation)

	p, err := NewPromoCode("  WELCOME  ", DiscountTypeFixed, 10, 0, 0, nil, nil, nil, admin)
	require.NoError(t, err)
	assert.Equal(t, "WELCOME", p.Code())
	assert.True(t, p.IsActive())
}

func TestIsValid_Window(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	p := newTestPromo(t, DiscountTypePercentage, 20)
	assert.True(t, p.IsValid(now), "no window means always inside the window")

	windowed, err := NewPromoCode("W", DiscountTypePercentage, 20, 0, 0, &past, &future, nil, uuid.New())
	require.NoError(t, err)
	assert.True(t, windowed.IsValid(now))
	assert.False(t, windowed.IsValid(past.Add(-time.Minute)), "before valid_from")
	assert.False(t, windowed.IsValid(future.Add(time.Minute)), "after valid_until")

	p.Deactivate()
	assert.False(t, p.IsValid(now), "deactivated code is never valid")
}

func TestIsValid_UsageCap(t *testing.T) {
	p, err := NewPromoCode("CAP", DiscountTypeFixed, 5, 0, 2, nil, nil, nil, uuid.New())
	require.NoError(t, err)
	now := time.Now().UTC()

	assert.True(t, p.IsValid(now))
	p.IncrementUsage()
	assert.True(t, p.IsValid(now), "one use left")
	p.IncrementUsage()
	assert.False(t, p.IsValid(now), "cap exhausted")
}

func TestIsValid_ZeroMaxUsesIsUnlimited(t *testing.T) {
	p := newTestPromo(t, DiscountTypeFixed, 5)
	now := time.Now().UTC()
	for i := 0; i < 100; i++ {
		p.IncrementUsage()
	}
	assert.True(t, p.IsValid(now))
}

func TestCalculateDiscount_Percentage(t *testing.T) {
	p := newTestPromo(t, DiscountTypePercentage, 20)

	discount, err := p.CalculateDiscount(150.0)
	require.NoError(t, err)
	assert.Equal(t, 30.0, discount)

	odd := newTestPromo(t, DiscountTypePercentage, 15)
	discount, err = odd.CalculateDiscount(99.99)
	require.NoError(t, err)
	assert.Equal(t, 15.0, discount, "rounded to 2 decimals")
}

func TestCalculateDiscount_FixedCappedAtSubtotal(t *testing.T) {
	p := newTestPromo(t, DiscountTypeFixed, 50)

	discount, err := p.CalculateDiscount(30.0)
	require.NoError(t, err)
	assert.Equal(t, 30.0, discount, "discount never exceeds the subtotal")

	discount, err = p.CalculateDiscount(80.0)
	require.NoError(t, err)
	assert.Equal(t, 50.0, discount)
}

func TestCalculateDiscount_BelowMinimum(t *testing.T) {
	p, err := NewPromoCode("MIN", DiscountTypePercentage, 10, 100, 0, nil, nil, nil, uuid.New())
	require.NoError(t, err)

	_, err = p.CalculateDiscount(99.99)
	assert.ErrorIs(t, err, domain.ErrBelowMinimum)

	discount, err := p.CalculateDiscount(100.0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, discount, "minimum is inclusive")
}

func TestCalculateDiscount_UnknownTypeRejected(t *testing.T) {
	p := Reconstruct(
		uuid.New(), "LEGACY", "loyalty_points", 10, 0, 0, 0, true,
		nil, nil, nil, uuid.New(), time.Now().UTC(), time.Now().UTC(),
	)

	_, err := p.CalculateDiscount(100.0)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCanApplyToCourse(t *testing.T) {
	courseA := uuid.New()
	courseB := uuid.New()

	open := newTestPromo(t, DiscountTypeFixed, 5)
	assert.True(t, open.CanApplyToCourse(courseA), "empty restriction set applies to all")

	restricted, err := NewPromoCode("R", DiscountTypeFixed, 5, 0, 0, nil, nil, []uuid.UUID{courseA}, uuid.New())
	require.NoError(t, err)
	assert.True(t, restricted.CanApplyToCourse(courseA))
	assert.False(t, restricted.CanApplyToCourse(courseB))
}

func TestApply_Patch(t *testing.T) {
	p := newTestPromo(t, DiscountTypePercentage, 20)

	bad := 150.0
	err := p.Apply(UpdatePatch{DiscountValue: &bad})
	assert.ErrorIs(t, err, domain.ErrValidation)

	newValue := 25.0
	inactive := false
	require.NoError(t, p.Apply(UpdatePatch{DiscountValue: &newValue, IsActive: &inactive}))
	assert.Equal(t, 25.0, p.DiscountValue())
	assert.False(t, p.IsActive())
	assert.Equal(t, "SUMMER20", p.Code(), "the code string is immutable")
}
