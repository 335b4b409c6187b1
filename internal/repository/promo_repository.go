package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnsphere/service-payment/internal/domain"
	promoDomain "github.com/learnsphere/service-payment/internal/domain/promo"
)

// PromoModel is the GORM persistence model for the promo_codes table.
type PromoModel struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	Code              string     `gorm:"type:varchar(50);uniqueIndex;not null"`
	DiscountType      string     `gorm:"type:varchar(20);not null"`
	DiscountValue     float64    `gorm:"type:numeric(10,3);not null"`
	MinPurchaseAmount float64    `gorm:"type:numeric(10,3);not null;default:0"`
	MaxUses           int        `gorm:"not null;default:0"`
	UsedCount         int        `gorm:"not null;default:0"`
	IsActive          bool       `gorm:"not null;default:true"`
	ValidFrom         *time.Time `gorm:"type:timestamptz"`
	ValidUntil        *time.Time `gorm:"type:timestamptz"`
	ApplicableCourses []byte     `gorm:"type:jsonb"`
	CreatedBy         uuid.UUID  `gorm:"type:uuid;not null"`
	CreatedAt         time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt         time.Time  `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName specifies the table name for GORM.
func (PromoModel) TableName() string {
	return "promo_codes"
}

// RedemptionModel is the GORM persistence model for the promo_redemptions table.
// The unique index on (promo_id, user_id) backs the one-use-per-user rule.
type RedemptionModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	PromoID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_promo_user"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_promo_user"`
	PaymentID  uuid.UUID `gorm:"type:uuid;not null"`
	Discount   float64   `gorm:"type:numeric(10,3);not null"`
	RedeemedAt time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName specifies the table name for GORM.
func (RedemptionModel) TableName() string {
	return "promo_redemptions"
}

// PromoRepositoryImpl is the GORM-based implementation of promo.Repository.
type PromoRepositoryImpl struct {
	db *gorm.DB
}

// NewPromoRepository creates a new GORM-based promo repository.
func NewPromoRepository(db *gorm.DB) *PromoRepositoryImpl {
	return &PromoRepositoryImpl{db: db}
}

// Save persists a new promo code.
func (r *PromoRepositoryImpl) Save(ctx context.Context, p *promoDomain.PromoCode) error {
	model, err := promoToModel(p)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("promo code already exists: " + p.Code())
		}
		return err
	}
	return nil
}

// Update persists changes to an existing promo code. Save writes every column
// so deactivation and cleared windows persist.
func (r *PromoRepositoryImpl) Update(ctx context.Context, p *promoDomain.PromoCode) error {
	model, err := promoToModel(p)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete removes a promo code permanently.
func (r *PromoRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&PromoModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("PromoCode", id.String())
	}
	return nil
}

// FindByCode retrieves a promo code by its exact code string.
func (r *PromoRepositoryImpl) FindByCode(ctx context.Context, code string) (*promoDomain.PromoCode, error) {
	var model PromoModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("PromoCode", code)
		}
		return nil, err
	}
	return promoToDomain(&model)
}

// FindByID retrieves a promo code by its unique ID.
func (r *PromoRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*promoDomain.PromoCode, error) {
	var model PromoModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("PromoCode", id.String())
		}
		return nil, err
	}
	return promoToDomain(&model)
}

// FindActive retrieves all active promo codes.
func (r *PromoRepositoryImpl) FindActive(ctx context.Context) ([]*promoDomain.PromoCode, error) {
	var models []PromoModel
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return promosToDomain(models)
}

// FindAll retrieves every promo code (admin).
func (r *PromoRepositoryImpl) FindAll(ctx context.Context) ([]*promoDomain.PromoCode, error) {
	var models []PromoModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return promosToDomain(models)
}

// FindByCourse retrieves active promo codes restricted to the given course or
// open to every course.
func (r *PromoRepositoryImpl) FindByCourse(ctx context.Context, courseID uuid.UUID) ([]*promoDomain.PromoCode, error) {
	var models []PromoModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ? AND (applicable_courses IS NULL OR applicable_courses @> ?)", true, `["`+courseID.String()+`"]`).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return promosToDomain(models)
}

// IncrementUsage atomically consumes one use. The conditional UPDATE is the
// arbiter under concurrency: when two redemptions race for the last remaining
// use, exactly one matches the WHERE clause.
func (r *PromoRepositoryImpl) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&PromoModel{}).
		Where("id = ? AND (max_uses = 0 OR used_count < max_uses)", id).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("promo code usage limit reached")
	}
	return nil
}

// SaveRedemption records one completed-checkout use of a promo code.
func (r *PromoRepositoryImpl) SaveRedemption(ctx context.Context, red *promoDomain.Redemption) error {
	model := &RedemptionModel{
		ID:         red.ID,
		PromoID:    red.PromoID,
		UserID:     red.UserID,
		PaymentID:  red.PaymentID,
		Discount:   red.Discount,
		RedeemedAt: red.RedeemedAt,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("promo code already redeemed by this user")
		}
		return err
	}
	return nil
}

// HasUserRedeemed reports whether the user has already redeemed the promo.
func (r *PromoRepositoryImpl) HasUserRedeemed(ctx context.Context, promoID, userID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&RedemptionModel{}).
		Where("promo_id = ? AND user_id = ?", promoID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func promosToDomain(models []PromoModel) ([]*promoDomain.PromoCode, error) {
	promos := make([]*promoDomain.PromoCode, len(models))
	for i := range models {
		p, err := promoToDomain(&models[i])
		if err != nil {
			return nil, err
		}
		promos[i] = p
	}
	return promos, nil
}

// promoToDomain maps a PromoModel to the domain PromoCode aggregate.
func promoToDomain(model *PromoModel) (*promoDomain.PromoCode, error) {
	var courses []uuid.UUID
	if len(model.ApplicableCourses) > 0 {
		if err := json.Unmarshal(model.ApplicableCourses, &courses); err != nil {
			return nil, err
		}
	}

	return promoDomain.Reconstruct(
		model.ID,
		model.Code,
		promoDomain.DiscountType(model.DiscountType),
		model.DiscountValue,
		model.MinPurchaseAmount,
		model.MaxUses,
		model.UsedCount,
		model.IsActive,
		model.ValidFrom,
		model.ValidUntil,
		courses,
		model.CreatedBy,
		model.CreatedAt,
		model.UpdatedAt,
	), nil
}

// promoToModel maps a domain PromoCode aggregate to a PromoModel for persistence.
func promoToModel(p *promoDomain.PromoCode) (*PromoModel, error) {
	var courses []byte
	if len(p.ApplicableCourses()) > 0 {
		var err error
		courses, err = json.Marshal(p.ApplicableCourses())
		if err != nil {
			return nil, err
		}
	}

	return &PromoModel{
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
		ApplicableCourses: courses,
		CreatedBy:         p.CreatedBy(),
		CreatedAt:         p.CreatedAt(),
		UpdatedAt:         p.UpdatedAt(),
	}, nil
}
