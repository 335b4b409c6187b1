package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnsphere/service-payment/internal/domain"
	subDomain "github.com/learnsphere/service-payment/internal/domain/subscription"
)

// SubscriptionModel is the GORM persistence model for the subscriptions table.
type SubscriptionModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	Plan      string     `gorm:"type:varchar(20);not null"`
	Price     float64    `gorm:"type:numeric(10,3);not null"`
	PaymentID *uuid.UUID `gorm:"type:uuid;index"`
	StartedAt *time.Time `gorm:"type:timestamptz"`
	ExpiresAt *time.Time `gorm:"type:timestamptz"`
	Status    string     `gorm:"type:varchar(20);not null;default:'pending_payment'"`
	AutoRenew bool       `gorm:"not null;default:true"`
	CreatedAt time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt time.Time  `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName specifies the table name for GORM.
func (SubscriptionModel) TableName() string {
	return "subscriptions"
}

// SubscriptionRepositoryImpl is the GORM-based implementation of subscription.Repository.
type SubscriptionRepositoryImpl struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new GORM-based subscription repository.
func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepositoryImpl {
	return &SubscriptionRepositoryImpl{db: db}
}

// Save persists a new subscription.
func (r *SubscriptionRepositoryImpl) Save(ctx context.Context, s *subDomain.Subscription) error {
	return r.db.WithContext(ctx).Create(subToModel(s)).Error
}

// Update persists changes to an existing subscription.
func (r *SubscriptionRepositoryImpl) Update(ctx context.Context, s *subDomain.Subscription) error {
	return r.db.WithContext(ctx).Save(subToModel(s)).Error
}

// FindByID retrieves a subscription by its unique ID.
func (r *SubscriptionRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*subDomain.Subscription, error) {
	var model SubscriptionModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Subscription", id.String())
		}
		return nil, err
	}
	return subToDomain(&model), nil
}

// FindByPaymentID retrieves the subscription paid for by the given payment.
func (r *SubscriptionRepositoryImpl) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*subDomain.Subscription, error) {
	var model SubscriptionModel
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Subscription", paymentID.String())
		}
		return nil, err
	}
	return subToDomain(&model), nil
}

// FindActiveByUserID retrieves the user's most recent active subscription.
func (r *SubscriptionRepositoryImpl) FindActiveByUserID(ctx context.Context, userID uuid.UUID) (*subDomain.Subscription, error) {
	var model SubscriptionModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, string(subDomain.StatusActive)).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Subscription", userID.String())
		}
		return nil, err
	}
	return subToDomain(&model), nil
}

func subToDomain(model *SubscriptionModel) *subDomain.Subscription {
	return subDomain.Reconstruct(
		model.ID,
		model.UserID,
		subDomain.PlanType(model.Plan),
		model.Price,
		model.PaymentID,
		model.StartedAt,
		model.ExpiresAt,
		subDomain.Status(model.Status),
		model.AutoRenew,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

func subToModel(s *subDomain.Subscription) *SubscriptionModel {
	return &SubscriptionModel{
		ID:        s.ID(),
		UserID:    s.UserID(),
		Plan:      string(s.Plan()),
		Price:     s.Price(),
		PaymentID: s.PaymentID(),
		StartedAt: s.StartedAt(),
		ExpiresAt: s.ExpiresAt(),
		Status:    string(s.Status()),
		AutoRenew: s.AutoRenew(),
		CreatedAt: s.CreatedAt(),
		UpdatedAt: s.UpdatedAt(),
	}
}
