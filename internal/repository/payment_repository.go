package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnsphere/service-payment/internal/domain"
	paymentDomain "github.com/learnsphere/service-payment/internal/domain/payment"
)

// PaymentModel is the GORM persistence model for the payments table.
type PaymentModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index"`
	CourseID       *uuid.UUID `gorm:"type:uuid;index"`
	CartItems      []byte     `gorm:"type:jsonb"`
	PaymentType    string     `gorm:"type:varchar(30);not null"`
	Amount         float64    `gorm:"type:numeric(10,3);not null"`
	OriginalAmount float64    `gorm:"type:numeric(10,3);not null"`
	PromoCodeID    *uuid.UUID `gorm:"type:uuid"`
	PromoCode      string     `gorm:"type:varchar(50)"`
	PromoDiscount  float64    `gorm:"type:numeric(10,3);not null;default:0"`
	Currency       string     `gorm:"type:varchar(3);not null;default:'TND'"`
	Gateway        string     `gorm:"type:varchar(20);not null"`
	PaymentMethod  string     `gorm:"type:varchar(50)"`
	Status         string     `gorm:"type:varchar(20);not null;default:'pending';index"`
	GatewayRef     string     `gorm:"type:varchar(255);index"`
	GatewayTxnID   string     `gorm:"type:varchar(255)"`
	CheckoutURL    string     `gorm:"type:text"`
	FailureReason  string     `gorm:"type:text"`
	CompletedAt    *time.Time `gorm:"type:timestamptz"`
	RefundedAt     *time.Time `gorm:"type:timestamptz"`
	Version        int64      `gorm:"not null;default:1"`
	CreatedAt      time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt      time.Time  `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName specifies the table name for GORM.
func (PaymentModel) TableName() string {
	return "payments"
}

// PaymentRepositoryImpl is the GORM-based implementation of payment.Repository.
type PaymentRepositoryImpl struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new GORM-based payment repository.
func NewPaymentRepository(db *gorm.DB) *PaymentRepositoryImpl {
	return &PaymentRepositoryImpl{db: db}
}

// FindByID retrieves a payment by its unique ID.
func (r *PaymentRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	var model PaymentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Payment", id.String())
		}
		return nil, err
	}
	return paymentToDomain(&model)
}

// FindByGatewayRef retrieves a payment by the provider-assigned reference.
func (r *PaymentRepositoryImpl) FindByGatewayRef(ctx context.Context, gatewayRef string) (*paymentDomain.Payment, error) {
	var model PaymentModel
	if err := r.db.WithContext(ctx).Where("gateway_ref = ?", gatewayRef).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Payment", gatewayRef)
		}
		return nil, err
	}
	return paymentToDomain(&model)
}

// FindByUser retrieves a user's payments, newest first.
func (r *PaymentRepositoryImpl) FindByUser(ctx context.Context, userID uuid.UUID) ([]*paymentDomain.Payment, error) {
	var models []PaymentModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return paymentsToDomain(models)
}

// Save persists a new payment aggregate.
func (r *PaymentRepositoryImpl) Save(ctx context.Context, payment *paymentDomain.Payment) error {
	model, err := paymentToModel(payment)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists changes to an existing payment with optimistic locking.
func (r *PaymentRepositoryImpl) Update(ctx context.Context, payment *paymentDomain.Payment) error {
	model, err := paymentToModel(payment)
	if err != nil {
		return err
	}
	previousVersion := payment.Version() - 1

	result := r.db.WithContext(ctx).
		Model(&PaymentModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("payment was modified by another transaction")
	}

	return nil
}

// ListAll retrieves all payments with pagination (admin).
func (r *PaymentRepositoryImpl) ListAll(ctx context.Context, page, limit int) ([]*paymentDomain.Payment, int64, error) {
	var total int64
	r.db.WithContext(ctx).Model(&PaymentModel{}).Count(&total)

	var models []PaymentModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}

	payments, err := paymentsToDomain(models)
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// GetRevenueStats returns total completed revenue and a count per status (admin).
func (r *PaymentRepositoryImpl) GetRevenueStats(ctx context.Context) (float64, map[string]int64, error) {
	var totalRevenue float64
	r.db.WithContext(ctx).Model(&PaymentModel{}).
		Where("status = ?", string(paymentDomain.StatusCompleted)).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&totalRevenue)

	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&PaymentModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return 0, nil, err
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return totalRevenue, counts, nil
}

func paymentsToDomain(models []PaymentModel) ([]*paymentDomain.Payment, error) {
	payments := make([]*paymentDomain.Payment, len(models))
	for i := range models {
		p, err := paymentToDomain(&models[i])
		if err != nil {
			return nil, err
		}
		payments[i] = p
	}
	return payments, nil
}

// paymentToDomain maps a PaymentModel to the domain Payment aggregate.
func paymentToDomain(model *PaymentModel) (*paymentDomain.Payment, error) {
	var cartItems []paymentDomain.CartItem
	if len(model.CartItems) > 0 {
		if err := json.Unmarshal(model.CartItems, &cartItems); err != nil {
			return nil, err
		}
	}

	return paymentDomain.Reconstitute(
		model.ID,
		model.UserID,
		model.CourseID,
		cartItems,
		paymentDomain.Type(model.PaymentType),
		model.Amount,
		model.OriginalAmount,
		model.PromoCodeID,
		model.PromoCode,
		model.PromoDiscount,
		model.Currency,
		model.Gateway,
		model.PaymentMethod,
		paymentDomain.Status(model.Status),
		model.GatewayRef,
		model.GatewayTxnID,
		model.CheckoutURL,
		model.FailureReason,
		model.CompletedAt,
		model.RefundedAt,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	), nil
}

// paymentToModel maps a domain Payment aggregate to a PaymentModel for persistence.
func paymentToModel(p *paymentDomain.Payment) (*PaymentModel, error) {
	var cartItems []byte
	if len(p.CartItems()) > 0 {
		var err error
		cartItems, err = json.Marshal(p.CartItems())
		if err != nil {
			return nil, err
		}
	}

	return &PaymentModel{
		ID:             p.ID(),
		UserID:         p.UserID(),
		CourseID:       p.CourseID(),
		CartItems:      cartItems,
		PaymentType:    string(p.PaymentType()),
		Amount:         p.Amount(),
		OriginalAmount: p.OriginalAmount(),
		PromoCodeID:    p.PromoCodeID(),
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
	}, nil
}
