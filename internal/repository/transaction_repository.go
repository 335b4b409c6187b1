package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnsphere/service-payment/internal/domain"
	txnDomain "github.com/learnsphere/service-payment/internal/domain/transaction"
)

// TransactionModel is the GORM persistence model for the transactions table.
type TransactionModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	PaymentID       uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null"`
	UserID          uuid.UUID  `gorm:"type:uuid;not null;index"`
	CourseID        *uuid.UUID `gorm:"type:uuid"`
	Amount          float64    `gorm:"type:numeric(10,3);not null"`
	Currency        string     `gorm:"type:varchar(3);not null"`
	Status          string     `gorm:"type:varchar(20);not null"`
	PaymentMethod   string     `gorm:"type:varchar(50)"`
	Gateway         string     `gorm:"type:varchar(20);not null"`
	GatewayTxnID    string     `gorm:"type:varchar(255)"`
	GatewayResponse []byte     `gorm:"type:jsonb"`
	CreatedAt       time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt       time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	CompletedAt     *time.Time `gorm:"type:timestamptz"`
}

// TableName specifies the table name for GORM.
func (TransactionModel) TableName() string {
	return "transactions"
}

// TransactionRepositoryImpl is the GORM-based implementation of transaction.Repository.
type TransactionRepositoryImpl struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new GORM-based transaction repository.
func NewTransactionRepository(db *gorm.DB) *TransactionRepositoryImpl {
	return &TransactionRepositoryImpl{db: db}
}

// Save persists a transaction record.
func (r *TransactionRepositoryImpl) Save(ctx context.Context, t *txnDomain.Transaction) error {
	return r.db.WithContext(ctx).Create(txnToModel(t)).Error
}

// FindByPaymentID retrieves the transaction record for a payment.
func (r *TransactionRepositoryImpl) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*txnDomain.Transaction, error) {
	var model TransactionModel
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Transaction", paymentID.String())
		}
		return nil, err
	}
	return txnToDomain(&model), nil
}

// ListByUser retrieves a user's transaction records, newest first.
func (r *TransactionRepositoryImpl) ListByUser(ctx context.Context, userID uuid.UUID) ([]*txnDomain.Transaction, error) {
	var models []TransactionModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	txns := make([]*txnDomain.Transaction, len(models))
	for i := range models {
		txns[i] = txnToDomain(&models[i])
	}
	return txns, nil
}

// MarkRefunded flips the stored status of a completed transaction.
func (r *TransactionRepositoryImpl) MarkRefunded(ctx context.Context, paymentID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&TransactionModel{}).
		Where("payment_id = ?", paymentID).
		Updates(map[string]any{
			"status":     "refunded",
			"updated_at": time.Now().UTC(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Transaction", paymentID.String())
	}
	return nil
}

func txnToDomain(model *TransactionModel) *txnDomain.Transaction {
	return &txnDomain.Transaction{
		ID:              model.ID,
		PaymentID:       model.PaymentID,
		UserID:          model.UserID,
		CourseID:        model.CourseID,
		Amount:          model.Amount,
		Currency:        model.Currency,
		Status:          model.Status,
		PaymentMethod:   model.PaymentMethod,
		Gateway:         model.Gateway,
		GatewayTxnID:    model.GatewayTxnID,
		GatewayResponse: model.GatewayResponse,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
		CompletedAt:     model.CompletedAt,
	}
}

func txnToModel(t *txnDomain.Transaction) *TransactionModel {
	return &TransactionModel{
		ID:              t.ID,
		PaymentID:       t.PaymentID,
		UserID:          t.UserID,
		CourseID:        t.CourseID,
		Amount:          t.Amount,
		Currency:        t.Currency,
		Status:          t.Status,
		PaymentMethod:   t.PaymentMethod,
		Gateway:         t.Gateway,
		GatewayTxnID:    t.GatewayTxnID,
		GatewayResponse: t.GatewayResponse,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		CompletedAt:     t.CompletedAt,
	}
}
