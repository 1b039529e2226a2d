package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/apperror"
	"storefront/internal/database"
	"storefront/internal/models"
)

// GORMPaymentRepository is a GORM implementation of PaymentRepository.
type GORMPaymentRepository struct {
	db *gorm.DB
}

func NewGORMPaymentRepository(db *gorm.DB) *GORMPaymentRepository {
	return &GORMPaymentRepository{db: db}
}

func (r *GORMPaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var payment models.Payment
	if err := database.Conn(ctx, r.db).First(&payment, "order_id = ?", orderID).Error; err != nil {
		return nil, apperror.FromDB(err, fmt.Sprintf("payment for order %s", orderID))
	}
	return &payment, nil
}

func (r *GORMPaymentRepository) GetByOrderIDForUpdate(ctx context.Context, orderID string) (*models.Payment, error) {
	var payment models.Payment
	err := database.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&payment, "order_id = ?", orderID).Error
	if err != nil {
		return nil, apperror.FromDB(err, fmt.Sprintf("payment for order %s", orderID))
	}
	return &payment, nil
}

func (r *GORMPaymentRepository) FindByReference(ctx context.Context, reference string) (*models.Payment, error) {
	var payment models.Payment
	err := database.Conn(ctx, r.db).
		Where("order_id = ? OR provider_ref = ?", reference, reference).
		First(&payment).Error
	if err != nil {
		return nil, apperror.FromDB(err, fmt.Sprintf("payment %s", reference))
	}
	return &payment, nil
}

func (r *GORMPaymentRepository) SaveIntent(ctx context.Context, id, providerRef, paymentURL string) error {
	res := database.Conn(ctx, r.db).Model(&models.Payment{}).Where("id = ?", id).Updates(map[string]any{
		"provider_ref": providerRef,
		"payment_url":  paymentURL,
	})
	if res.Error != nil {
		return apperror.FromDB(res.Error, fmt.Sprintf("payment %s", id))
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("payment %s not found", id)
	}
	return nil
}

func (r *GORMPaymentRepository) ApplyStatus(ctx context.Context, id string, status models.PaymentStatus, providerTxnID, rawPayload string) error {
	updates := map[string]any{
		"status":      status,
		"raw_payload": rawPayload,
	}
	if providerTxnID != "" {
		updates["provider_txn_id"] = providerTxnID
	}
	res := database.Conn(ctx, r.db).Model(&models.Payment{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return apperror.FromDB(res.Error, fmt.Sprintf("payment %s", id))
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("payment %s not found", id)
	}
	return nil
}

func (r *GORMPaymentRepository) RecordWebhook(ctx context.Context, event *models.WebhookEvent) error {
	if err := database.Conn(ctx, r.db).Create(event).Error; err != nil {
		return apperror.FromDB(err, "webhook event")
	}
	return nil
}
