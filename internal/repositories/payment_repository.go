package repositories

import (
	"context"

	"storefront/internal/models"
)

// PaymentRepository defines the interface for payment and webhook audit data access.
type PaymentRepository interface {
	GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	GetByOrderIDForUpdate(ctx context.Context, orderID string) (*models.Payment, error)
	// FindByReference matches the merchant reference (order ID) or the vendor reference.
	FindByReference(ctx context.Context, reference string) (*models.Payment, error)
	SaveIntent(ctx context.Context, id, providerRef, paymentURL string) error
	ApplyStatus(ctx context.Context, id string, status models.PaymentStatus, providerTxnID, rawPayload string) error
	RecordWebhook(ctx context.Context, event *models.WebhookEvent) error
}
