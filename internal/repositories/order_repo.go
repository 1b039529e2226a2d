package repositories

import (
	"context"

	"storefront/internal/models"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	// Create inserts the order together with its items, shipping and payment.
	Create(ctx context.Context, order *models.Order) error
	// GetByID loads the order with items, shipping and payment.
	GetByID(ctx context.Context, id string) (*models.Order, error)
	// GetForUpdate locks the order row and loads its items and payment.
	GetForUpdate(ctx context.Context, id string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error
}
