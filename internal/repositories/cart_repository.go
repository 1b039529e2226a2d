package repositories

import (
	"context"

	"storefront/internal/models"
)

// CartRepository defines the interface for cart line data access.
type CartRepository interface {
	// ListByUser returns the user's lines with Product and Variant loaded.
	ListByUser(ctx context.Context, userID string) ([]models.CartItem, error)
	GetByID(ctx context.Context, id string) (*models.CartItem, error)
	// FindLine returns nil, nil when the user has no line for the pair.
	FindLine(ctx context.Context, userID, productID string, variantID *string) (*models.CartItem, error)
	Create(ctx context.Context, item *models.CartItem) error
	UpdateQuantity(ctx context.Context, id string, quantity int) error
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
}
