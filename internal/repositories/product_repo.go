package repositories

import (
	"context"

	"storefront/internal/models"
)

// ProductFilter narrows catalog listings. Empty fields are ignored.
type ProductFilter struct {
	CategoryID string
	SellerID   string
}

// ProductRepository defines the interface for product and variant data access.
type ProductRepository interface {
	GetAll(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	// GetForUpdate locks the product row until the enclosing transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
	DecrementStock(ctx context.Context, id string, quantity int) error
	IncrementStock(ctx context.Context, id string, quantity int) error

	GetVariant(ctx context.Context, id string) (*models.Variant, error)
	GetVariantForUpdate(ctx context.Context, id string) (*models.Variant, error)
	CreateVariant(ctx context.Context, variant *models.Variant) error
	UpdateVariant(ctx context.Context, variant *models.Variant) error
	DeleteVariant(ctx context.Context, id string) error
	DecrementVariantStock(ctx context.Context, id string, quantity int) error
	IncrementVariantStock(ctx context.Context, id string, quantity int) error
}

// CategoryRepository defines the interface for category data access.
type CategoryRepository interface {
	GetAll(ctx context.Context) ([]models.Category, error)
	GetByID(ctx context.Context, id string) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
}
