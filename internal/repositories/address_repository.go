package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"storefront/internal/apperror"
	"storefront/internal/database"
	"storefront/internal/models"
)

// AddressRepository defines the interface for saved address data access.
type AddressRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.Address, error)
	GetByID(ctx context.Context, id string) (*models.Address, error)
	Create(ctx context.Context, address *models.Address) error
}

type GORMAddressRepository struct {
	db *gorm.DB
}

func NewGORMAddressRepository(db *gorm.DB) *GORMAddressRepository {
	return &GORMAddressRepository{db: db}
}

func (r *GORMAddressRepository) ListByUser(ctx context.Context, userID string) ([]models.Address, error) {
	var addresses []models.Address
	if err := database.Conn(ctx, r.db).Where("user_id = ?", userID).Order("created_at").Find(&addresses).Error; err != nil {
		return nil, apperror.FromDB(err, "addresses")
	}
	return addresses, nil
}

func (r *GORMAddressRepository) GetByID(ctx context.Context, id string) (*models.Address, error) {
	var address models.Address
	if err := database.Conn(ctx, r.db).First(&address, "id = ?", id).Error; err != nil {
		return nil, apperror.FromDB(err, fmt.Sprintf("address %s", id))
	}
	return &address, nil
}

func (r *GORMAddressRepository) Create(ctx context.Context, address *models.Address) error {
	if err := database.Conn(ctx, r.db).Create(address).Error; err != nil {
		return apperror.FromDB(err, "address")
	}
	return nil
}
