package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"storefront/internal/apperror"
	"storefront/internal/database"
	"storefront/internal/models"
)

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db *gorm.DB
}

func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{db: db}
}

func (r *GORMCartRepository) ListByUser(ctx context.Context, userID string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := database.Conn(ctx, r.db).
		Preload("Product").
		Preload("Variant").
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&items).Error
	if err != nil {
		return nil, apperror.FromDB(err, "cart")
	}
	return items, nil
}

func (r *GORMCartRepository) GetByID(ctx context.Context, id string) (*models.CartItem, error) {
	var item models.CartItem
	if err := database.Conn(ctx, r.db).First(&item, "id = ?", id).Error; err != nil {
		return nil, apperror.FromDB(err, fmt.Sprintf("cart item %s", id))
	}
	return &item, nil
}

func (r *GORMCartRepository) FindLine(ctx context.Context, userID, productID string, variantID *string) (*models.CartItem, error) {
	q := database.Conn(ctx, r.db).Where("user_id = ? AND product_id = ?", userID, productID)
	if variantID == nil {
		q = q.Where("variant_id IS NULL")
	} else {
		q = q.Where("variant_id = ?", *variantID)
	}
	var item models.CartItem
	if err := q.First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperror.FromDB(err, "cart item")
	}
	return &item, nil
}

func (r *GORMCartRepository) Create(ctx context.Context, item *models.CartItem) error {
	if err := database.Conn(ctx, r.db).Omit("Product", "Variant").Create(item).Error; err != nil {
		return apperror.FromDB(err, "cart item")
	}
	return nil
}

func (r *GORMCartRepository) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	res := database.Conn(ctx, r.db).Model(&models.CartItem{}).Where("id = ?", id).Update("quantity", quantity)
	if res.Error != nil {
		return apperror.FromDB(res.Error, fmt.Sprintf("cart item %s", id))
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("cart item %s not found", id)
	}
	return nil
}

func (r *GORMCartRepository) Delete(ctx context.Context, id string) error {
	res := database.Conn(ctx, r.db).Delete(&models.CartItem{}, "id = ?", id)
	if res.Error != nil {
		return apperror.FromDB(res.Error, fmt.Sprintf("cart item %s", id))
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("cart item %s not found", id)
	}
	return nil
}

// DeleteByUser removes every line of the user in one statement.
func (r *GORMCartRepository) DeleteByUser(ctx context.Context, userID string) error {
	if err := database.Conn(ctx, r.db).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
		return apperror.FromDB(err, "cart")
	}
	return nil
}
