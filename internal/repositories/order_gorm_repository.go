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

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := database.Conn(ctx, r.db).Create(order).Error; err != nil {
		return apperror.FromDB(err, "order")
	}
	return nil
}

func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := database.Conn(ctx, r.db).
		Preload("Items").
		Preload("Shipping").
		Preload("Payment").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, apperror.FromDB(err, fmt.Sprintf("order %s", id))
	}
	return &order, nil
}

func (r *GORMOrderRepository) GetForUpdate(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := database.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items").
		Preload("Payment").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, apperror.FromDB(err, fmt.Sprintf("order %s", id))
	}
	return &order, nil
}

func (r *GORMOrderRepository) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := database.Conn(ctx, r.db).
		Preload("Items").
		Preload("Payment").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, apperror.FromDB(err, "orders")
	}
	return orders, nil
}

func (r *GORMOrderRepository) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error {
	res := database.Conn(ctx, r.db).Model(&models.Order{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return apperror.FromDB(res.Error, fmt.Sprintf("order %s", id))
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("order %s not found", id)
	}
	return nil
}
