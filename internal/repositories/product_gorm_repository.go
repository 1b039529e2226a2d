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

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{db: db}
}

func (r *GORMProductRepository) GetAll(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	q := database.Conn(ctx, r.db).Preload("Variants").Order("created_at DESC")
	if filter.CategoryID != "" {
		q = q.Where("category_id = ?", filter.CategoryID)
	}
	if filter.SellerID != "" {
		q = q.Where("seller_id = ?", filter.SellerID)
	}
	var products []models.Product
	if err := q.Find(&products).Error; err != nil {
		return nil, apperror.FromDB(err, "products")
	}
	return products, nil
}

func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := database.Conn(ctx, r.db).Preload("Variants").First(&product, "id = ?", id).Error; err != nil {
		return nil, apperror.FromDB(err, fmt.Sprintf("product %s", id))
	}
	return &product, nil
}

func (r *GORMProductRepository) GetForUpdate(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := database.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, apperror.FromDB(err, fmt.Sprintf("product %s", id))
	}
	return &product, nil
}

func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if err := database.Conn(ctx, r.db).Create(product).Error; err != nil {
		return apperror.FromDB(err, "product")
	}
	return nil
}

// Update writes the editable catalog fields. Stock counters are included so a
// seller can restock, but variants are managed separately.
func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product) error {
	res := database.Conn(ctx, r.db).Model(&models.Product{}).
		Where("id = ?", product.ID).
		Select("category_id", "name", "description", "price", "stock", "updated_at").
		Updates(product)
	if res.Error != nil {
		return apperror.FromDB(res.Error, fmt.Sprintf("product %s", product.ID))
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("product %s not found", product.ID)
	}
	return nil
}

func (r *GORMProductRepository) Delete(ctx context.Context, id string) error {
	res := database.Conn(ctx, r.db).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		return apperror.FromDB(res.Error, fmt.Sprintf("product %s", id))
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("product %s not found", id)
	}
	return nil
}

// DecrementStock only succeeds while enough stock remains, so the counter can
// never go negative even without an explicit lock.
func (r *GORMProductRepository) DecrementStock(ctx context.Context, id string, quantity int) error {
	return r.adjustStock(ctx, &models.Product{}, id, -quantity)
}

func (r *GORMProductRepository) IncrementStock(ctx context.Context, id string, quantity int) error {
	return r.adjustStock(ctx, &models.Product{}, id, quantity)
}

func (r *GORMProductRepository) GetVariant(ctx context.Context, id string) (*models.Variant, error) {
	var variant models.Variant
	if err := database.Conn(ctx, r.db).First(&variant, "id = ?", id).Error; err != nil {
		return nil, apperror.FromDB(err, fmt.Sprintf("variant %s", id))
	}
	return &variant, nil
}

func (r *GORMProductRepository) GetVariantForUpdate(ctx context.Context, id string) (*models.Variant, error) {
	var variant models.Variant
	err := database.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&variant, "id = ?", id).Error
	if err != nil {
		return nil, apperror.FromDB(err, fmt.Sprintf("variant %s", id))
	}
	return &variant, nil
}

func (r *GORMProductRepository) CreateVariant(ctx context.Context, variant *models.Variant) error {
	if err := database.Conn(ctx, r.db).Create(variant).Error; err != nil {
		return apperror.FromDB(err, "variant")
	}
	return nil
}

func (r *GORMProductRepository) UpdateVariant(ctx context.Context, variant *models.Variant) error {
	res := database.Conn(ctx, r.db).Model(&models.Variant{}).
		Where("id = ?", variant.ID).
		Select("name", "sku", "price", "stock", "updated_at").
		Updates(variant)
	if res.Error != nil {
		return apperror.FromDB(res.Error, fmt.Sprintf("variant %s", variant.ID))
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("variant %s not found", variant.ID)
	}
	return nil
}

func (r *GORMProductRepository) DeleteVariant(ctx context.Context, id string) error {
	res := database.Conn(ctx, r.db).Delete(&models.Variant{}, "id = ?", id)
	if res.Error != nil {
		return apperror.FromDB(res.Error, fmt.Sprintf("variant %s", id))
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("variant %s not found", id)
	}
	return nil
}

func (r *GORMProductRepository) DecrementVariantStock(ctx context.Context, id string, quantity int) error {
	return r.adjustStock(ctx, &models.Variant{}, id, -quantity)
}

func (r *GORMProductRepository) IncrementVariantStock(ctx context.Context, id string, quantity int) error {
	return r.adjustStock(ctx, &models.Variant{}, id, quantity)
}

func (r *GORMProductRepository) adjustStock(ctx context.Context, model any, id string, delta int) error {
	q := database.Conn(ctx, r.db).Model(model).Where("id = ?", id)
	if delta < 0 {
		q = q.Where("stock >= ?", -delta)
	} else {
		// restocking a cancelled order must reach products delisted since
		q = q.Unscoped()
	}
	res := q.UpdateColumn("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return apperror.FromDB(res.Error, fmt.Sprintf("stock of %s", id))
	}
	if res.RowsAffected == 0 {
		if delta < 0 {
			return ErrInsufficientStock
		}
		return apperror.NotFound("stock record %s not found", id)
	}
	return nil
}

// GORMCategoryRepository is a GORM implementation of CategoryRepository.
type GORMCategoryRepository struct {
	db *gorm.DB
}

func NewGORMCategoryRepository(db *gorm.DB) *GORMCategoryRepository {
	return &GORMCategoryRepository{db: db}
}

func (r *GORMCategoryRepository) GetAll(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := database.Conn(ctx, r.db).Order("name").Find(&categories).Error; err != nil {
		return nil, apperror.FromDB(err, "categories")
	}
	return categories, nil
}

func (r *GORMCategoryRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	if err := database.Conn(ctx, r.db).First(&category, "id = ?", id).Error; err != nil {
		return nil, apperror.FromDB(err, fmt.Sprintf("category %s", id))
	}
	return &category, nil
}

func (r *GORMCategoryRepository) Create(ctx context.Context, category *models.Category) error {
	if err := database.Conn(ctx, r.db).Create(category).Error; err != nil {
		return apperror.FromDB(err, fmt.Sprintf("category %s", category.Slug))
	}
	return nil
}
