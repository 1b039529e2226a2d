package services

import (
	"context"

	"storefront/internal/apperror"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"go.uber.org/zap"
)

// ProductService handles the catalog: products, their variants and categories.
type ProductService struct {
	repo       repositories.ProductRepository
	categories repositories.CategoryRepository
	logger     *zap.Logger
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, categories repositories.CategoryRepository, logger *zap.Logger) *ProductService {
	return &ProductService{
		repo:       repo,
		categories: categories,
		logger:     logger,
	}
}

// GetAllProducts lists products matching filter.
func (s *ProductService) GetAllProducts(ctx context.Context, filter repositories.ProductFilter) ([]models.Product, error) {
	return s.repo.GetAll(ctx, filter)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateProduct lists a new product owned by the acting seller.
func (s *ProductService) CreateProduct(ctx context.Context, actor Actor, product *models.Product) error {
	if !actor.CanSell() {
		return apperror.Authorization("only sellers can list products")
	}
	if err := s.checkProduct(ctx, product); err != nil {
		return err
	}
	product.SellerID = actor.UserID
	if err := s.repo.Create(ctx, product); err != nil {
		return err
	}
	s.logger.Info("product created", zap.String("product_id", product.ID), zap.String("seller_id", actor.UserID))
	return nil
}

// UpdateProduct updates an existing product.
func (s *ProductService) UpdateProduct(ctx context.Context, actor Actor, product *models.Product) error {
	existing, err := s.owned(ctx, actor, product.ID)
	if err != nil {
		return err
	}
	if err := s.checkProduct(ctx, product); err != nil {
		return err
	}
	product.SellerID = existing.SellerID
	return s.repo.Update(ctx, product)
}

// DeleteProduct delists a product. Orders keep their frozen copies.
func (s *ProductService) DeleteProduct(ctx context.Context, actor Actor, id string) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *ProductService) AddVariant(ctx context.Context, actor Actor, productID string, variant *models.Variant) error {
	if _, err := s.owned(ctx, actor, productID); err != nil {
		return err
	}
	if err := checkVariant(variant); err != nil {
		return err
	}
	variant.ProductID = productID
	return s.repo.CreateVariant(ctx, variant)
}

func (s *ProductService) UpdateVariant(ctx context.Context, actor Actor, variant *models.Variant) error {
	existing, err := s.repo.GetVariant(ctx, variant.ID)
	if err != nil {
		return err
	}
	if _, err := s.owned(ctx, actor, existing.ProductID); err != nil {
		return err
	}
	if err := checkVariant(variant); err != nil {
		return err
	}
	variant.ProductID = existing.ProductID
	return s.repo.UpdateVariant(ctx, variant)
}

func (s *ProductService) DeleteVariant(ctx context.Context, actor Actor, id string) error {
	existing, err := s.repo.GetVariant(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.owned(ctx, actor, existing.ProductID); err != nil {
		return err
	}
	return s.repo.DeleteVariant(ctx, id)
}

func (s *ProductService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.categories.GetAll(ctx)
}

// CreateCategory is reserved to admins.
func (s *ProductService) CreateCategory(ctx context.Context, actor Actor, category *models.Category) error {
	if !actor.IsAdmin() {
		return apperror.Authorization("only admins can create categories")
	}
	return s.categories.Create(ctx, category)
}

// owned loads the product and checks the actor may manage it.
func (s *ProductService) owned(ctx context.Context, actor Actor, productID string) (*models.Product, error) {
	if !actor.CanSell() {
		return nil, apperror.Authorization("only sellers can manage products")
	}
	product, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.SellerID != actor.UserID && !actor.IsAdmin() {
		return nil, apperror.Authorization("product %s belongs to another seller", productID)
	}
	return product, nil
}

func (s *ProductService) checkProduct(ctx context.Context, product *models.Product) error {
	if !product.Price.IsPositive() {
		return apperror.Validation("price must be greater than zero")
	}
	if product.Stock < 0 {
		return apperror.Validation("stock cannot be negative")
	}
	if product.CategoryID != nil && *product.CategoryID != "" {
		if _, err := s.categories.GetByID(ctx, *product.CategoryID); err != nil {
			if apperror.Is(err, apperror.KindNotFound) {
				return apperror.Validation("category %s does not exist", *product.CategoryID)
			}
			return err
		}
	} else {
		product.CategoryID = nil
	}
	return nil
}

func checkVariant(v *models.Variant) error {
	if v.Stock < 0 {
		return apperror.Validation("stock cannot be negative")
	}
	if v.Price != nil && !v.Price.IsPositive() {
		return apperror.Validation("price must be greater than zero")
	}
	return nil
}
