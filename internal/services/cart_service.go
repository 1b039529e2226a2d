package services

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

const (
	MinCartQuantity = 1
	MaxCartQuantity = 100
)

// CartService manages the pending selections of buyers.
type CartService struct {
	cart     repositories.CartRepository
	products repositories.ProductRepository
	logger   *zap.Logger
}

func NewCartService(cart repositories.CartRepository, products repositories.ProductRepository, logger *zap.Logger) *CartService {
	return &CartService{cart: cart, products: products, logger: logger}
}

// AddItem puts quantity units of a product, or of one of its variants, in the cart.
// Adding a pair already in the cart sums the quantities.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, variantID *string, quantity int) (*models.CartItem, error) {
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}
	if variantID != nil && *variantID == "" {
		variantID = nil
	}
	if _, _, err := s.checkStock(ctx, productID, variantID, quantity); err != nil {
		return nil, err
	}

	existing, err := s.cart.FindLine(ctx, userID, productID, variantID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing.Quantity += quantity
		if err := s.cart.UpdateQuantity(ctx, existing.ID, existing.Quantity); err != nil {
			return nil, err
		}
		return existing, nil
	}

	item := &models.CartItem{
		UserID:    userID,
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
	}
	if err := s.cart.Create(ctx, item); err != nil {
		return nil, err
	}
	s.logger.Debug("cart line added", zap.String("user_id", userID), zap.String("product_id", productID), zap.Int("quantity", quantity))
	return item, nil
}

// UpdateQuantity sets the quantity of a line owned by userID.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (*models.CartItem, error) {
	item, err := s.ownedLine(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}
	if _, _, err := s.checkStock(ctx, item.ProductID, item.VariantID, quantity); err != nil {
		return nil, err
	}
	if err := s.cart.UpdateQuantity(ctx, item.ID, quantity); err != nil {
		return nil, err
	}
	item.Quantity = quantity
	return item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID string) error {
	if _, err := s.ownedLine(ctx, userID, itemID); err != nil {
		return err
	}
	return s.cart.Delete(ctx, itemID)
}

// Clear empties the cart in a single statement.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	return s.cart.DeleteByUser(ctx, userID)
}

// GetCart returns the priced cart of userID.
func (s *CartService) GetCart(ctx context.Context, userID string) (*models.CartSummary, error) {
	items, err := s.cart.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ComputeTotals(items), nil
}

// ComputeTotals prices each line at the effective price. Lines whose product has
// been delisted are left out; checkout rejects them.
func ComputeTotals(items []models.CartItem) *models.CartSummary {
	summary := &models.CartSummary{Lines: make([]models.CartLine, 0, len(items)), Total: decimal.Zero}
	for _, item := range items {
		if item.Product == nil {
			continue
		}
		unit := models.EffectivePrice(item.Product, item.Variant)
		line := unit.Mul(decimal.NewFromInt(int64(item.Quantity)))
		summary.Lines = append(summary.Lines, models.CartLine{Item: item, UnitPrice: unit, LineTotal: line})
		summary.Total = summary.Total.Add(line)
		summary.ItemCount += item.Quantity
	}
	summary.TotalFormatted = summary.Total.StringFixed(2)
	return summary
}

func (s *CartService) ownedLine(ctx context.Context, userID, itemID string) (*models.CartItem, error) {
	item, err := s.cart.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID {
		return nil, apperror.Authorization("cart item %s belongs to another user", itemID)
	}
	return item, nil
}

// checkStock resolves the product and optional variant and compares quantity
// against the stock that applies.
func (s *CartService) checkStock(ctx context.Context, productID string, variantID *string, quantity int) (*models.Product, *models.Variant, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, nil, err
	}

	available := product.Stock
	var variant *models.Variant
	if variantID != nil {
		variant, err = s.products.GetVariant(ctx, *variantID)
		if err != nil {
			return nil, nil, err
		}
		if variant.ProductID != product.ID {
			return nil, nil, apperror.NotFound("variant %s not found for product %s", *variantID, productID)
		}
		available = variant.Stock
	}

	if quantity > available {
		return nil, nil, apperror.Validation("Insufficient stock").WithDetails(map[string]any{
			"productId": productID,
			"variantId": variantID,
			"requested": quantity,
			"available": available,
		})
	}
	return product, variant, nil
}

func checkQuantity(quantity int) error {
	if quantity < MinCartQuantity || quantity > MaxCartQuantity {
		return apperror.Validation("quantity must be between %d and %d", MinCartQuantity, MaxCartQuantity)
	}
	return nil
}
