package services

import (
	"context"
	"errors"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// ShippingInput is an inline shipping address given at checkout.
type ShippingInput struct {
	RecipientName string `json:"recipient_name" validate:"required,max=150"`
	Phone         string `json:"phone" validate:"required,max=32"`
	Line1         string `json:"line1" validate:"required,max=255"`
	Line2         string `json:"line2" validate:"omitempty,max=255"`
	City          string `json:"city" validate:"required,max=100"`
	PostalCode    string `json:"postal_code" validate:"required,max=20"`
	Country       string `json:"country" validate:"required,len=2"`
}

// PlaceOrderInput selects the shipping destination, either a saved address or an
// inline one, and the payment provider.
type PlaceOrderInput struct {
	ShippingAddressID string         `json:"shipping_address_id"`
	Shipping          *ShippingInput `json:"shipping"`
	VoucherCode       string         `json:"voucher_code" validate:"omitempty,max=64"`
	PaymentMethod     string         `json:"payment_method" validate:"required"`
}

// OrderServiceDeps groups the collaborators of OrderService.
type OrderServiceDeps struct {
	Tx        database.TxManager
	Orders    repositories.OrderRepository
	Payments  repositories.PaymentRepository
	Products  repositories.ProductRepository
	Carts     repositories.CartRepository
	Addresses repositories.AddressRepository
	Publisher events.Publisher
	Logger    *zap.Logger
	Currency  string
	Producer  string
	// Providers lists the accepted payment methods. Empty accepts any.
	Providers []string
}

// OrderService turns carts into orders and manages their lifecycle.
type OrderService struct {
	tx        database.TxManager
	orders    repositories.OrderRepository
	payments  repositories.PaymentRepository
	products  repositories.ProductRepository
	carts     repositories.CartRepository
	addresses repositories.AddressRepository
	validate  *validator.Validate
	events    emitter
	logger    *zap.Logger
	currency  string
	providers map[string]bool
}

func NewOrderService(deps OrderServiceDeps) *OrderService {
	providers := make(map[string]bool, len(deps.Providers))
	for _, p := range deps.Providers {
		providers[p] = true
	}
	return &OrderService{
		tx:        deps.Tx,
		orders:    deps.Orders,
		payments:  deps.Payments,
		products:  deps.Products,
		carts:     deps.Carts,
		addresses: deps.Addresses,
		validate:  validator.New(),
		events:    newEmitter(deps.Publisher, deps.Producer, deps.Logger),
		logger:    deps.Logger,
		currency:  deps.Currency,
		providers: providers,
	}
}

// PlaceOrder converts the user's cart into a PENDING order with its items,
// shipping and an INITIATED payment. Stock is re-checked under row locks and
// decremented in the same transaction; any failure leaves nothing behind.
func (s *OrderService) PlaceOrder(ctx context.Context, userID string, input PlaceOrderInput) (*models.Order, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, apperror.FromValidator(err)
	}
	if len(s.providers) > 0 && !s.providers[input.PaymentMethod] {
		return nil, apperror.Validation("unsupported payment method %q", input.PaymentMethod)
	}

	var order *models.Order
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		items, err := s.carts.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return apperror.Validation("Cart is empty")
		}

		shipping, err := s.resolveShipping(ctx, userID, input)
		if err != nil {
			return err
		}

		// a fixed lock order keeps concurrent checkouts of overlapping carts from deadlocking
		sort.Slice(items, func(i, j int) bool {
			if items[i].ProductID != items[j].ProductID {
				return items[i].ProductID < items[j].ProductID
			}
			return variantKey(items[i].VariantID) < variantKey(items[j].VariantID)
		})

		order = &models.Order{
			UserID:        userID,
			Currency:      s.currency,
			Status:        models.OrderPending,
			VoucherCode:   input.VoucherCode,
			PaymentMethod: input.PaymentMethod,
			Shipping:      shipping,
		}
		total := decimal.Zero
		for _, item := range items {
			line, err := s.reserve(ctx, item)
			if err != nil {
				return err
			}
			order.Items = append(order.Items, *line)
			total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		order.Total = total.Round(2)
		order.Payment = &models.Payment{
			Provider: input.PaymentMethod,
			Status:   models.PaymentInitiated,
			Amount:   order.Total,
			Currency: s.currency,
		}

		if err := s.orders.Create(ctx, order); err != nil {
			return err
		}
		return s.carts.DeleteByUser(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int("lines", len(order.Items)))

	placed := events.OrderPlacedPayload{
		OrderID:  order.ID,
		UserID:   userID,
		Total:    order.Total.StringFixed(2),
		Currency: order.Currency,
	}
	for _, it := range order.Items {
		placed.Items = append(placed.Items, events.ItemQty{ProductID: it.ProductID, VariantID: it.VariantID, Qty: it.Quantity})
	}
	s.events.emit(ctx, events.OrderPlaced, order.ID, placed)
	return order, nil
}

// reserve locks the stock row of a cart line, re-checks it and decrements it,
// returning the frozen order line.
func (s *OrderService) reserve(ctx context.Context, item models.CartItem) (*models.OrderItem, error) {
	product, err := s.products.GetForUpdate(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}

	name := product.Name
	available := product.Stock
	var variant *models.Variant
	if item.VariantID != nil {
		variant, err = s.products.GetVariantForUpdate(ctx, *item.VariantID)
		if err != nil {
			return nil, err
		}
		if variant.ProductID != product.ID {
			return nil, apperror.NotFound("variant %s not found for product %s", *item.VariantID, product.ID)
		}
		name = product.Name + " - " + variant.Name
		available = variant.Stock
	}

	if item.Quantity > available {
		return nil, stockError(item, available)
	}

	if variant != nil {
		err = s.products.DecrementVariantStock(ctx, variant.ID, item.Quantity)
	} else {
		err = s.products.DecrementStock(ctx, product.ID, item.Quantity)
	}
	if errors.Is(err, repositories.ErrInsufficientStock) {
		return nil, stockError(item, available)
	}
	if err != nil {
		return nil, err
	}

	return &models.OrderItem{
		ProductID: product.ID,
		VariantID: item.VariantID,
		Name:      name,
		Quantity:  item.Quantity,
		Price:     models.EffectivePrice(product, variant),
	}, nil
}

func (s *OrderService) resolveShipping(ctx context.Context, userID string, input PlaceOrderInput) (*models.Shipping, error) {
	if input.ShippingAddressID != "" {
		address, err := s.addresses.GetByID(ctx, input.ShippingAddressID)
		if err != nil {
			return nil, err
		}
		if address.UserID != userID {
			return nil, apperror.NotFound("address %s not found", input.ShippingAddressID)
		}
		return models.ShippingFromAddress(address), nil
	}
	if input.Shipping == nil {
		return nil, apperror.Validation("a shipping address is required")
	}
	if err := s.validate.Struct(input.Shipping); err != nil {
		return nil, apperror.FromValidator(err)
	}
	in := input.Shipping
	return &models.Shipping{
		RecipientName: in.RecipientName,
		Phone:         in.Phone,
		Line1:         in.Line1,
		Line2:         in.Line2,
		City:          in.City,
		PostalCode:    in.PostalCode,
		Country:       in.Country,
	}, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// GetOrder returns an order of userID. Orders of other users are reported as missing.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperror.NotFound("order %s not found", orderID)
	}
	return order, nil
}

// CancelOrder lets a buyer abandon a PENDING order. The payment is failed and the
// reserved stock is returned in the same transaction.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return apperror.NotFound("order %s not found", orderID)
		}
		if !order.Status.CanTransition(models.OrderCancelled) {
			return apperror.Conflict("order %s is %s and can no longer be cancelled", orderID, order.Status)
		}

		if order.Payment != nil && order.Payment.Status.CanTransition(models.PaymentFailed) {
			if err := s.payments.ApplyStatus(ctx, order.Payment.ID, models.PaymentFailed, "", order.Payment.RawPayload); err != nil {
				return err
			}
		}
		if err := s.orders.UpdateStatus(ctx, orderID, models.OrderCancelled); err != nil {
			return err
		}
		return restock(ctx, s.products, s.logger, order.Items)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order cancelled by buyer", zap.String("order_id", orderID), zap.String("user_id", userID))
	s.events.emit(ctx, events.OrderCancelled, orderID, events.OrderStatusPayload{
		OrderID: orderID,
		From:    string(models.OrderPending),
		To:      string(models.OrderCancelled),
		Reason:  "cancelled by buyer",
	})
	return s.orders.GetByID(ctx, orderID)
}

// fulfilmentStatuses are the only targets sellers may set by hand; the others
// follow payment events.
var fulfilmentStatuses = map[models.OrderStatus]bool{
	models.OrderProcessing: true,
	models.OrderShipped:    true,
	models.OrderDelivered:  true,
}

// UpdateOrderStatus moves an order along its fulfilment path. Sellers may only
// touch orders that contain at least one of their products.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, actor Actor, orderID string, status models.OrderStatus) (*models.Order, error) {
	if !actor.CanSell() {
		return nil, apperror.Authorization("only sellers can update order status")
	}
	if !status.Valid() {
		return nil, apperror.Validation("invalid order status %q", status)
	}
	if !fulfilmentStatuses[status] {
		return nil, apperror.Validation("status %s is set by payment events only", status)
	}

	var from models.OrderStatus
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() {
			ok, err := s.sellsInOrder(ctx, actor.UserID, order)
			if err != nil {
				return err
			}
			if !ok {
				return apperror.Authorization("order %s contains none of your products", orderID)
			}
		}
		if !order.Status.CanTransition(status) {
			return apperror.Conflict("order %s cannot move from %s to %s", orderID, order.Status, status)
		}
		from = order.Status
		return s.orders.UpdateStatus(ctx, orderID, status)
	})
	if err != nil {
		return nil, err
	}

	s.events.emit(ctx, events.OrderStatusChanged, orderID, events.OrderStatusPayload{
		OrderID: orderID,
		From:    string(from),
		To:      string(status),
	})
	return s.orders.GetByID(ctx, orderID)
}

func (s *OrderService) sellsInOrder(ctx context.Context, sellerID string, order *models.Order) (bool, error) {
	for _, item := range order.Items {
		product, err := s.products.GetByID(ctx, item.ProductID)
		if apperror.Is(err, apperror.KindNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		if product.SellerID == sellerID {
			return true, nil
		}
	}
	return false, nil
}

// restock returns the quantities of items to their products or variants. Lines
// whose variant has since been removed are skipped.
func restock(ctx context.Context, products repositories.ProductRepository, logger *zap.Logger, items []models.OrderItem) error {
	for _, item := range items {
		var err error
		if item.VariantID != nil {
			err = products.IncrementVariantStock(ctx, *item.VariantID, item.Quantity)
		} else {
			err = products.IncrementStock(ctx, item.ProductID, item.Quantity)
		}
		if apperror.Is(err, apperror.KindNotFound) {
			logger.Warn("stock record gone, skipping restock",
				zap.String("product_id", item.ProductID),
				zap.Int("quantity", item.Quantity))
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func stockError(item models.CartItem, available int) error {
	return apperror.Validation("Insufficient stock").WithDetails(map[string]any{
		"productId": item.ProductID,
		"variantId": item.VariantID,
		"requested": item.Quantity,
		"available": available,
	})
}

func variantKey(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}
