package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"storefront/internal/apperror"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes. router must already authenticate the caller.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Post("/:id/cancel", h.HandleCancelOrder)
	orderRoutes.Patch("/:id/status", middleware.RequireRole(models.RoleSeller, models.RoleAdmin), h.HandleUpdateOrderStatus)
}

// HandleGetOrders lists the caller's orders, newest first.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrders(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order of the caller by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(order)
}

// HandleCreateOrder checks out the caller's cart.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var input services.PlaceOrderInput
	if err := c.BodyParser(&input); err != nil {
		return invalidBody(err)
	}

	order, err := h.service.PlaceOrder(c.UserContext(), middleware.UserID(c), input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	order, err := h.service.CancelOrder(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(order)
}

// HandleUpdateOrderStatus moves an order along its fulfilment path.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	var updateData struct {
		Status string `json:"status" validate:"required"`
	}
	if err := c.BodyParser(&updateData); err != nil {
		return invalidBody(err)
	}
	if err := h.validate.Struct(updateData); err != nil {
		return apperror.FromValidator(err)
	}

	order, err := h.service.UpdateOrderStatus(c.UserContext(), middleware.Actor(c), c.Params("id"), models.OrderStatus(updateData.Status))
	if err != nil {
		return err
	}
	return c.JSON(order)
}
