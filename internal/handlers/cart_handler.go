package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"storefront/internal/apperror"
	"storefront/internal/middleware"
	"storefront/internal/services"
)

// CartHandler exposes the buyer's cart.
type CartHandler struct {
	service  *services.CartService
	validate *validator.Validate
}

func NewCartHandler(service *services.CartService) *CartHandler {
	return &CartHandler{service: service, validate: validator.New()}
}

// RegisterRoutes registers the cart routes. router must already authenticate the caller.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cart := router.Group("/cart")
	cart.Get("/", h.HandleGetCart)
	cart.Post("/", h.HandleAddItem)
	cart.Delete("/", h.HandleClear)
	cart.Patch("/:id", h.HandleUpdateItem)
	cart.Delete("/:id", h.HandleRemoveItem)
}

type AddItemRequest struct {
	ProductID string  `json:"product_id" validate:"required"`
	VariantID *string `json:"variant_id"`
	Quantity  int     `json:"quantity" validate:"required"`
}

type UpdateItemRequest struct {
	Quantity int `json:"quantity" validate:"required"`
}

func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	summary, err := h.service.GetCart(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}
	if err := h.validate.Struct(req); err != nil {
		return apperror.FromValidator(err)
	}
	item, err := h.service.AddItem(c.UserContext(), middleware.UserID(c), req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

func (h *CartHandler) HandleUpdateItem(c *fiber.Ctx) error {
	var req UpdateItemRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}
	if err := h.validate.Struct(req); err != nil {
		return apperror.FromValidator(err)
	}
	item, err := h.service.UpdateQuantity(c.UserContext(), middleware.UserID(c), c.Params("id"), req.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(item)
}

func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	if err := h.service.RemoveItem(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CartHandler) HandleClear(c *fiber.Ctx) error {
	if err := h.service.Clear(c.UserContext(), middleware.UserID(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
