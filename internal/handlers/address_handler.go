package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"storefront/internal/apperror"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"
)

type AddressHandler struct {
	service  *services.AddressService
	validate *validator.Validate
}

func NewAddressHandler(service *services.AddressService) *AddressHandler {
	return &AddressHandler{service: service, validate: validator.New()}
}

func (h *AddressHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/addresses", h.HandleList)
	router.Post("/addresses", h.HandleCreate)
}

func (h *AddressHandler) HandleList(c *fiber.Ctx) error {
	addresses, err := h.service.List(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(addresses)
}

func (h *AddressHandler) HandleCreate(c *fiber.Ctx) error {
	var address models.Address
	if err := c.BodyParser(&address); err != nil {
		return invalidBody(err)
	}
	if err := h.validate.Struct(address); err != nil {
		return apperror.FromValidator(err)
	}
	if err := h.service.Create(c.UserContext(), middleware.UserID(c), &address); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(address)
}
