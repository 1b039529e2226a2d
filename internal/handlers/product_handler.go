package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"storefront/internal/apperror"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
)

// ProductHandler serves the public catalog and the seller's product management.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
}

func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{service: service, validate: validator.New()}
}

// RegisterRoutes registers the public catalog routes.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/products", h.HandleGetProducts)
	router.Get("/products/:id", h.HandleGetProduct)
	router.Get("/categories", h.HandleGetCategories)
}

// RegisterSellerRoutes registers catalog management. router must already
// authenticate the caller.
func (h *ProductHandler) RegisterSellerRoutes(router fiber.Router) {
	seller := router.Group("/seller", middleware.RequireRole(models.RoleSeller, models.RoleAdmin))
	seller.Post("/products", h.HandleCreateProduct)
	seller.Put("/products/:id", h.HandleUpdateProduct)
	seller.Delete("/products/:id", h.HandleDeleteProduct)
	seller.Post("/products/:id/variants", h.HandleAddVariant)
	seller.Put("/variants/:id", h.HandleUpdateVariant)
	seller.Delete("/variants/:id", h.HandleDeleteVariant)

	router.Post("/categories", middleware.RequireRole(models.RoleAdmin), h.HandleCreateCategory)
}

// ProductRequest is the editable part of a product.
type ProductRequest struct {
	CategoryID  *string         `json:"category_id"`
	Name        string          `json:"name" validate:"required,min=2,max=100"`
	Description string          `json:"description" validate:"max=500"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
}

// VariantRequest is the editable part of a variant.
type VariantRequest struct {
	Name  string           `json:"name" validate:"required,max=100"`
	SKU   string           `json:"sku" validate:"max=64"`
	Price *decimal.Decimal `json:"price"`
	Stock int              `json:"stock" validate:"gte=0"`
}

func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext(), repositories.ProductFilter{
		CategoryID: c.Query("category_id"),
		SellerID:   c.Query("seller_id"),
	})
	if err != nil {
		return err
	}
	return c.JSON(products)
}

func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	product, err := h.service.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(product)
}

func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	req, err := h.parseProduct(c)
	if err != nil {
		return err
	}
	product := &models.Product{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	}
	if err := h.service.CreateProduct(c.UserContext(), middleware.Actor(c), product); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	req, err := h.parseProduct(c)
	if err != nil {
		return err
	}
	product := &models.Product{
		Base:        models.Base{ID: c.Params("id")},
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	}
	if err := h.service.UpdateProduct(c.UserContext(), middleware.Actor(c), product); err != nil {
		return err
	}
	updated, err := h.service.GetProductByID(c.UserContext(), product.ID)
	if err != nil {
		return err
	}
	return c.JSON(updated)
}

func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	if err := h.service.DeleteProduct(c.UserContext(), middleware.Actor(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ProductHandler) HandleAddVariant(c *fiber.Ctx) error {
	req, err := h.parseVariant(c)
	if err != nil {
		return err
	}
	variant := &models.Variant{Name: req.Name, SKU: req.SKU, Price: req.Price, Stock: req.Stock}
	if err := h.service.AddVariant(c.UserContext(), middleware.Actor(c), c.Params("id"), variant); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(variant)
}

func (h *ProductHandler) HandleUpdateVariant(c *fiber.Ctx) error {
	req, err := h.parseVariant(c)
	if err != nil {
		return err
	}
	variant := &models.Variant{Base: models.Base{ID: c.Params("id")}, Name: req.Name, SKU: req.SKU, Price: req.Price, Stock: req.Stock}
	if err := h.service.UpdateVariant(c.UserContext(), middleware.Actor(c), variant); err != nil {
		return err
	}
	return c.JSON(variant)
}

func (h *ProductHandler) HandleDeleteVariant(c *fiber.Ctx) error {
	if err := h.service.DeleteVariant(c.UserContext(), middleware.Actor(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ProductHandler) HandleGetCategories(c *fiber.Ctx) error {
	categories, err := h.service.ListCategories(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(categories)
}

func (h *ProductHandler) HandleCreateCategory(c *fiber.Ctx) error {
	var category models.Category
	if err := c.BodyParser(&category); err != nil {
		return invalidBody(err)
	}
	if err := h.validate.Struct(category); err != nil {
		return apperror.FromValidator(err)
	}
	category.ID = ""
	if err := h.service.CreateCategory(c.UserContext(), middleware.Actor(c), &category); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

func (h *ProductHandler) parseProduct(c *fiber.Ctx) (*ProductRequest, error) {
	var req ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, invalidBody(err)
	}
	if err := h.validate.Struct(req); err != nil {
		return nil, apperror.FromValidator(err)
	}
	return &req, nil
}

func (h *ProductHandler) parseVariant(c *fiber.Ctx) (*VariantRequest, error) {
	var req VariantRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, invalidBody(err)
	}
	if err := h.validate.Struct(req); err != nil {
		return nil, apperror.FromValidator(err)
	}
	return &req, nil
}
