package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/middleware"
	"storefront/internal/services"
)

// PaymentHandler serves the hosted-payment flow: opening a session, polling its
// status, vendor webhooks and the browser return.
type PaymentHandler struct {
	payments   *services.PaymentService
	reconciler *services.ReconcileService
	validate   *validator.Validate
	logger     *zap.Logger
}

func NewPaymentHandler(payments *services.PaymentService, reconciler *services.ReconcileService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments:   payments,
		reconciler: reconciler,
		validate:   validator.New(),
		logger:     logger.Named("payments"),
	}
}

// RegisterRoutes registers the vendor-facing routes, which carry no JWT.
func (h *PaymentHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/payments/:provider/webhook", h.HandleWebhook)
	router.Get("/payments/:provider/return", h.HandleReturn)
}

// RegisterBuyerRoutes registers the routes used by an authenticated buyer.
func (h *PaymentHandler) RegisterBuyerRoutes(router fiber.Router) {
	router.Post("/payments/:provider/intent", h.HandleCreateIntent)
	router.Get("/payments/:provider/status", h.HandleStatus)
}

type IntentRequest struct {
	OrderID string `json:"order_id" validate:"required"`
}

func (h *PaymentHandler) HandleCreateIntent(c *fiber.Ctx) error {
	var req IntentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}
	if err := h.validate.Struct(req); err != nil {
		return apperror.FromValidator(err)
	}

	intent, err := h.payments.CreateIntent(c.UserContext(), middleware.UserID(c), c.Params("provider"), req.OrderID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(intent)
}

func (h *PaymentHandler) HandleStatus(c *fiber.Ctx) error {
	view, err := h.payments.Status(c.UserContext(), middleware.UserID(c), c.Params("provider"), c.Query("ref"))
	if err != nil {
		return err
	}
	return c.JSON(view)
}

// HandleWebhook answers 200 for every verified notification, including duplicates
// and rejected transitions, so the vendor stops retrying. Unverifiable or
// unknown notifications get an error status.
func (h *PaymentHandler) HandleWebhook(c *fiber.Ctx) error {
	header := make(http.Header)
	c.Request().Header.VisitAll(func(k, v []byte) {
		header.Add(string(k), string(v))
	})
	// fasthttp reuses the body buffer after the handler returns
	body := append([]byte(nil), c.Body()...)

	provider := c.Params("provider")
	res, err := h.reconciler.HandleNotification(c.UserContext(), provider, header, body)
	if err != nil {
		return err
	}
	h.logger.Info("webhook processed",
		zap.String("provider", provider),
		zap.String("order_id", res.OrderID),
		zap.String("outcome", string(res.Outcome)))
	return c.JSON(res)
}

// HandleReturn sends the buyer's browser to the receipt page. The vendor's query
// parameters are never trusted to change state.
func (h *PaymentHandler) HandleReturn(c *fiber.Ctx) error {
	ref := c.Query("ref")
	if ref == "" {
		return apperror.Validation("ref is required")
	}
	target, err := h.payments.ReturnURL(c.Params("provider"), ref)
	if err != nil {
		return err
	}
	return c.Redirect(target, fiber.StatusSeeOther)
}
