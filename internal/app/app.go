// Package app assembles the HTTP surface from the services.
package app

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/services"
)

// Services is everything the routes call into.
type Services struct {
	Auth      *services.AuthService
	Products  *services.ProductService
	Carts     *services.CartService
	Addresses *services.AddressService
	Orders    *services.OrderService
	Payments  *services.PaymentService
	Reconcile *services.ReconcileService
}

// HealthCheck reports the state of a dependency for /health.
type HealthCheck func() error

type Options struct {
	Logger *zap.Logger
	// AccessLog enables the fiber request logger.
	AccessLog bool
	Checks    map[string]HealthCheck
}

// New builds the fiber app with every route under /api/v1.
func New(svc Services, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "storefront",
		ErrorHandler:          handlers.ErrorHandler(opts.Logger),
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}

	app.Get("/health", health(opts.Checks))

	productHandler := handlers.NewProductHandler(svc.Products)
	paymentHandler := handlers.NewPaymentHandler(svc.Payments, svc.Reconcile, opts.Logger)

	apiV1 := app.Group("/api/v1")

	// Public routes
	handlers.NewAuthHandler(svc.Auth, opts.Logger).RegisterRoutes(apiV1)
	productHandler.RegisterRoutes(apiV1)
	paymentHandler.RegisterRoutes(apiV1)

	// Protected routes (require JWT authentication)
	protected := apiV1.Group("", middleware.AuthRequired(svc.Auth, opts.Logger))
	handlers.NewCartHandler(svc.Carts).RegisterRoutes(protected)
	handlers.NewAddressHandler(svc.Addresses).RegisterRoutes(protected)
	handlers.NewOrderHandler(svc.Orders).RegisterRoutes(protected)
	paymentHandler.RegisterBuyerRoutes(protected)
	productHandler.RegisterSellerRoutes(protected)

	return app
}

func health(checks map[string]HealthCheck) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := fiber.StatusOK
		deps := make(fiber.Map, len(checks))
		for name, check := range checks {
			if err := check(); err != nil {
				deps[name] = err.Error()
				status = fiber.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}
		state := "healthy"
		if status != fiber.StatusOK {
			state = "degraded"
		}
		return c.Status(status).JSON(fiber.Map{
			"status":       state,
			"time":         time.Now().Format(time.RFC3339),
			"dependencies": deps,
		})
	}
}
