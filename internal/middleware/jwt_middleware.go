package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"storefront/internal/apperror"
	"storefront/internal/models"
	"storefront/internal/services"
)

const (
	localUserID   = "user_id"
	localUsername = "username"
	localRole     = "role"
)

// AuthRequired is a Fiber middleware to check for a valid JWT token.
func AuthRequired(authService *services.AuthService, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperror.Authentication("Authorization header is required")
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return apperror.Authentication("Authorization header format must be 'Bearer <token>'")
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			logger.Debug("jwt validation failed", zap.String("path", c.Path()), zap.Error(err))
			return err
		}

		userID, _ := claims["user_id"].(string)
		if userID == "" {
			return apperror.Authentication("invalid token")
		}
		username, _ := claims["username"].(string)
		role, _ := claims["role"].(string)

		c.Locals(localUserID, userID)
		c.Locals(localUsername, username)
		c.Locals(localRole, models.Role(role))
		return c.Next()
	}
}

// RequireRole lets the request through only when the authenticated user has one
// of roles. It must run after AuthRequired.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		current := Actor(c).Role
		for _, r := range roles {
			if current == r {
				return c.Next()
			}
		}
		return apperror.Authorization("role %q may not access this resource", current)
	}
}

// UserID returns the authenticated user's ID, empty on public routes.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}

// Actor returns the authenticated caller as the services see it.
func Actor(c *fiber.Ctx) services.Actor {
	role, _ := c.Locals(localRole).(models.Role)
	return services.Actor{UserID: UserID(c), Role: role}
}
