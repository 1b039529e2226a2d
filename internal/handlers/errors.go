package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"storefront/internal/apperror"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// ErrorHandler renders errors returned by handlers and middleware. Internal
// causes are logged and never echoed to the client.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(ErrorResponse{Error: fe.Message, Code: kindForStatus(fe.Code)})
		}

		appErr, ok := apperror.As(err)
		if !ok {
			appErr = apperror.Internal(err, "Internal server error")
		}
		status := appErr.Kind.HTTPStatus()
		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("code", string(appErr.Kind)),
				zap.Error(err))
		}

		resp := ErrorResponse{Error: appErr.Message, Code: string(appErr.Kind), Details: appErr.Details}
		if appErr.Kind == apperror.KindInternal {
			resp.Details = nil
		}
		return c.Status(status).JSON(resp)
	}
}

func kindForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return string(apperror.KindValidation)
	case fiber.StatusUnauthorized:
		return string(apperror.KindAuthentication)
	case fiber.StatusForbidden:
		return string(apperror.KindAuthorization)
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return string(apperror.KindNotFound)
	case fiber.StatusConflict:
		return string(apperror.KindConflict)
	default:
		return string(apperror.KindInternal)
	}
}

func invalidBody(err error) error {
	return apperror.Validation("Invalid request body").WithDetails(err.Error())
}
