package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/kyc-flow/kyc_flow/internal/apperr"
)

// ErrorHandler renders every error returned by a handler as {"error": msg}.
// Classified errors map through apperr.Status; *fiber.Error keeps its code;
// anything else is logged and reported as a 500 without its text.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		status := apperr.Status(err)
		if status >= fiber.StatusInternalServerError && logger != nil {
			requestID, _ := c.Locals(requestIDHeader).(string)
			logger.Error("request failed",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.String("request_id", requestID),
				slog.Any("error", err),
			)
		}
		return c.Status(status).JSON(fiber.Map{"error": apperr.Message(err)})
	}
}
