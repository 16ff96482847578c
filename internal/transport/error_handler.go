package transport

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kursadbilgin/aggregation-engine/internal/observability"
)

// ErrorHandler renders every error as {"error": ...} with the mapped status
// code and logs it with the request id when one is attached.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		}
		if requestID, ok := observability.RequestIDFromContext(c.Context()); ok {
			fields = append(fields, zap.String("requestId", requestID))
		}

		logger.Error("request error", fields...)

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}
