package middlewares

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"contentops-backend/apperr"
)

var errLog = logrus.StandardLogger()

// SetErrorLogger swaps the logger used for unexpected errors.
func SetErrorLogger(l *logrus.Logger) {
	if l != nil {
		errLog = l
	}
}

// ErrorHandler centralizes error responses. Every response body carries a
// stable category plus a human-readable message, and messages stay
// sanitized: underlying causes go to the log, never to the client.
func ErrorHandler(c *fiber.Ctx, err error) error {
	// 1) Application errors with a category
	if e, ok := apperr.As(err); ok {
		if e.Err != nil {
			errLog.WithFields(logrus.Fields{
				"category": e.Category,
				"path":     c.Path(),
			}).WithError(e.Err).Error("request failed")
		}
		return c.Status(apperr.HTTPStatus(e.Category)).JSON(fiber.Map{
			"category": e.Category,
			"message":  e.Message,
		})
	}

	// 2) Fiber errors (use their status code + message)
	if fe, ok := err.(*fiber.Error); ok {
		return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
	}

	// 3) Validation errors (422 + per-field info)
	if ve, ok := err.(validator.ValidationErrors); ok {
		out := make(map[string]string, len(ve))
		for _, fe := range ve {
			out[fe.Field()] = fe.Tag()
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"category": apperr.Validation,
			"message":  "validation failed",
			"errors":   out,
		})
	}

	// 4) Unknown errors (500)
	errLog.WithField("path", c.Path()).WithError(err).Error("internal error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "internal server error",
	})
}
