package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/keyframestudio/stage/internal/middleware"
	apperrors "github.com/keyframestudio/stage/internal/pkg/errors"
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// handleError renders err. AppErrors keep their status, code and message;
// anything else becomes an opaque 500.
func handleError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	appErr := apperrors.GetAppError(err)
	if appErr == nil {
		logger.Error("unhandled error",
			zap.String("path", c.Path()),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
		return errorResponse(c, fiber.StatusInternalServerError, apperrors.CodeInternal, "internal error", nil)
	}
	if appErr.StatusCode >= fiber.StatusInternalServerError {
		logger.Warn("request failed",
			zap.String("path", c.Path()),
			zap.String("code", appErr.Code),
			zap.Error(err),
		)
	}
	return errorResponse(c, appErr.StatusCode, appErr.Code, appErr.Message, appErr.Details)
}

func errorResponse(c *fiber.Ctx, status int, code, message string, details map[string]string) error {
	return c.Status(status).JSON(ErrorResponse{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: middleware.GetRequestID(c),
	})
}

// parseBody decodes the JSON request body into v.
func parseBody(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return apperrors.Validationf("invalid request body: %v", err)
	}
	return nil
}
