package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/piggy-devil/prompt-v1.0/internal/drive"
	"github.com/piggy-devil/prompt-v1.0/internal/googleauth"
	"github.com/piggy-devil/prompt-v1.0/internal/services"
	"go.uber.org/zap"
)

// respondError maps service and provider errors onto user-visible statuses.
// Token and provider failures instruct re-authentication; anything unexpected
// is logged server-side and surfaced as a bare 500.
func respondError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	var refreshErr *googleauth.TokenRefreshError
	var providerErr *drive.ProviderError

	switch {
	case errors.Is(err, services.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, googleauth.ErrAccountNotLinked),
		errors.Is(err, googleauth.ErrReauthenticationRequired):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Google Drive access expired. Please sign in again.",
		})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	case errors.As(err, &refreshErr), errors.As(err, &providerErr):
		logger.Error("storage provider request failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Storage provider request failed"})
	default:
		logger.Error("unexpected error", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}
