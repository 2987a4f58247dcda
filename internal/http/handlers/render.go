package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"tillpoint/internal/domain"
	applog "tillpoint/internal/log"
)

// fail maps pipeline errors onto API responses. Validation failures are the
// cashier's problem (400); losing a sale is everyone's problem (503, loud).
func fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrZeroQuantityLine),
		errors.Is(err, domain.ErrInsufficientPayment):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrLineNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrDataLoss):
		applog.Error(c, "sale.data_loss", err, nil)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":    "SALE NOT SAVED: no local storage is available",
			"dataLoss": true,
		})
	default:
		applog.Error(c, "server.error", err, nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
