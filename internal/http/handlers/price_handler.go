package handlers

import (
	"github.com/gofiber/fiber/v2"

	"tillpoint/internal/promo"
	"tillpoint/internal/validate"
)

type PriceHandler struct {
	Promos *promo.Cache
}

// Check resolves the promotion-effective price for a product. A cache miss
// queues a batched fetch and answers with full price; the UI polls.
func (h *PriceHandler) Check(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Query("productId"))
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "invalid productId"})
	}
	price, ok := validate.Money(c.Query("price"))
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "invalid price"})
	}
	effective, discounted, savings := h.Promos.EffectivePrice(id, price)
	return c.JSON(fiber.Map{
		"productId":      id,
		"originalPrice":  price,
		"effectivePrice": effective,
		"discounted":     discounted,
		"savings":        savings,
	})
}
