package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "tillpoint/internal/log"
	"tillpoint/internal/sales"
	"tillpoint/internal/validate"
)

type SaleHandler struct {
	Sales *sales.Service
}

// Submit commits the working sale: direct delivery when online, captured
// into the offline queue otherwise. Either way the cashier gets a terminal
// answer; only validation failures and total data loss reach them as errors.
func (h *SaleHandler) Submit(c *fiber.Ctx) error {
	res, err := h.Sales.Submit(c.Context())
	if err != nil {
		return fail(c, err)
	}
	applog.Info(c, "sale.submitted", map[string]any{"status": res.Status, "key": res.IdempotencyKey})
	if res.Status == "queued" {
		return c.Status(fiber.StatusAccepted).JSON(res)
	}
	return c.JSON(res)
}

func (h *SaleHandler) Recent(c *fiber.Ctx) error {
	confirmed, err := h.Sales.Recent(20)
	if err != nil {
		return fail(c, err)
	}
	type item struct {
		SaleNumber     string `json:"saleNumber"`
		IdempotencyKey string `json:"idempotencyKey"`
		CompletedAt    string `json:"completedAt"`
	}
	out := make([]item, 0, len(confirmed))
	for _, s := range confirmed {
		out = append(out, item{
			SaleNumber:     s.SaleNumber,
			IdempotencyKey: s.IdempotencyKey,
			CompletedAt:    s.CompletedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return c.JSON(fiber.Map{"sales": out})
}

// Receipt re-renders the receipt for a confirmed sale as plain text.
func (h *SaleHandler) Receipt(c *fiber.Ctx) error {
	key := c.Params("key")
	if _, ok := validate.ID(key); !ok {
		return c.Status(400).JSON(fiber.Map{"error": "invalid key"})
	}
	text, err := h.Sales.ReceiptByKey(key)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no receipt for that sale"})
	}
	c.Set("Content-Type", "text/plain; charset=utf-8")
	return c.SendString(text)
}
