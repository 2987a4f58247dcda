package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"tillpoint/internal/cart"
	"tillpoint/internal/domain"
	"tillpoint/internal/validate"
)

type CartHandler struct {
	Engine *cart.Engine
}

type cartView struct {
	Items   []domain.CartItem  `json:"items"`
	Summary domain.CartSummary `json:"summary"`
	Payment domain.PaymentData `json:"payment"`
}

func (h *CartHandler) view() cartView {
	return cartView{Items: h.Engine.Items(), Summary: h.Engine.Summary(), Payment: h.Engine.Payment()}
}

func (h *CartHandler) View(c *fiber.Ctx) error {
	return c.JSON(h.view())
}

type addItemBody struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Barcode   string `json:"barcode"`
	UnitPrice string `json:"unitPrice"`
}

func (h *CartHandler) Add(c *fiber.Ctx) error {
	var body addItemBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "bad request body"})
	}
	id, ok := validate.ID(body.ProductID)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "invalid productId"})
	}
	name, ok := validate.Name(body.Name)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "invalid name"})
	}
	barcode, ok := validate.Barcode(body.Barcode)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "invalid barcode"})
	}
	price, ok := validate.Money(body.UnitPrice)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "invalid unitPrice"})
	}
	h.Engine.AddItem(domain.Product{ID: id, Name: name, Barcode: barcode, Price: price})
	return c.JSON(h.view())
}

func (h *CartHandler) UpdateQuantity(c *fiber.Ctx) error {
	lineID, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "invalid line id"})
	}
	var body struct {
		Quantity string `json:"quantity"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "bad request body"})
	}
	qty, ok := validate.Qty(body.Quantity)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "invalid quantity"})
	}
	if _, err := h.Engine.UpdateQuantity(lineID, qty); err != nil {
		return fail(c, err)
	}
	return c.JSON(h.view())
}

func (h *CartHandler) Remove(c *fiber.Ctx) error {
	lineID, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "invalid line id"})
	}
	if _, err := h.Engine.RemoveItem(lineID); err != nil {
		return fail(c, err)
	}
	return c.JSON(h.view())
}

func (h *CartHandler) Clear(c *fiber.Ctx) error {
	h.Engine.Clear()
	return c.JSON(h.view())
}

func (h *CartHandler) SetPayment(c *fiber.Ctx) error {
	var body struct {
		Method         string `json:"method"`
		AmountReceived string `json:"amountReceived"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "bad request body"})
	}
	method, ok := validate.Method(body.Method)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payment method"})
	}
	amount := decimal.Zero
	if body.AmountReceived != "" {
		if amount, ok = validate.Money(body.AmountReceived); !ok {
			return c.Status(400).JSON(fiber.Map{"error": "invalid amountReceived"})
		}
	}
	h.Engine.SetPayment(domain.PaymentMethod(method), amount)
	return c.JSON(h.view())
}

func (h *CartHandler) SetTax(c *fiber.Ctx) error {
	var body struct {
		TaxRate     string `json:"taxRate"`
		TaxIncluded bool   `json:"taxIncluded"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "bad request body"})
	}
	rate, ok := validate.Rate(body.TaxRate)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "invalid taxRate"})
	}
	h.Engine.SetTax(rate, body.TaxIncluded)
	return c.JSON(h.view())
}

func (h *CartHandler) SetRedemption(c *fiber.Ctx) error {
	var body struct {
		Points        string `json:"points"`
		ValuePerPoint string `json:"valuePerPoint"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "bad request body"})
	}
	points, ok := validate.Points(body.Points)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "invalid points"})
	}
	value, ok := validate.Money(body.ValuePerPoint)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "invalid valuePerPoint"})
	}
	h.Engine.SetRedemption(points, value)
	return c.JSON(h.view())
}
