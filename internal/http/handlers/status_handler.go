package handlers

import (
	"github.com/gofiber/fiber/v2"

	"tillpoint/internal/queue"
	"tillpoint/internal/syncer"
)

type StatusHandler struct {
	Queue   *queue.Service
	Driver  *syncer.Driver
	StoreID string
}

// Page renders the register status view: connectivity, pending sales, and
// whether anything has escalated past the attempt threshold.
func (h *StatusHandler) Page(c *fiber.Ctx) error {
	pending, _ := h.Queue.Count()
	escalated, _ := h.Queue.Escalated()
	state := "OFFLINE"
	if h.Driver.Online() {
		state = "ONLINE"
	}
	return c.Render("status", fiber.Map{
		"StoreID":   h.StoreID,
		"State":     state,
		"Pending":   pending,
		"Escalated": escalated,
	})
}
