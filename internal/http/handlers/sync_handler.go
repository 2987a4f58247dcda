package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"tillpoint/internal/queue"
	"tillpoint/internal/syncer"
)

type SyncHandler struct {
	Queue  *queue.Service
	Driver *syncer.Driver
}

// SyncNow is the cashier-visible "sync now" button. It runs the exact same
// drain path as the automatic online-transition trigger.
func (h *SyncHandler) SyncNow(c *fiber.Ctx) error {
	res := h.Driver.SyncNow(c.Context())
	h.Queue.RefreshGauges()
	return c.JSON(res)
}

// Status backs the pending-sync badge: raw pending count plus the escalated
// count the UI uses to go from "syncing" to "needs attention".
func (h *SyncHandler) Status(c *fiber.Ctx) error {
	pending, err := h.Queue.Count()
	if err != nil {
		return fail(c, err)
	}
	escalated, err := h.Queue.Escalated()
	if err != nil {
		return fail(c, err)
	}
	last, at := h.Driver.LastDrain()
	out := fiber.Map{
		"online":    h.Driver.Online(),
		"pending":   pending,
		"escalated": escalated,
		"lastDrain": last,
	}
	if !at.IsZero() {
		out["lastDrainAt"] = at.UTC().Format(time.RFC3339)
	}
	return c.JSON(out)
}
