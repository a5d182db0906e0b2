package queue

import (
	"github.com/gofiber/fiber/v2"

	"synapse/internal/server/httpapi"
)

type Handler struct {
	queue *Queue
}

func NewHandler(q *Queue) *Handler {
	return &Handler{queue: q}
}

// HandleSubmit enqueues a job and returns its id without waiting.
func (h *Handler) HandleSubmit(c *fiber.Ctx) error {
	var req httpapi.SubmitJobRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(httpapi.Error("invalid body"))
	}

	id, err := h.queue.Submit(req.Type, req.Payload)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(httpapi.Error(err.Error()))
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true, "jobId": id})
}

// HandleGetStatus returns a snapshot of one job.
func (h *Handler) HandleGetStatus(c *fiber.Ctx) error {
	j, ok := h.queue.GetStatus(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(httpapi.Error("job not found"))
	}
	return c.JSON(fiber.Map{"success": true, "job": j})
}

// HandleStats returns the queue's aggregate counters.
func (h *Handler) HandleStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "stats": h.queue.Stats()})
}
