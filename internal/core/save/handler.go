package save

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"synapse/internal/core/item"
	"synapse/internal/server/httpapi"
)

// ItemStore is the full item surface the HTTP handlers expose.
type ItemStore interface {
	Get(ctx context.Context, id string) (*item.Item, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, typeFilter string) ([]item.Item, error)
	Stats(ctx context.Context) (item.Stats, error)
}

type Handler struct {
	save  *Service
	items ItemStore
	blobs BlobStore
}

func NewHandler(save *Service, items ItemStore, blobs BlobStore) *Handler {
	return &Handler{save: save, items: items, blobs: blobs}
}

// HandleSave captures content and, unless async is requested, waits for
// the enrichment jobs before responding.
func (h *Handler) HandleSave(c *fiber.Ctx) error {
	var req httpapi.SaveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(httpapi.Error("invalid body"))
	}

	out, err := h.save.Save(c.Context(), req.Content, req.URL, req.ImageData, req.Async)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(httpapi.Error(err.Error()))
	}

	status := fiber.StatusOK
	if req.Async {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(fiber.Map{
		"success":       true,
		"item":          out.Item,
		"classifyJobId": out.ClassifyJobID,
		"imageJobId":    out.ImageJobID,
		"completed":     out.Completed,
	})
}

// HandleListItems returns stored items, optionally filtered by type.
func (h *Handler) HandleListItems(c *fiber.Ctx) error {
	items, err := h.items.List(c.Context(), c.Query("type"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(httpapi.Error("failed to list items"))
	}
	if items == nil {
		items = []item.Item{}
	}
	return c.JSON(fiber.Map{"success": true, "items": items, "count": len(items)})
}

// HandleGetItem returns one item by id.
func (h *Handler) HandleGetItem(c *fiber.Ctx) error {
	it, err := h.items.Get(c.Context(), c.Params("id"))
	if errors.Is(err, item.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(httpapi.Error("item not found"))
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(httpapi.Error("failed to load item"))
	}
	return c.JSON(fiber.Map{"success": true, "item": it})
}

// HandleItemStats returns aggregate collection counts.
func (h *Handler) HandleItemStats(c *fiber.Ctx) error {
	stats, err := h.items.Stats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(httpapi.Error("failed to compute stats"))
	}
	return c.JSON(fiber.Map{"success": true, "stats": stats})
}

// HandleDeleteItem removes an item and its uploaded blobs.
func (h *Handler) HandleDeleteItem(c *fiber.Ctx) error {
	id := c.Params("id")
	it, err := h.items.Get(c.Context(), id)
	if errors.Is(err, item.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(httpapi.Error("item not found"))
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(httpapi.Error("failed to load item"))
	}

	if err := h.items.Delete(c.Context(), id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(httpapi.Error("failed to delete item"))
	}
	// Blob removal is best effort; the item row is already gone.
	if h.blobs != nil {
		if it.Image != "" {
			_ = h.blobs.Delete(it.Image)
		}
		if it.Voice != nil && it.Voice.AudioURL != "" {
			_ = h.blobs.Delete(it.Voice.AudioURL)
		}
	}
	return c.JSON(fiber.Map{"success": true, "deleted": id})
}
