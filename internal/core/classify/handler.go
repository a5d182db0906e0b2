package classify

import (
	"github.com/gofiber/fiber/v2"

	"synapse/internal/server/httpapi"
)

type Handler struct {
	classify *Service
}

func NewHandler(classify *Service) *Handler {
	return &Handler{classify: classify}
}

// HandleClassify classifies content directly, without persisting an item.
func (h *Handler) HandleClassify(c *fiber.Ctx) error {
	var req httpapi.ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(httpapi.Error("invalid body"))
	}
	if req.Content == "" && req.URL == "" && req.ImageData == "" {
		return c.Status(fiber.StatusBadRequest).JSON(httpapi.Error("content, url, or image is required"))
	}

	result, err := h.classify.Classify(c.Context(), req.FullContent(), req.URL, req.ImageData)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(httpapi.Error("failed to classify content"))
	}
	return c.JSON(fiber.Map{"success": true, "classification": result})
}
