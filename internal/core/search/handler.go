package search

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"synapse/internal/core/item"
	"synapse/internal/server/httpapi"
)

// ItemLister supplies the corpus a search runs over.
type ItemLister interface {
	List(ctx context.Context, typeFilter string) ([]item.Item, error)
}

type Handler struct {
	search *Service
	items  ItemLister
}

func NewHandler(search *Service, items ItemLister) *Handler {
	return &Handler{search: search, items: items}
}

// HandleSearch runs a search over all stored items.
func (h *Handler) HandleSearch(c *fiber.Ctx) error {
	var req httpapi.SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(httpapi.Error("invalid body"))
	}
	if strings.TrimSpace(req.Query) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(httpapi.Error("query is required"))
	}

	items, err := h.items.List(c.Context(), "")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(httpapi.Error("failed to load items"))
	}

	useAI := true
	if req.UseAI != nil {
		useAI = *req.UseAI
	}
	result := h.search.Search(c.Context(), req.Query, items, useAI)
	return c.JSON(fiber.Map{
		"success":  true,
		"results":  result.Results,
		"parsed":   result.Parsed,
		"stats":    result.Stats,
		"fallback": result.Fallback,
	})
}
