package server

import (
	"github.com/gofiber/fiber/v2"

	"synapse/internal/core/classify"
	"synapse/internal/core/item"
	"synapse/internal/core/queue"
	"synapse/internal/core/save"
	"synapse/internal/core/search"
	"synapse/internal/core/voice"
	"synapse/internal/health"
	"synapse/internal/platform/supabase"
)

type Dependencies struct {
	Queue    *queue.Queue
	Items    *item.Repository
	Classify *classify.Service
	Search   *search.Service
	Save     *save.Service
	Voice    *voice.Service
	Blobs    *supabase.Service

	HealthChecks map[string]health.Checker

	// DataDir backs the /files fallback for locally stored blobs.
	DataDir string
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.Handler {
	healthHandler := health.NewHandler(d.HealthChecks)
	app.Get("/v1/health", health.Limiter(), healthHandler.HandleHealth)

	if d.DataDir != "" {
		app.Static("/files", d.DataDir)
	}

	api := app.Group("/v1")

	saveHandler := save.NewHandler(d.Save, d.Items, d.Blobs)
	api.Post("/save", saveHandler.HandleSave)
	api.Get("/items", saveHandler.HandleListItems)
	api.Get("/items/stats", saveHandler.HandleItemStats)
	api.Get("/items/:id", saveHandler.HandleGetItem)
	api.Delete("/items/:id", saveHandler.HandleDeleteItem)

	searchHandler := search.NewHandler(d.Search, d.Items)
	api.Post("/search", searchHandler.HandleSearch)

	classifyHandler := classify.NewHandler(d.Classify)
	api.Post("/classify", classifyHandler.HandleClassify)

	voiceHandler := voice.NewHandler(d.Voice)
	api.Post("/voice", voiceHandler.HandleVoiceNote)

	jobHandler := queue.NewHandler(d.Queue)
	api.Post("/jobs", jobHandler.HandleSubmit)
	api.Get("/jobs/stats", jobHandler.HandleStats)
	api.Get("/jobs/:id", jobHandler.HandleGetStatus)

	return healthHandler
}
