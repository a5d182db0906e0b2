package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"synapse/internal/config"
	"synapse/internal/core/classify"
	"synapse/internal/core/item"
	"synapse/internal/core/queue"
	"synapse/internal/core/save"
	"synapse/internal/core/search"
	"synapse/internal/core/voice"
	"synapse/internal/health"
	"synapse/internal/logger"
	"synapse/internal/mcp"
	"synapse/internal/platform/llm"
	rds "synapse/internal/platform/redis"
	"synapse/internal/platform/supabase"
	"synapse/internal/server"
	"synapse/prompts"
)

func main() {
	cfg := config.Load()
	log.Printf("[synapse] starting at %s (env=%s)\n", cfg.HTTPAddr, cfg.AppEnv)

	logr := logger.New("main")

	// Item store
	repo, err := item.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to open item store: %v", err)
	}
	defer repo.Close()

	// Redis cache (optional outside production)
	var redisSvc *rds.Service
	if svc, err := rds.New(rds.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}); err != nil {
		if cfg.AppEnv == "production" {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		logr.LogWarnf("redis unavailable, classification cache disabled: %v", err)
	} else {
		redisSvc = svc
		defer redisSvc.Close()
	}

	// Blob store
	blobSvc, err := supabase.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize blob store: %v", err)
	}

	// LLM service initialized from environment variables
	llmSvc, err := llm.NewService(llm.Config{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.GeminiAPIKey,
		Model:    cfg.LLMModel,
	})
	if err != nil {
		log.Fatalf("failed to initialize LLM service: %v", err)
	}

	// Job queue with periodic terminal-job cleanup
	q := queue.New(queue.Options{
		Concurrency: cfg.QueueConcurrency,
		MaxRetries:  cfg.QueueMaxRetries,
		RetryBase:   cfg.QueueRetryBase,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.StartCleanup(ctx, queue.DefaultCleanupInterval, queue.DefaultCleanupMaxAge)

	// Core services
	classifySvc := classify.NewService(llmSvc, prompts.NewSystemPrompts(), redisSvc)
	searchSvc := search.NewService(classifySvc, classifySvc)
	saveSvc := save.NewService(repo, classifySvc, blobSvc, q, cfg.SaveWaitTimeout)
	voiceSvc := voice.NewService(voice.NewWhisperClient(cfg.OpenAIAPIKey), classifySvc, blobSvc, repo)

	// MCP relay on its own port
	mcpSrv := mcp.NewServer(mcp.Deps{
		Save:   saveSvc,
		Search: searchSvc,
		Items:  repo,
		Jobs:   q,
	})
	go func() {
		if err := mcp.Serve(ctx, mcpSrv, cfg.MCPAddr); err != nil {
			logr.LogErrorf("MCP server stopped: %v", err)
		}
	}()

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName:   "Synapse",
		BodyLimit: 25 * 1024 * 1024, // captures carry inline images and audio
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})

	healthChecks := map[string]health.Checker{
		"database": repo.HealthCheck,
	}
	if redisSvc != nil {
		healthChecks["redis"] = redisSvc.HealthCheck
	}

	healthHandler := server.RegisterRoutes(app, server.Dependencies{
		Queue:        q,
		Items:        repo,
		Classify:     classifySvc,
		Search:       searchSvc,
		Save:         saveSvc,
		Voice:        voiceSvc,
		Blobs:        blobSvc,
		HealthChecks: healthChecks,
		DataDir:      cfg.DataDir,
	})

	go func() {
		time.Sleep(2 * time.Second) // Allow services to fully initialize
		healthHandler.SetReady()
	}()

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		cancel()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatalf("server listen: %v", err)
	}
}
