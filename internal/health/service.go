package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"synapse/internal/logger"
)

// Checker is one dependency's liveness probe.
type Checker func(ctx context.Context) error

// Handler answers health checks by probing registered dependencies.
type Handler struct {
	log       *logger.Logger
	checks    map[string]Checker
	startTime time.Time
	isReady   bool
}

func NewHandler(checks map[string]Checker) *Handler {
	return &Handler{
		log:       logger.New("HealthCheck"),
		checks:    checks,
		startTime: time.Now(),
	}
}

// SetReady marks the application as ready to receive traffic.
func (h *Handler) SetReady() {
	h.isReady = true
	h.log.LogInfof("application ready for traffic after %v", time.Since(h.startTime))
}

// ComponentStatus holds the status of a dependent component.
type ComponentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// OverallHealth is the health endpoint's response body.
type OverallHealth struct {
	OverallStatus string                     `json:"overall_status"`
	Timestamp     string                     `json:"timestamp"`
	Ready         bool                       `json:"ready"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Components    map[string]ComponentStatus `json:"components"`
}

// HandleHealth probes all dependencies concurrently and reports overall
// status. Not-ready and failing states both answer 503.
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 8*time.Second)
	defer cancel()

	statuses := make(map[string]ComponentStatus, len(h.checks))
	var wg sync.WaitGroup
	var mu sync.Mutex
	allOk := true

	for name, check := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := ComponentStatus{Status: "ok"}
			if err := check(ctx); err != nil {
				status = ComponentStatus{Status: "error", Error: err.Error()}
				h.log.LogErrorf("health check failed for %s: %v", name, err)
			}
			mu.Lock()
			statuses[name] = status
			if status.Status != "ok" {
				allOk = false
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	response := OverallHealth{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Ready:         h.isReady,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Components:    statuses,
	}

	switch {
	case allOk && h.isReady:
		response.OverallStatus = "ok"
		return c.Status(http.StatusOK).JSON(response)
	case !h.isReady:
		response.OverallStatus = "starting"
		return c.Status(http.StatusServiceUnavailable).JSON(response)
	default:
		response.OverallStatus = "error"
		return c.Status(http.StatusServiceUnavailable).JSON(response)
	}
}

// Limiter rate limits the health endpoint per client IP.
func Limiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{"error": "Rate limit exceeded"})
		},
	})
}
