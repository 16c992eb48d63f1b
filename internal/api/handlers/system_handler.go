package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tailorjob/backend/internal/services"
)

// Pinger is one dependency checked by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type SystemHandler struct {
	title   string
	version string
	deps    map[string]Pinger
	monitor services.MonitorService
}

func NewSystemHandler(title, version string, deps map[string]Pinger, monitor services.MonitorService) *SystemHandler {
	return &SystemHandler{title: title, version: version, deps: deps, monitor: monitor}
}

func (h *SystemHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": h.title, "version": h.version, "status": "running"})
}

// Health reports 503 when any dependency fails its ping.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.deps))
	status, code := "healthy", http.StatusOK
	for name, p := range h.deps {
		if err := p.Ping(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	c.JSON(code, gin.H{"status": status, "version": h.version, "checks": checks})
}

// PayPalHealth returns the last monitor report, running the checks when none exists yet.
func (h *SystemHandler) PayPalHealth(c *gin.Context) {
	r := h.monitor.Last()
	if r == nil || c.Query("refresh") == "true" {
		r = h.monitor.RunChecks(c.Request.Context())
	}
	c.JSON(http.StatusOK, r)
}
