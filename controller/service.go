package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Endpoints lists the routes advertised by the service descriptor.
var Endpoints = []string{
	"POST /upload/",
	"POST /upload/image",
	"POST /upload/image/file",
	"POST /upload/audio",
	"POST /render-and-upload/code",
	"POST /render-and-upload/mermaid",
	"GET /artifacts",
	"GET /artifacts/search",
	"GET /artifacts/:category",
	"GET /health",
	"GET /metrics",
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service_name": h.opts.ServiceName,
		"version":      h.opts.Version,
		"endpoints":    Endpoints,
	})
}

// Health probes the store. It always answers 200; the status field carries
// the verdict.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.opts.HealthTimeout)
	defer cancel()

	health := h.store.HealthCheck(ctx)
	if !health.Healthy {
		h.logger.Warn("store health check failed", "detail", health.Detail)
		c.JSON(http.StatusOK, gin.H{
			"status": "unhealthy",
			"store":  "error",
			"detail": health.Detail,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "store": "ok"})
}
