package main

import (
	"cdr-pipeline/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic.
func registerRoutes(r *gin.Engine, h httpapi.Handlers) {
	r.GET("/healthz", h.Health)

	// Admin triggers run a full pipeline pass synchronously.
	// NOTE: deliberately unauthenticated; these endpoints are expected to be
	// reachable only from an internal network.
	admin := r.Group("/admin")
	{
		admin.POST("/trigger-cdr-upload", h.TriggerCDRUpload)
		admin.POST("/trigger-external-cdr-upload", h.TriggerExternalCDRUpload)
		admin.GET("/runs", h.RecentRuns)
	}

	// Read-only statistics computed over current upstream data.
	statistics := r.Group("/statistics")
	{
		statistics.GET("/calls/summary", h.CallsSummary)
		statistics.GET("/operators", h.OperatorStats)
	}
}
