package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"cdr-pipeline/internal/cdr"
	"cdr-pipeline/internal/runlog"
	"cdr-pipeline/internal/runner"
	"cdr-pipeline/internal/stats"
	"cdr-pipeline/pkg/logger"
	"cdr-pipeline/pkg/utils"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: run the pipeline, translate the result to JSON.

type Handlers struct {
	Runner *runner.Runner
	Stats  *stats.Service
	Runs   *runlog.Service

	// DB, when set, is pinged by the health endpoint.
	DB *pgxpool.Pool
}

// Health reports process liveness and, when a pool is wired, database
// reachability.
func (h Handlers) Health(c *gin.Context) {
	if h.DB != nil {
		if err := utils.HealthCheck(c.Request.Context(), h.DB, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// TriggerCDRUpload runs the internal pipeline synchronously and persists
// eligible calls to the CDR store.
func (h Handlers) TriggerCDRUpload(c *gin.Context) {
	h.trigger(c, cdr.SinkInternal)
}

// TriggerExternalCDRUpload runs the external pipeline synchronously and posts
// eligible calls as one batch.
func (h Handlers) TriggerExternalCDRUpload(c *gin.Context) {
	h.trigger(c, cdr.SinkExternal)
}

func (h Handlers) trigger(c *gin.Context, kind cdr.SinkKind) {
	if h.Runner == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "runner not configured"})
		return
	}

	report, err := h.Runner.Run(c.Request.Context(), kind)
	if err != nil {
		if errors.Is(err, runner.ErrRunInFlight) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "run already in flight", "kind": string(kind)})
			return
		}
		resp := gin.H{"error": err.Error(), "kind": string(kind)}
		var phaseErr *runner.PhaseError
		if errors.As(err, &phaseErr) {
			resp["phase"] = string(phaseErr.Phase)
		}
		logger.FromGin(c).Warn("pipeline trigger failed", "kind", string(kind), "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, resp)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "report": report})
}

// RecentRuns lists the most recent run history entries, newest first.
func (h Handlers) RecentRuns(c *gin.Context) {
	if h.Runs == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "run history not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.Runs.Recent(c.Request.Context(), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": entries})
}

// CallsSummary reports call-level statistics over current upstream data.
func (h Handlers) CallsSummary(c *gin.Context) {
	if h.Stats == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stats not configured"})
		return
	}
	out, err := h.Stats.CallsSummary(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// OperatorStats reports per-operator call volume and handling time.
func (h Handlers) OperatorStats(c *gin.Context) {
	if h.Stats == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stats not configured"})
		return
	}
	out, err := h.Stats.OperatorStats(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}
