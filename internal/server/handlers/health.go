package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/djpapzin/papzincrew/internal/storage"
)

// HealthHandler serves liveness and storage health
type HealthHandler struct {
	selector *storage.Selector
	scanner  *storage.OrphanScanner
	started  time.Time
}

func NewHealthHandler(selector *storage.Selector, scanner *storage.OrphanScanner) *HealthHandler {
	return &HealthHandler{selector: selector, scanner: scanner, started: time.Now()}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	})
}

// StorageHealth handles GET /api/storage/health
func (h *HealthHandler) StorageHealth(c *gin.Context) {
	report := h.selector.CheckHealth(c.Request.Context())
	status := http.StatusOK
	if report.RemoteConfigured && !report.RemoteReachable {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// OrphanScan handles POST /api/storage/orphan-scan. Dry-run by default;
// pass delete=true to remove orphaned objects.
func (h *HealthHandler) OrphanScan(c *gin.Context) {
	dryRun := c.Query("delete") != "true"
	report, err := h.scanner.Scan(c.Request.Context(), dryRun)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "orphan scan failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}
