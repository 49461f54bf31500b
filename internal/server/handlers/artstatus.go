package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/djpapzin/papzincrew/internal/coverart"
	"github.com/djpapzin/papzincrew/internal/database"
)

// ArtStatusHandler serves cover art job status, polled by clients while
// generation runs in the background.
type ArtStatusHandler struct {
	jobs    *coverart.JobStore
	catalog *database.Catalog
}

func NewArtStatusHandler(jobs *coverart.JobStore, catalog *database.Catalog) *ArtStatusHandler {
	return &ArtStatusHandler{jobs: jobs, catalog: catalog}
}

// ArtStatus handles GET /tracks/:id/art-status
func (h *ArtStatusHandler) ArtStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid track id"})
		return
	}
	mixID := uint(id)

	job, err := h.jobs.GetByMix(c.Request.Context(), mixID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load art status"})
			return
		}
		// No job means the cover was resolved synchronously
		mix, err := h.catalog.GetMix(c.Request.Context(), mixID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "track not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":        string(database.JobStatusCompleted),
			"cover_art_url": mix.CoverArtURL,
		})
		return
	}

	response := gin.H{"status": string(job.Status)}
	switch job.Status {
	case database.JobStatusCompleted:
		response["cover_art_url"] = job.ResultURL
	case database.JobStatusFailed:
		// The track already carries the placeholder; report it so clients
		// can stop polling and render something.
		if mix, err := h.catalog.GetMix(c.Request.Context(), mixID); err == nil {
			response["cover_art_url"] = mix.CoverArtURL
		}
	}
	c.JSON(http.StatusOK, response)
}
