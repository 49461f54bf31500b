package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/djpapzin/papzincrew/internal/upload"
	"github.com/djpapzin/papzincrew/internal/utils"
)

// DuplicateCheckHandler serves the side-effect-free duplicate check
type DuplicateCheckHandler struct {
	orchestrator *upload.Orchestrator
}

func NewDuplicateCheckHandler(orchestrator *upload.Orchestrator) *DuplicateCheckHandler {
	return &DuplicateCheckHandler{orchestrator: orchestrator}
}

type duplicateCheckRequest struct {
	Title           string `json:"title" binding:"required"`
	ArtistName      string `json:"artist_name" binding:"required"`
	FileSize        int64  `json:"file_size"`
	FileHash        string `json:"file_hash"`
	DurationSeconds int    `json:"duration_seconds"`
	Album           string `json:"album"`
}

// CheckDuplicate handles POST /upload/check-duplicate
func (h *DuplicateCheckHandler) CheckDuplicate(c *gin.Context) {
	var req duplicateCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "title and artist_name are required",
		})
		return
	}

	if req.FileHash != "" && !utils.ValidateHash(req.FileHash) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "file_hash must be a 64-character hex SHA256 digest",
		})
		return
	}

	candidate, err := h.orchestrator.CheckDuplicate(c.Request.Context(),
		req.Title, req.ArtistName, req.FileHash, req.FileSize, req.DurationSeconds)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "duplicate check failed",
		})
		return
	}

	if candidate == nil {
		c.JSON(http.StatusOK, gin.H{"duplicate": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"duplicate":        true,
		"match_type":       candidate.MatchType,
		"confidence":       candidate.Confidence,
		"component_scores": candidate.ComponentScores,
	})
}
