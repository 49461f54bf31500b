// Package handlers contains the gin HTTP handlers for the upload API.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/djpapzin/papzincrew/internal/database"
	"github.com/djpapzin/papzincrew/internal/storage"
	"github.com/djpapzin/papzincrew/internal/upload"
)

// bodySlack is headroom on top of the audio file ceiling for the other
// multipart parts, like the cover image and form fields.
const bodySlack = 1 << 20

// capRequestBody bounds the request body so an oversized upload is rejected
// while parsing instead of being buffered whole.
func capRequestBody(c *gin.Context, limit int64) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+bodySlack)
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func writeBodyTooLarge(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":      "uploaded file exceeds the size limit",
		"error_code": "file_too_large",
	})
}

// UploadHandler serves the ingestion endpoints
type UploadHandler struct {
	orchestrator *upload.Orchestrator
	maxFileSize  int64
}

func NewUploadHandler(orchestrator *upload.Orchestrator, maxFileSize int64) *UploadHandler {
	return &UploadHandler{orchestrator: orchestrator, maxFileSize: maxFileSize}
}

// Upload handles POST /upload
func (h *UploadHandler) Upload(c *gin.Context) {
	capRequestBody(c, h.maxFileSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			writeBodyTooLarge(c)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "no file provided",
			"error_code": "invalid_audio_file",
		})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "failed to read uploaded file",
			"error_code": "invalid_audio_file",
		})
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		if isBodyTooLarge(err) {
			writeBodyTooLarge(c)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "failed to read uploaded file",
			"error_code": "invalid_audio_file",
		})
		return
	}

	req := &upload.Request{
		Filename:           fileHeader.Filename,
		Data:               data,
		Title:              c.PostForm("title"),
		ArtistName:         c.PostForm("artist_name"),
		Description:        c.PostForm("description"),
		Tracklist:          c.PostForm("tracklist"),
		Tags:               c.PostForm("tags"),
		Genre:              c.PostForm("genre"),
		Album:              c.PostForm("album"),
		Availability:       c.PostForm("availability"),
		AllowDownloads:     c.PostForm("allow_downloads"),
		DisplayEmbed:       c.PostForm("display_embed"),
		AgeRestriction:     c.PostForm("age_restriction"),
		CustomPrompt:       c.PostForm("custom_prompt"),
		SkipDuplicateCheck: c.PostForm("skip_duplicate_check") == "true",
	}

	// Optional cover image alongside the audio
	if coverHeader, err := c.FormFile("cover_image"); err == nil {
		if cf, err := coverHeader.Open(); err == nil {
			if coverData, err := io.ReadAll(cf); err == nil {
				req.CoverImage = coverData
				req.CoverImageType = coverHeader.Header.Get("Content-Type")
			}
			cf.Close()
		}
	}

	result, err := h.orchestrator.Ingest(c.Request.Context(), req)
	if err != nil {
		h.writeIngestError(c, err)
		return
	}

	response := gin.H{
		"id":       result.Mix.ID,
		"storage":  result.Storage.Backend,
		"location": result.Storage.Location,
	}
	if result.Storage.FallbackUsed {
		response["fallback_from_b2"] = true
	}
	if result.CoverArt.GeneratingArt {
		response["generating_art"] = true
		if result.CoverArtJobID != "" {
			response["art_job_id"] = result.CoverArtJobID
		}
	} else if result.CoverArt.URL != "" {
		response["cover_art_url"] = result.CoverArt.URL
	}

	c.JSON(http.StatusCreated, response)
}

func (h *UploadHandler) writeIngestError(c *gin.Context, err error) {
	var validationErr *upload.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      validationErr.Message,
			"error_code": validationErr.Code,
		})
		return
	}

	var conflict *upload.DuplicateConflict
	if errors.As(err, &conflict) {
		c.JSON(http.StatusConflict, gin.H{
			"error":      "this track already exists in the catalog",
			"error_code": "duplicate_track",
			"duplicate_info": gin.H{
				"mix_id":           conflict.Candidate.MixID,
				"match_type":       conflict.Candidate.MatchType,
				"confidence":       conflict.Candidate.Confidence,
				"component_scores": conflict.Candidate.ComponentScores,
			},
		})
		return
	}

	if errors.Is(err, database.ErrDuplicateKey) {
		c.JSON(http.StatusConflict, gin.H{
			"error":      "a concurrent upload of this track completed first",
			"error_code": "duplicate_track",
		})
		return
	}

	if errors.Is(err, storage.ErrStorageUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":      "storage is currently unavailable",
			"error_code": "storage_unavailable",
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "upload failed",
	})
}
