package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/djpapzin/papzincrew/internal/config"
	"github.com/djpapzin/papzincrew/internal/metadata"
)

// MetadataHandler previews extracted metadata without ingesting anything, so
// clients can prefill the upload form.
type MetadataHandler struct {
	cfg *config.UploadConfig
}

func NewMetadataHandler(cfg *config.UploadConfig) *MetadataHandler {
	return &MetadataHandler{cfg: cfg}
}

// ExtractMetadata handles POST /upload/extract-metadata
func (h *MetadataHandler) ExtractMetadata(c *gin.Context) {
	capRequestBody(c, h.cfg.MaxFileSize)

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

	validation := metadata.ValidateAudioFile(fileHeader.Filename, data, h.cfg.MaxFileSize)
	if !validation.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      validation.Error,
			"error_code": validation.ErrorCode,
		})
		return
	}

	resolved := metadata.Resolve(fileHeader.Filename, data, metadata.Declared{})

	c.JSON(http.StatusOK, gin.H{
		"title":            resolved.Title,
		"artist":           resolved.Artist,
		"album":            resolved.Album,
		"genre":            resolved.Genre,
		"year":             resolved.Year,
		"duration_seconds": resolved.DurationSeconds,
		"bitrate_kbps":     resolved.BitrateKbps,
		"format":           resolved.Format,
		"has_embedded_art": resolved.Picture != nil,
	})
}
