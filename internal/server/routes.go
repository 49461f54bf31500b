package server

import (
	"github.com/gin-gonic/gin"

	"github.com/djpapzin/papzincrew/internal/coverart"
	"github.com/djpapzin/papzincrew/internal/server/handlers"
	"github.com/djpapzin/papzincrew/internal/storage"
	"github.com/djpapzin/papzincrew/internal/upload"
)

func registerRoutes(r *gin.Engine, s *Server, orchestrator *upload.Orchestrator, jobs *coverart.JobStore) {
	uploadHandler := handlers.NewUploadHandler(orchestrator, s.cfg.Upload.MaxFileSize)
	duplicateHandler := handlers.NewDuplicateCheckHandler(orchestrator)
	artHandler := handlers.NewArtStatusHandler(jobs, s.catalog)
	metadataHandler := handlers.NewMetadataHandler(&s.cfg.Upload)
	healthHandler := handlers.NewHealthHandler(s.selector, storage.NewOrphanScanner(s.selector, s.catalog))
	progressHandler := handlers.NewProgressHandler(s.bus)

	r.GET("/health", healthHandler.Health)

	r.POST("/upload", uploadHandler.Upload)
	r.POST("/upload/check-duplicate", duplicateHandler.CheckDuplicate)
	r.POST("/upload/extract-metadata", metadataHandler.ExtractMetadata)

	r.GET("/tracks/:id/art-status", artHandler.ArtStatus)

	api := r.Group("/api")
	{
		api.GET("/health", healthHandler.Health)
		api.GET("/storage/health", healthHandler.StorageHealth)
		api.POST("/storage/orphan-scan", healthHandler.OrphanScan)
		api.GET("/uploads/:id/progress", progressHandler.Stream)
	}
}
