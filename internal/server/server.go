// Package server wires the ingestion pipeline together and exposes it over
// HTTP.
package server

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/djpapzin/papzincrew/internal/config"
	"github.com/djpapzin/papzincrew/internal/coverart"
	"github.com/djpapzin/papzincrew/internal/database"
	"github.com/djpapzin/papzincrew/internal/duplicates"
	"github.com/djpapzin/papzincrew/internal/events"
	"github.com/djpapzin/papzincrew/internal/logger"
	"github.com/djpapzin/papzincrew/internal/storage"
	"github.com/djpapzin/papzincrew/internal/upload"
)

// Server owns the long-lived components behind the HTTP surface.
type Server struct {
	cfg      *config.Config
	router   *gin.Engine
	bus      events.EventBus
	catalog  *database.Catalog
	selector *storage.Selector
	worker   *coverart.Worker
	migrator *storage.Migrator
}

// New builds a fully wired server from configuration. The remote backend is
// optional; without credentials every upload lands on the local fallback.
func New(cfg *config.Config) (*Server, error) {
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	catalog := database.NewCatalog(db)

	bus := events.NewEventBus(256)

	var remote storage.Backend
	if cfg.Storage.RemoteConfigured() {
		b2, err := storage.NewB2Backend(context.Background(), &cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize remote storage: %w", err)
		}
		remote = b2
	} else {
		logger.Warn("remote storage not configured, uploads will use local storage only")
	}

	local, err := storage.NewLocalBackend(cfg.Storage.FallbackDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local storage: %w", err)
	}

	selector := storage.NewSelector(remote, local, &cfg.Storage)
	detector := duplicates.NewDetector(cfg.Duplicates)

	hlog := hclog.New(&hclog.LoggerOptions{
		Name:   "papzincrew",
		Level:  hclog.LevelFromString(os.Getenv("LOG_LEVEL")),
		Output: os.Stderr,
	})

	jobs := coverart.NewJobStore(db)
	generator := coverart.NewGenerator(&cfg.CoverArt, hlog)
	worker := coverart.NewWorker(jobs, generator, selector, catalog, bus, &cfg.CoverArt, hlog)
	resolver := coverart.NewResolver(selector, worker, cfg.CoverArt.Enabled, cfg.CoverArt.PlaceholderURL)

	orchestrator := upload.NewOrchestrator(cfg, detector, selector, resolver, jobs, catalog, bus)

	var migrator *storage.Migrator
	if cfg.Storage.MigratorEnabled {
		migrator = storage.NewMigrator(selector, catalog, bus, cfg.Storage.MigratorInterval)
	}

	s := &Server{
		cfg:      cfg,
		bus:      bus,
		catalog:  catalog,
		selector: selector,
		worker:   worker,
		migrator: migrator,
	}
	s.router = s.buildRouter(orchestrator, jobs)
	return s, nil
}

func (s *Server) buildRouter(orchestrator *upload.Orchestrator, jobs *coverart.JobStore) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS for browser clients
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	registerRoutes(r, s, orchestrator, jobs)
	return r
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Start brings up the background components and serves HTTP. It blocks until
// the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if err := s.bus.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	s.worker.Start()
	if s.migrator != nil {
		if err := s.migrator.Start(); err != nil {
			logger.Warn("fallback migrator failed to start", logger.Err(err))
		}
	}

	s.bus.PublishAsync(events.NewSystemEvent(events.EventSystemStarted, "startup", "server started"))

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	logger.Info("listening", logger.String("addr", addr))
	return s.router.Run(addr)
}

// Shutdown stops the background components.
func (s *Server) Shutdown(ctx context.Context) {
	s.bus.PublishAsync(events.NewSystemEvent(events.EventSystemStopped, "shutdown", "server stopping"))
	if s.migrator != nil {
		s.migrator.Stop()
	}
	s.worker.Stop()
	if err := s.bus.Stop(ctx); err != nil {
		logger.Warn("event bus shutdown incomplete", logger.Err(err))
	}
}
