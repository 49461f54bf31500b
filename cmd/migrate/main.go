// Command migrate pushes files stranded on the local fallback to remote
// storage in one pass and exits. The server runs the same sweep continuously;
// this tool exists for one-off migrations and recovery.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/djpapzin/papzincrew/internal/config"
	"github.com/djpapzin/papzincrew/internal/database"
	"github.com/djpapzin/papzincrew/internal/logger"
	"github.com/djpapzin/papzincrew/internal/storage"
)

func main() {
	configPath := flag.String("config", os.Getenv("PAPZIN_CONFIG"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("invalid configuration", logger.Err(err))
		os.Exit(1)
	}
	if !cfg.Storage.RemoteConfigured() {
		logger.Error("remote storage credentials are required for migration")
		os.Exit(1)
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		logger.Error("failed to open database", logger.Err(err))
		os.Exit(1)
	}
	catalog := database.NewCatalog(db)

	ctx := context.Background()

	remote, err := storage.NewB2Backend(ctx, &cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize remote storage", logger.Err(err))
		os.Exit(1)
	}
	local, err := storage.NewLocalBackend(cfg.Storage.FallbackDir)
	if err != nil {
		logger.Error("failed to open local storage", logger.Err(err))
		os.Exit(1)
	}

	selector := storage.NewSelector(remote, local, &cfg.Storage)
	migrator := storage.NewMigrator(selector, catalog, nil, cfg.Storage.MigratorInterval)

	migrated, err := migrator.Sweep(ctx)
	if err != nil {
		logger.Error("migration sweep failed", logger.Err(err))
		os.Exit(1)
	}
	logger.Info("migration complete", logger.Int("migrated", migrated))
}
