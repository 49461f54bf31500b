package database

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/djpapzin/papzincrew/internal/config"
)

var memDBCounter int64

// Open connects to the catalog database described by cfg and migrates the
// schema. The connection is returned to the caller; nothing in this package
// holds global state.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	logMode := gormlogger.Default.LogMode(gormlogger.Silent)
	if cfg.LogQueries {
		logMode = gormlogger.Default.LogMode(gormlogger.Info)
	}

	switch cfg.Type {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.Username, cfg.Password, cfg.Database, cfg.Port)
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logMode})
	case "sqlite":
		dbPath := cfg.DatabasePath
		if dbPath == "" {
			dbPath = filepath.Join(cfg.DataDir, "papzincrew.db")
		}
		if mkErr := os.MkdirAll(filepath.Dir(dbPath), 0755); mkErr != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", mkErr)
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{Logger: logMode})
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&Artist{}, &Mix{}, &CoverArtJob{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// OpenInMemory opens an in-memory sqlite database with the schema migrated.
// Used by tests. Each call gets its own database; the shared cache only ties
// together the pooled connections of one open.
func OpenInMemory() (*gorm.DB, error) {
	name := fmt.Sprintf("file:memdb-%d?mode=memory&cache=shared", atomic.AddInt64(&memDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Artist{}, &Mix{}, &CoverArtJob{}); err != nil {
		return nil, err
	}
	return db, nil
}
