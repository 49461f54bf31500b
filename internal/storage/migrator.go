package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/djpapzin/papzincrew/internal/database"
	"github.com/djpapzin/papzincrew/internal/events"
	"github.com/djpapzin/papzincrew/internal/logger"
)

// Migrator moves files that landed on the local fallback back to remote
// storage once it recovers. A filesystem watcher reacts to new fallback
// writes and a periodic sweep retries everything still local.
type Migrator struct {
	selector *Selector
	catalog  *database.Catalog
	bus      events.EventBus
	interval time.Duration

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewMigrator(selector *Selector, catalog *database.Catalog, bus events.EventBus, interval time.Duration) *Migrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Migrator{
		selector: selector,
		catalog:  catalog,
		bus:      bus,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins watching the fallback directory and sweeping on the interval.
// It is a no-op when no remote backend is configured, since there is nowhere
// to migrate to.
func (m *Migrator) Start() error {
	if !m.selector.RemoteConfigured() {
		logger.Info("fallback migrator disabled, no remote storage configured")
		return nil
	}
	local, ok := m.selector.Local().(*LocalBackend)
	if !ok || local == nil {
		return fmt.Errorf("fallback migrator requires a local backend")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(local.BaseDir()); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", local.BaseDir(), err)
	}
	m.watcher = watcher

	m.wg.Add(2)
	go m.watchLoop()
	go m.sweepLoop()

	logger.Info("fallback migrator started",
		logger.String("dir", local.BaseDir()),
		logger.String("interval", m.interval.String()))
	return nil
}

// Stop shuts down both loops and waits for in-flight migrations.
func (m *Migrator) Stop() {
	m.cancel()
	if m.watcher != nil {
		m.watcher.Close()
	}
	m.wg.Wait()
}

func (m *Migrator) watchLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				// Let the writer finish before attempting migration
				time.Sleep(2 * time.Second)
				m.migrateFile(event.Name)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("fallback watcher error", logger.Err(err))
		}
	}
}

func (m *Migrator) sweepLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if n, err := m.Sweep(m.ctx); err != nil {
				logger.Warn("fallback sweep failed", logger.Err(err))
			} else if n > 0 {
				logger.Info("fallback sweep migrated files", logger.Int("count", n))
			}
		}
	}
}

// Sweep walks the fallback directory once and migrates every file it can.
// It returns the number of files moved to remote storage.
func (m *Migrator) Sweep(ctx context.Context) (int, error) {
	local, ok := m.selector.Local().(*LocalBackend)
	if !ok || local == nil {
		return 0, nil
	}

	migrated := 0
	err := filepath.Walk(local.BaseDir(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		if m.migrateFile(path) {
			migrated++
		}
		return nil
	})
	return migrated, err
}

// migrateFile pushes one local file to remote storage, updates the catalog
// row that points at it, then removes the local copy. Files with no catalog
// row are left alone for the orphan scanner to report.
func (m *Migrator) migrateFile(path string) bool {
	local, ok := m.selector.Local().(*LocalBackend)
	if !ok || local == nil {
		return false
	}
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}

	key, err := filepath.Rel(local.BaseDir(), path)
	if err != nil {
		return false
	}
	key = filepath.ToSlash(key)

	mix, err := m.catalog.FindMixByPath(m.ctx, key)
	if err != nil {
		logger.Debug("fallback file has no catalog row, skipping",
			logger.String("key", key))
		return false
	}
	if mix.StorageBackend != BackendLocal {
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		logger.Warn("failed to read fallback file", logger.String("key", key), logger.Err(err))
		return false
	}

	location, err := m.selector.Remote().Store(m.ctx, key, data)
	if err != nil {
		logger.Debug("remote still unavailable for migration",
			logger.String("key", key), logger.Err(err))
		return false
	}

	if err := m.catalog.UpdateStorageLocation(m.ctx, mix.ID, BackendRemote, key); err != nil {
		logger.Error("migrated file but failed to update catalog",
			logger.String("key", key), logger.Err(err))
		return false
	}

	if err := os.Remove(path); err != nil {
		logger.Warn("failed to remove migrated local file",
			logger.String("key", key), logger.Err(err))
	}

	if m.bus != nil {
		event := events.NewEvent(events.EventStorageMigrated, "migrator", key, "migrated to remote storage")
		event.Data = map[string]interface{}{
			"mix_id":   mix.ID,
			"location": location,
		}
		m.bus.PublishAsync(event)
	}

	logger.Info("migrated fallback file to remote storage", logger.String("key", key))
	return true
}
