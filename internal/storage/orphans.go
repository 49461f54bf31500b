package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/djpapzin/papzincrew/internal/database"
	"github.com/djpapzin/papzincrew/internal/logger"
)

// OrphanReport lists stored objects with no catalog row and catalog rows
// whose bytes are missing.
type OrphanReport struct {
	RemoteOrphans []string `json:"remote_orphans"`
	LocalOrphans  []string `json:"local_orphans"`
	MissingFiles  []string `json:"missing_files"`
	Deleted       int      `json:"deleted"`
	DryRun        bool     `json:"dry_run"`
}

// OrphanScanner reconciles both backends against the catalog. With dryRun
// set it only reports; otherwise it deletes orphaned objects.
type OrphanScanner struct {
	selector *Selector
	catalog  *database.Catalog
}

func NewOrphanScanner(selector *Selector, catalog *database.Catalog) *OrphanScanner {
	return &OrphanScanner{selector: selector, catalog: catalog}
}

func (o *OrphanScanner) Scan(ctx context.Context, dryRun bool) (*OrphanReport, error) {
	report := &OrphanReport{DryRun: dryRun}

	entries, err := o.catalog.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		known[e.FilePath] = struct{}{}
	}

	if remote, ok := o.selector.Remote().(*B2Backend); ok && remote != nil {
		keys, err := remote.ListKeys(ctx, "")
		if err != nil {
			logger.Warn("orphan scan could not list remote objects", logger.Err(err))
		} else {
			for _, key := range keys {
				if _, tracked := known[key]; !tracked {
					report.RemoteOrphans = append(report.RemoteOrphans, key)
				}
			}
		}
	}

	if local, ok := o.selector.Local().(*LocalBackend); ok && local != nil {
		err := filepath.Walk(local.BaseDir(), func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.IsDir() || strings.HasPrefix(info.Name(), ".") {
				return nil
			}
			rel, err := filepath.Rel(local.BaseDir(), path)
			if err != nil {
				return nil
			}
			key := filepath.ToSlash(rel)
			if _, tracked := known[key]; !tracked {
				report.LocalOrphans = append(report.LocalOrphans, key)
			}
			return nil
		})
		if err != nil {
			logger.Warn("orphan scan could not walk local storage", logger.Err(err))
		}
	}

	// Catalog rows pointing at bytes that no longer exist
	for _, e := range entries {
		mix, err := o.catalog.GetMix(ctx, e.MixID)
		if err != nil {
			continue
		}
		var backend Backend
		switch mix.StorageBackend {
		case BackendRemote:
			backend = o.selector.Remote()
		case BackendLocal:
			backend = o.selector.Local()
		}
		if backend == nil {
			continue
		}
		exists, err := backend.Exists(ctx, mix.FilePath)
		if err == nil && !exists {
			report.MissingFiles = append(report.MissingFiles, mix.FilePath)
		}
	}

	if !dryRun {
		report.Deleted = o.deleteOrphans(ctx, report)
	}
	return report, nil
}

func (o *OrphanScanner) deleteOrphans(ctx context.Context, report *OrphanReport) int {
	deleted := 0
	if remote := o.selector.Remote(); remote != nil {
		for _, key := range report.RemoteOrphans {
			if err := remote.Delete(ctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
				logger.Warn("failed to delete remote orphan", logger.String("key", key), logger.Err(err))
				continue
			}
			deleted++
		}
	}
	if local := o.selector.Local(); local != nil {
		for _, key := range report.LocalOrphans {
			if err := local.Delete(ctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
				logger.Warn("failed to delete local orphan", logger.String("key", key), logger.Err(err))
				continue
			}
			deleted++
		}
	}
	return deleted
}
