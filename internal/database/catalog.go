package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrDuplicateKey is returned when an insert loses the race on a uniqueness
// constraint (file path or content hash). The losing writer must surface a
// conflict to its caller rather than silently overwriting.
var ErrDuplicateKey = errors.New("catalog: duplicate key")

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("catalog: not found")

// Catalog is the persistence boundary the ingestion pipeline hands finished
// records to. It owns the final record and its primary key.
type Catalog struct {
	db *gorm.DB
}

// NewCatalog creates a catalog store around an open database handle
func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// DB exposes the underlying handle for modules that share the connection
// (the cover art job store).
func (c *Catalog) DB() *gorm.DB {
	return c.db
}

// GetOrCreateArtist finds an artist by name, creating it when absent
func (c *Catalog) GetOrCreateArtist(ctx context.Context, name string) (*Artist, error) {
	var artist Artist
	err := c.db.WithContext(ctx).Where("name = ?", name).First(&artist).Error
	if err == nil {
		return &artist, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up artist: %w", err)
	}

	artist = Artist{Name: name}
	if err := c.db.WithContext(ctx).Create(&artist).Error; err != nil {
		// Lost a create race; the artist exists now
		if isUniqueViolation(err) {
			if retryErr := c.db.WithContext(ctx).Where("name = ?", name).First(&artist).Error; retryErr == nil {
				return &artist, nil
			}
		}
		return nil, fmt.Errorf("failed to create artist: %w", err)
	}
	return &artist, nil
}

// CreateMix persists a finished ingestion record. A uniqueness violation on
// the storage path or content hash is reported as ErrDuplicateKey.
func (c *Catalog) CreateMix(ctx context.Context, mix *Mix) error {
	if err := c.db.WithContext(ctx).Create(mix).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, mix.FilePath)
		}
		return fmt.Errorf("failed to create mix: %w", err)
	}
	return nil
}

// GetMix loads a mix by ID
func (c *Catalog) GetMix(ctx context.Context, id uint) (*Mix, error) {
	var mix Mix
	err := c.db.WithContext(ctx).Preload("Artist").First(&mix, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mix: %w", err)
	}
	return &mix, nil
}

// PathTaken reports whether a storage path is already recorded in the catalog
func (c *Catalog) PathTaken(ctx context.Context, path string) bool {
	var count int64
	c.db.WithContext(ctx).Model(&Mix{}).Where("file_path = ?", path).Count(&count)
	return count > 0
}

// SetCoverArtURL updates the cover art location of a mix. Used by the
// background art worker once a job completes.
func (c *Catalog) SetCoverArtURL(ctx context.Context, mixID uint, url string) error {
	return c.db.WithContext(ctx).Model(&Mix{}).Where("id = ?", mixID).
		Update("cover_art_url", url).Error
}

// UpdateStorageLocation rewrites the storage backend and path of a mix after
// a fallback file has been migrated to the remote store.
func (c *Catalog) UpdateStorageLocation(ctx context.Context, mixID uint, backend, path string) error {
	return c.db.WithContext(ctx).Model(&Mix{}).Where("id = ?", mixID).
		Updates(map[string]interface{}{
			"storage_backend": backend,
			"file_path":       path,
		}).Error
}

// FindMixByPath looks up a mix by its storage path
func (c *Catalog) FindMixByPath(ctx context.Context, path string) (*Mix, error) {
	var mix Mix
	err := c.db.WithContext(ctx).Where("file_path = ?", path).First(&mix).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &mix, nil
}

// CatalogEntry is the slice of a persisted mix the duplicate detector
// compares fingerprints against.
type CatalogEntry struct {
	MixID           uint
	Title           string
	ArtistName      string
	FilePath        string
	FileHash        string
	FileSizeBytes   int64
	DurationSeconds int
}

// ListEntries returns the fingerprint pool of existing catalog entries
func (c *Catalog) ListEntries(ctx context.Context) ([]CatalogEntry, error) {
	var rows []struct {
		ID              uint
		Title           string
		Name            string
		FilePath        string
		FileHash        string
		FileSizeBytes   int64
		DurationSeconds int
	}

	err := c.db.WithContext(ctx).Model(&Mix{}).
		Select("mixes.id, mixes.title, artists.name, mixes.file_path, mixes.file_hash, mixes.file_size_bytes, mixes.duration_seconds").
		Joins("LEFT JOIN artists ON artists.id = mixes.artist_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog entries: %w", err)
	}

	entries := make([]CatalogEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, CatalogEntry{
			MixID:           r.ID,
			Title:           r.Title,
			ArtistName:      r.Name,
			FilePath:        r.FilePath,
			FileHash:        r.FileHash,
			FileSizeBytes:   r.FileSizeBytes,
			DurationSeconds: r.DurationSeconds,
		})
	}
	return entries, nil
}

// isUniqueViolation detects uniqueness constraint errors across the sqlite
// and postgres drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "constraint failed")
}
