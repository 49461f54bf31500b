package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	return NewCatalog(db)
}

func TestGetOrCreateArtist(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	first, err := catalog.GetOrCreateArtist(ctx, "DJ X")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	// Second call resolves the same row
	second, err := catalog.GetOrCreateArtist(ctx, "DJ X")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestCreateMix_UniquePathViolation(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	artist, err := catalog.GetOrCreateArtist(ctx, "DJ X")
	require.NoError(t, err)

	mix := &Mix{Title: "Summer Mix", FilePath: "summer.mp3", FileHash: "h1", ArtistID: artist.ID}
	require.NoError(t, catalog.CreateMix(ctx, mix))

	// Same path loses the race at the constraint
	clone := &Mix{Title: "Summer Mix", FilePath: "summer.mp3", FileHash: "h1", ArtistID: artist.ID}
	err = catalog.CreateMix(ctx, clone)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestPathTaken(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	assert.False(t, catalog.PathTaken(ctx, "summer.mp3"))

	artist, err := catalog.GetOrCreateArtist(ctx, "DJ X")
	require.NoError(t, err)
	require.NoError(t, catalog.CreateMix(ctx, &Mix{Title: "T", FilePath: "summer.mp3", ArtistID: artist.ID}))

	assert.True(t, catalog.PathTaken(ctx, "summer.mp3"))
}

func TestSetCoverArtURLAndUpdateStorage(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	artist, err := catalog.GetOrCreateArtist(ctx, "DJ X")
	require.NoError(t, err)
	mix := &Mix{Title: "T", FilePath: "summer.mp3", StorageBackend: "local", ArtistID: artist.ID}
	require.NoError(t, catalog.CreateMix(ctx, mix))

	require.NoError(t, catalog.SetCoverArtURL(ctx, mix.ID, "https://cdn/cover.jpg"))
	require.NoError(t, catalog.UpdateStorageLocation(ctx, mix.ID, "remote", "summer.mp3"))

	got, err := catalog.GetMix(ctx, mix.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/cover.jpg", got.CoverArtURL)
	assert.Equal(t, "remote", got.StorageBackend)
}

func TestGetMix_NotFound(t *testing.T) {
	catalog := newTestCatalog(t)
	_, err := catalog.GetMix(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListEntries(t *testing.T) {
	catalog := newTestCatalog(t)
	ctx := context.Background()

	artist, err := catalog.GetOrCreateArtist(ctx, "DJ X")
	require.NoError(t, err)
	require.NoError(t, catalog.CreateMix(ctx, &Mix{
		Title: "Summer Mix", FilePath: "summer.mp3", FileHash: "h1",
		FileSizeBytes: 1000, DurationSeconds: 3600, ArtistID: artist.ID,
	}))

	entries, err := catalog.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Summer Mix", entries[0].Title)
	assert.Equal(t, "DJ X", entries[0].ArtistName)
	assert.Equal(t, "summer.mp3", entries[0].FilePath)
	assert.Equal(t, "h1", entries[0].FileHash)
}

func newMockCatalog(t *testing.T) (*Catalog, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})
	db, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err)

	t.Cleanup(func() { sqlDB.Close() })
	return NewCatalog(db), mock
}

func TestListEntries_QueryErrorPropagates(t *testing.T) {
	catalog, mock := newMockCatalog(t)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset"))

	_, err := catalog.ListEntries(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(errors.New("UNIQUE constraint failed: mixes.file_path")))
	assert.True(t, isUniqueViolation(errors.New(`duplicate key value violates unique constraint "idx_mixes_file_path"`)))
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
	assert.False(t, isUniqueViolation(nil))
}
