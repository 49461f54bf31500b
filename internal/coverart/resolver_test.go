package coverart

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djpapzin/papzincrew/internal/config"
	"github.com/djpapzin/papzincrew/internal/database"
	"github.com/djpapzin/papzincrew/internal/events"
	"github.com/djpapzin/papzincrew/internal/metadata"
	"github.com/djpapzin/papzincrew/internal/storage"
)

type coverBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newCoverBackend() *coverBackend { return &coverBackend{objects: make(map[string][]byte)} }

func (b *coverBackend) Name() string { return storage.BackendLocal }

func (b *coverBackend) Store(ctx context.Context, key string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return "/files/" + key, nil
}

func (b *coverBackend) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, storage.ErrObjectNotFound
}

func (b *coverBackend) Delete(ctx context.Context, key string) error { return nil }

func (b *coverBackend) Exists(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok, nil
}

func (b *coverBackend) stored(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

func newCoverSelector(backend *coverBackend) *storage.Selector {
	cfg := config.Default().Storage
	return storage.NewSelector(nil, backend, &cfg)
}

const testPlaceholder = "/static/default-cover.png"

func TestResolve_ClientImageWinsOverEmbedded(t *testing.T) {
	backend := newCoverBackend()
	resolver := NewResolver(newCoverSelector(backend), nil, false, testPlaceholder)

	res, err := resolver.Resolve(context.Background(), ResolveInput{
		MixID:       1,
		ClientImage: encodePNG(t, 4, 4), ClientImageType: "image/png",
		Embedded: &metadata.EmbeddedPicture{Data: encodePNG(t, 8, 8), MIMEType: "image/png"},
	})
	require.NoError(t, err)
	assert.Equal(t, SourceClient, res.Source)
	assert.Equal(t, "/files/covers/1_client.jpg", res.URL)
	assert.True(t, backend.stored("covers/1_client.jpg"))
	assert.False(t, backend.stored("covers/1_embedded.jpg"))
}

func TestResolve_EmbeddedWhenNoClientImage(t *testing.T) {
	backend := newCoverBackend()
	resolver := NewResolver(newCoverSelector(backend), nil, false, testPlaceholder)

	res, err := resolver.Resolve(context.Background(), ResolveInput{
		MixID:    2,
		Embedded: &metadata.EmbeddedPicture{Data: encodePNG(t, 8, 8), MIMEType: "image/png"},
	})
	require.NoError(t, err)
	assert.Equal(t, SourceEmbedded, res.Source)
	assert.True(t, backend.stored("covers/2_embedded.jpg"))
}

func TestResolve_UndecodableClientImageFallsThrough(t *testing.T) {
	backend := newCoverBackend()
	resolver := NewResolver(newCoverSelector(backend), nil, false, testPlaceholder)

	res, err := resolver.Resolve(context.Background(), ResolveInput{
		MixID:       3,
		ClientImage: []byte("not an image"), ClientImageType: "image/png",
		Embedded: &metadata.EmbeddedPicture{Data: encodePNG(t, 8, 8), MIMEType: "image/png"},
	})
	require.NoError(t, err)
	assert.Equal(t, SourceEmbedded, res.Source)
}

func TestResolve_GenerationJobWhenNoImages(t *testing.T) {
	backend := newCoverBackend()
	selector := newCoverSelector(backend)

	db, err := database.OpenInMemory()
	require.NoError(t, err)
	catalog := database.NewCatalog(db)

	bus := events.NewEventBus(16)
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		bus.Stop(ctx)
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(encodePNG(t, 4, 4))
	}))
	t.Cleanup(srv.Close)

	cfg := &config.CoverArtConfig{
		GeneratorURL:    srv.URL,
		GeneratorWidth:  64,
		GeneratorHeight: 64,
		RequestTimeout:  5 * time.Second,
		MaxAttempts:     1,
		Workers:         1,
		PlaceholderURL:  testPlaceholder,
		Enabled:         true,
	}
	store := NewJobStore(db)
	worker := NewWorker(store, NewGenerator(cfg, hclog.NewNullLogger()), selector, catalog, bus, cfg, hclog.NewNullLogger())
	worker.Start()
	t.Cleanup(worker.Stop)

	resolver := NewResolver(selector, worker, true, testPlaceholder)

	res, err := resolver.Resolve(context.Background(), ResolveInput{
		MixID: 4, Title: "Summer Mix", Artist: "DJ X", Genre: "pop",
	})
	require.NoError(t, err)
	assert.Equal(t, SourceGenerated, res.Source)
	assert.True(t, res.GeneratingArt)
	assert.Empty(t, res.URL)

	job, err := store.GetByMix(context.Background(), 4)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
}

func TestResolve_PlaceholderWhenGenerationDisabled(t *testing.T) {
	backend := newCoverBackend()
	resolver := NewResolver(newCoverSelector(backend), nil, false, testPlaceholder)

	res, err := resolver.Resolve(context.Background(), ResolveInput{
		MixID: 5, Title: "Summer Mix", Artist: "DJ X",
	})
	require.NoError(t, err)
	assert.Equal(t, SourcePlaceholder, res.Source)
	assert.Equal(t, testPlaceholder, res.URL)
	assert.False(t, res.GeneratingArt)
}
