package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djpapzin/papzincrew/internal/config"
	"github.com/djpapzin/papzincrew/internal/coverart"
	"github.com/djpapzin/papzincrew/internal/database"
	"github.com/djpapzin/papzincrew/internal/duplicates"
	"github.com/djpapzin/papzincrew/internal/storage"
	"github.com/djpapzin/papzincrew/internal/upload"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    bool
}

func newMemBackend() *memBackend { return &memBackend{objects: make(map[string][]byte)} }

func (m *memBackend) Name() string { return storage.BackendLocal }

func (m *memBackend) Store(ctx context.Context, key string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", storage.ErrStorageUnavailable
	}
	m.objects[key] = data
	return "/files/" + key, nil
}

func (m *memBackend) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memBackend) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

type testAPI struct {
	router  *gin.Engine
	jobs    *coverart.JobStore
	catalog *database.Catalog
}

func newTestAPI(t *testing.T, opts ...func(*config.Config)) *testAPI {
	t.Helper()

	db, err := database.OpenInMemory()
	require.NoError(t, err)
	catalog := database.NewCatalog(db)

	cfg := config.Default()
	cfg.Storage.FallbackDir = t.TempDir()
	cfg.CoverArt.Enabled = false
	for _, opt := range opts {
		opt(cfg)
	}

	selector := storage.NewSelector(nil, newMemBackend(), &cfg.Storage)
	detector := duplicates.NewDetector(cfg.Duplicates)
	jobs := coverart.NewJobStore(db)
	resolver := coverart.NewResolver(selector, nil, false, cfg.CoverArt.PlaceholderURL)
	orchestrator := upload.NewOrchestrator(cfg, detector, selector, resolver, jobs, catalog, nil)

	r := gin.New()
	uploadHandler := NewUploadHandler(orchestrator, cfg.Upload.MaxFileSize)
	duplicateHandler := NewDuplicateCheckHandler(orchestrator)
	artHandler := NewArtStatusHandler(jobs, catalog)
	metadataHandler := NewMetadataHandler(&cfg.Upload)

	r.POST("/upload", uploadHandler.Upload)
	r.POST("/upload/check-duplicate", duplicateHandler.CheckDuplicate)
	r.POST("/upload/extract-metadata", metadataHandler.ExtractMetadata)
	r.GET("/tracks/:id/art-status", artHandler.ArtStatus)

	return &testAPI{router: r, jobs: jobs, catalog: catalog}
}

func multipartUpload(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func fakeMP3(payload string) []byte {
	return append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), []byte(payload)...)
}

func doUpload(t *testing.T, api *testAPI, filename string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartUpload(t, filename, data, fields)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	return w
}

func TestUpload_Created(t *testing.T) {
	api := newTestAPI(t)

	w := doUpload(t, api, "DJ X - Summer Mix.mp3", fakeMP3("payload"), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotZero(t, resp["id"])
	assert.Equal(t, "local", resp["storage"])
	assert.NotEmpty(t, resp["location"])
	assert.Nil(t, resp["fallback_from_b2"])
}

func TestUpload_RejectsUnsupportedType(t *testing.T) {
	api := newTestAPI(t)

	w := doUpload(t, api, "notes.txt", []byte("text"), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unsupported_file_type", resp["error_code"])
}

func TestUpload_NoFile(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_BodyOverCapRejectedDuringParse(t *testing.T) {
	api := newTestAPI(t, func(cfg *config.Config) {
		cfg.Upload.MaxFileSize = 1024
	})

	// Two megabytes clears the file ceiling plus the multipart slack, so the
	// cap trips while the form is still being parsed.
	oversized := append(fakeMP3(""), bytes.Repeat([]byte("a"), 2<<20)...)
	w := doUpload(t, api, "DJ X - Summer Mix.mp3", oversized, nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "file_too_large", resp["error_code"])
}

func TestUpload_DuplicateThenOverride(t *testing.T) {
	api := newTestAPI(t)

	first := doUpload(t, api, "DJ X - Summer Mix.mp3", fakeMP3("identical"), nil)
	require.Equal(t, http.StatusCreated, first.Code)

	second := doUpload(t, api, "DJ X - Summer Mix.mp3", fakeMP3("identical"), nil)
	require.Equal(t, http.StatusConflict, second.Code)

	var conflict map[string]interface{}
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &conflict))
	assert.Equal(t, "duplicate_track", conflict["error_code"])
	info := conflict["duplicate_info"].(map[string]interface{})
	assert.Equal(t, "exact_file", info["match_type"])
	assert.Equal(t, 1.0, info["confidence"])

	third := doUpload(t, api, "DJ X - Summer Mix.mp3", fakeMP3("identical"),
		map[string]string{"skip_duplicate_check": "true"})
	require.Equal(t, http.StatusCreated, third.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(third.Body.Bytes(), &resp))
	assert.Contains(t, resp["location"], "_1")
}

func TestCheckDuplicate_RoundTrip(t *testing.T) {
	api := newTestAPI(t)

	created := doUpload(t, api, "DJ X - Summer Mix.mp3", fakeMP3("payload"), nil)
	require.Equal(t, http.StatusCreated, created.Code)

	probe := func() map[string]interface{} {
		body, _ := json.Marshal(map[string]interface{}{
			"title":       "Summer Mix",
			"artist_name": "DJ X",
			"file_size":   len(fakeMP3("payload")),
		})
		req := httptest.NewRequest(http.MethodPost, "/upload/check-duplicate", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		api.router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp
	}

	first := probe()
	assert.Equal(t, true, first["duplicate"])
	assert.Equal(t, "fuzzy", first["match_type"])

	// Idempotent: identical probe, identical answer
	assert.Equal(t, first, probe())
}

func TestCheckDuplicate_RequiresTitleAndArtist(t *testing.T) {
	api := newTestAPI(t)

	body, _ := json.Marshal(map[string]interface{}{"file_size": 100})
	req := httptest.NewRequest(http.MethodPost, "/upload/check-duplicate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckDuplicate_RejectsMalformedHash(t *testing.T) {
	api := newTestAPI(t)

	body, _ := json.Marshal(map[string]interface{}{
		"title":       "Summer Mix",
		"artist_name": "DJ X",
		"file_hash":   "not-a-sha256",
	})
	req := httptest.NewRequest(http.MethodPost, "/upload/check-duplicate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestArtStatus_CompletedWithoutJob(t *testing.T) {
	api := newTestAPI(t)

	created := doUpload(t, api, "DJ X - Summer Mix.mp3", fakeMP3("payload"), nil)
	require.Equal(t, http.StatusCreated, created.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &resp))
	id := int(resp["id"].(float64))

	req := httptest.NewRequest(http.MethodGet, "/tracks/"+strconv.Itoa(id)+"/art-status", nil)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "completed", status["status"])
}

func TestArtStatus_UnknownTrack(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/tracks/9999/art-status", nil)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExtractMetadata(t *testing.T) {
	api := newTestAPI(t)

	body, contentType := multipartUpload(t, "DJ X - Summer Mix.mp3", fakeMP3("payload"), nil)
	req := httptest.NewRequest(http.MethodPost, "/upload/extract-metadata", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Summer Mix", resp["title"])
	assert.Equal(t, "DJ X", resp["artist"])
	assert.Equal(t, "mp3", resp["format"])
}

func TestExtractMetadata_BodyOverCap(t *testing.T) {
	api := newTestAPI(t, func(cfg *config.Config) {
		cfg.Upload.MaxFileSize = 1024
	})

	oversized := append(fakeMP3(""), bytes.Repeat([]byte("a"), 2<<20)...)
	body, contentType := multipartUpload(t, "DJ X - Summer Mix.mp3", oversized, nil)
	req := httptest.NewRequest(http.MethodPost, "/upload/extract-metadata", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "file_too_large", resp["error_code"])
}
