package upload

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/djpapzin/papzincrew/internal/config"
	"github.com/djpapzin/papzincrew/internal/coverart"
	"github.com/djpapzin/papzincrew/internal/database"
	"github.com/djpapzin/papzincrew/internal/duplicates"
	"github.com/djpapzin/papzincrew/internal/events"
	"github.com/djpapzin/papzincrew/internal/logger"
	"github.com/djpapzin/papzincrew/internal/metadata"
	"github.com/djpapzin/papzincrew/internal/storage"
	"github.com/djpapzin/papzincrew/internal/utils"
)

// ValidationError rejects an upload before any bytes are written.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// DuplicateConflict reports a detected duplicate. The caller may resubmit
// with the skip flag to override.
type DuplicateConflict struct {
	Candidate *duplicates.Candidate
}

func (e *DuplicateConflict) Error() string {
	return fmt.Sprintf("duplicate track detected (%s, confidence %.2f)",
		e.Candidate.MatchType, e.Candidate.Confidence)
}

// Request is one ingestion call. Declared fields are optional; empty values
// are resolved from embedded tags and the filename.
type Request struct {
	UploadID string
	Filename string
	Data     []byte

	Title          string
	ArtistName     string
	Description    string
	Tracklist      string
	Tags           string
	Genre          string
	Album          string
	Availability   string
	AllowDownloads string
	DisplayEmbed   string
	AgeRestriction string

	SkipDuplicateCheck bool
	CustomPrompt       string

	CoverImage     []byte
	CoverImageType string
}

// Result is the successful outcome of an ingestion.
type Result struct {
	Mix           *database.Mix
	Storage       *storage.Result
	CoverArt      *coverart.Resolution
	CoverArtJobID string
}

// Orchestrator runs the ingestion pipeline: validate, duplicate-check,
// store, resolve metadata and cover art, persist. Each call is independent;
// the orchestrator holds no per-upload state beyond the progress tracker it
// creates.
type Orchestrator struct {
	cfg      *config.Config
	detector *duplicates.Detector
	selector *storage.Selector
	resolver *coverart.Resolver
	jobs     *coverart.JobStore
	catalog  *database.Catalog
	bus      events.EventBus
}

func NewOrchestrator(
	cfg *config.Config,
	detector *duplicates.Detector,
	selector *storage.Selector,
	resolver *coverart.Resolver,
	jobs *coverart.JobStore,
	catalog *database.Catalog,
	bus events.EventBus,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		detector: detector,
		selector: selector,
		resolver: resolver,
		jobs:     jobs,
		catalog:  catalog,
		bus:      bus,
	}
}

// Ingest runs the full pipeline. It returns a *ValidationError or
// *DuplicateConflict for client-fixable rejections, storage.ErrStorageUnavailable
// when no backend could take the bytes, and database.ErrDuplicateKey when a
// concurrent ingestion of identical content won the catalog race.
func (o *Orchestrator) Ingest(ctx context.Context, req *Request) (*Result, error) {
	if req.UploadID == "" {
		req.UploadID = utils.GenerateUUID()
	}
	tracker := NewProgressTracker(req.UploadID, o.bus)

	if o.bus != nil {
		o.bus.PublishAsync(events.NewEvent(events.EventUploadStarted, "upload", req.UploadID, req.Filename))
	}

	// Phase 1: validation. Fails fast with no side effects.
	tracker.Report(PhaseFileUpload, 10, "validating file")
	validation := metadata.ValidateAudioFile(req.Filename, req.Data, o.cfg.Upload.MaxFileSize)
	if !validation.Valid {
		tracker.Fail(validation.Error)
		return nil, &ValidationError{Code: validation.ErrorCode, Message: validation.Error}
	}

	if err := ctx.Err(); err != nil {
		tracker.Fail("cancelled")
		return nil, err
	}

	// Resolve metadata before storing so the fingerprint and the catalog
	// row share one view of the track.
	tracker.Report(PhaseFileUpload, 20, "resolving metadata")
	resolved := metadata.Resolve(req.Filename, req.Data, metadata.Declared{
		Title:  req.Title,
		Artist: req.ArtistName,
		Album:  req.Album,
		Genre:  req.Genre,
	})
	if resolved.Title == "" {
		tracker.Fail("missing title")
		return nil, &ValidationError{Code: metadata.ErrCodeMissingTitle, Message: "a title could not be determined for this upload"}
	}
	if resolved.Artist == "" {
		tracker.Fail("missing artist")
		return nil, &ValidationError{Code: metadata.ErrCodeMissingArtist, Message: "an artist could not be determined for this upload"}
	}

	// The fingerprint is computed once and reused for both duplicate
	// detection and the catalog's uniqueness guard.
	hash := utils.HashBytes(req.Data)
	fingerprint := duplicates.NewFingerprint(hash, int64(len(req.Data)), resolved.DurationSeconds, resolved.Title, resolved.Artist)

	if !req.SkipDuplicateCheck {
		tracker.Report(PhaseFileUpload, 30, "checking for duplicates")
		pool, err := o.candidatePool(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load duplicate candidates: %w", err)
		}
		if candidate := o.detector.Detect(fingerprint, pool); candidate != nil {
			tracker.Fail("duplicate detected")
			return nil, &DuplicateConflict{Candidate: candidate}
		}
	}

	if err := ctx.Err(); err != nil {
		tracker.Fail("cancelled")
		return nil, err
	}

	// Phase 1 continued: storage. The key is disambiguated when overriding
	// a duplicate, since the original upload already owns the natural key.
	key := o.storageKey(ctx, req, resolved)
	tracker.Report(PhaseFileUpload, 60, "storing file")
	stored, err := o.selector.Store(ctx, key, req.Data)
	if err != nil {
		tracker.Fail("storage failed")
		return nil, err
	}
	tracker.Report(PhaseFileUpload, 100, "file stored")

	if stored.FallbackUsed && o.bus != nil {
		event := events.NewEvent(events.EventStorageFallback, "upload", req.UploadID, "stored on local fallback")
		event.Data = map[string]interface{}{"key": key}
		o.bus.PublishAsync(event)
	}

	// From here on a failure must release the stored bytes.
	tracker.Report(PhaseMetadataExtraction, 50, "persisting track")

	artist, err := o.catalog.GetOrCreateArtist(ctx, resolved.Artist)
	if err != nil {
		o.selector.Cleanup(ctx, stored)
		tracker.Fail("persist failed")
		return nil, fmt.Errorf("failed to resolve artist: %w", err)
	}

	mix := &database.Mix{
		Title:            resolved.Title,
		OriginalFilename: req.Filename,
		DurationSeconds:  resolved.DurationSeconds,
		FilePath:         key,
		FileHash:         hash,
		FileSizeBytes:    int64(len(req.Data)),
		QualityKbps:      resolved.BitrateKbps,
		StorageBackend:   stored.Backend,
		Description:      req.Description,
		Tracklist:        req.Tracklist,
		Tags:             req.Tags,
		Genre:            resolved.Genre,
		Album:            resolved.Album,
		Year:             resolved.Year,
		ArtistID:         artist.ID,
	}
	if req.Availability != "" {
		mix.Availability = req.Availability
	}
	if req.AllowDownloads != "" {
		mix.AllowDownloads = req.AllowDownloads
	}
	if req.DisplayEmbed != "" {
		mix.DisplayEmbed = req.DisplayEmbed
	}
	if req.AgeRestriction != "" {
		mix.AgeRestriction = req.AgeRestriction
	}

	if err := o.catalog.CreateMix(ctx, mix); err != nil {
		o.selector.Cleanup(ctx, stored)
		tracker.Fail("persist failed")
		if errors.Is(err, database.ErrDuplicateKey) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to persist track: %w", err)
	}
	tracker.Report(PhaseMetadataExtraction, 100, "track persisted")

	// Phase 3: cover art. Never fails the ingestion.
	tracker.Report(PhaseAIGeneration, 10, "resolving cover art")
	resolution, err := o.resolver.Resolve(ctx, coverart.ResolveInput{
		MixID:           mix.ID,
		Title:           resolved.Title,
		Artist:          resolved.Artist,
		Genre:           resolved.Genre,
		CustomPrompt:    req.CustomPrompt,
		ClientImage:     req.CoverImage,
		ClientImageType: req.CoverImageType,
		Embedded:        resolved.Picture,
	})
	if err != nil {
		logger.Warn("cover art resolution failed, using placeholder",
			logger.String("upload_id", req.UploadID), logger.Err(err))
		resolution = &coverart.Resolution{
			Source: coverart.SourcePlaceholder,
			URL:    o.cfg.CoverArt.PlaceholderURL,
		}
	}
	if resolution.URL != "" {
		if err := o.catalog.SetCoverArtURL(ctx, mix.ID, resolution.URL); err != nil {
			logger.Warn("failed to record cover art url",
				logger.Int64("mix_id", int64(mix.ID)), logger.Err(err))
		}
		mix.CoverArtURL = resolution.URL
	}

	result := &Result{Mix: mix, Storage: stored, CoverArt: resolution}
	if resolution.GeneratingArt {
		if job, err := o.jobs.GetByMix(ctx, mix.ID); err == nil {
			result.CoverArtJobID = job.ID
		}
	} else {
		tracker.Report(PhaseAIGeneration, 100, "cover art resolved")
	}

	tracker.Complete("upload complete")
	logger.Info("ingestion complete",
		logger.String("upload_id", req.UploadID),
		logger.Int64("mix_id", int64(mix.ID)),
		logger.String("backend", stored.Backend),
		logger.Bool("fallback", stored.FallbackUsed))
	return result, nil
}

// CheckDuplicate answers the side-effect-free duplicate probe. It performs
// no writes and identical inputs yield identical answers.
func (o *Orchestrator) CheckDuplicate(ctx context.Context, title, artistName, fileHash string, fileSize int64, durationSeconds int) (*duplicates.Candidate, error) {
	pool, err := o.candidatePool(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load duplicate candidates: %w", err)
	}
	fp := duplicates.NewFingerprint(fileHash, fileSize, durationSeconds, title, artistName)
	return o.detector.Detect(fp, pool), nil
}

func (o *Orchestrator) candidatePool(ctx context.Context) ([]duplicates.Entry, error) {
	entries, err := o.catalog.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	pool := make([]duplicates.Entry, 0, len(entries))
	for _, e := range entries {
		pool = append(pool, duplicates.Entry{
			MixID: e.MixID,
			Fingerprint: duplicates.NewFingerprint(
				e.FileHash, e.FileSizeBytes, e.DurationSeconds, e.Title, e.ArtistName),
		})
	}
	return pool, nil
}

// storageKey derives the object key from the sanitized filename and
// disambiguates it when the natural key is already taken, which happens when
// a duplicate upload proceeds under the override flag.
func (o *Orchestrator) storageKey(ctx context.Context, req *Request, resolved *metadata.Resolved) string {
	name := utils.SanitizeFilename(filepath.Base(req.Filename))
	if name == "" {
		name = fmt.Sprintf("%s%s", req.UploadID, filepath.Ext(req.Filename))
	}
	return utils.DisambiguateKey(name, func(candidate string) bool {
		return o.catalog.PathTaken(ctx, candidate) || o.selector.KeyTaken(ctx, candidate)
	})
}
