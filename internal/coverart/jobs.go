package coverart

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/djpapzin/papzincrew/internal/config"
	"github.com/djpapzin/papzincrew/internal/database"
	"github.com/djpapzin/papzincrew/internal/events"
	"github.com/djpapzin/papzincrew/internal/storage"
	"github.com/djpapzin/papzincrew/internal/utils"
)

// JobStore persists cover art generation jobs and their state transitions.
// The worker is the only writer after creation; clients read status through
// the art-status endpoint.
type JobStore struct {
	db *gorm.DB
}

func NewJobStore(db *gorm.DB) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job *database.CoverArtJob) error {
	if job.ID == "" {
		job.ID = utils.GenerateUUID()
	}
	job.Status = database.JobStatusPending
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create cover art job: %w", err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*database.CoverArtJob, error) {
	var job database.CoverArtJob
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// GetByMix returns the most recent job for a track.
func (s *JobStore) GetByMix(ctx context.Context, mixID uint) (*database.CoverArtJob, error) {
	var job database.CoverArtJob
	err := s.db.WithContext(ctx).
		Where("mix_id = ?", mixID).
		Order("created_at DESC").
		First(&job).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (s *JobStore) markCompleted(ctx context.Context, id, resultURL string, attempts int) error {
	return s.db.WithContext(ctx).Model(&database.CoverArtJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     database.JobStatusCompleted,
			"result_url": resultURL,
			"attempts":   attempts,
			"last_error": "",
		}).Error
}

func (s *JobStore) markFailed(ctx context.Context, id string, attempts int, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.db.WithContext(ctx).Model(&database.CoverArtJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     database.JobStatusFailed,
			"attempts":   attempts,
			"last_error": msg,
		}).Error
}

// Worker generates cover art in the background. Each job runs the prompt
// through the generator with retry, normalizes the image to JPEG, stores it
// alongside the audio, and records the result on both the job row and the
// track. A job that exhausts its attempts fails and the track keeps the
// placeholder image.
type Worker struct {
	store       *JobStore
	generator   *Generator
	processor   *ImageProcessor
	selector    *storage.Selector
	catalog     *database.Catalog
	bus         events.EventBus
	pool        *utils.WorkerPool
	retry       utils.RetryPolicy
	placeholder string
	logger      hclog.Logger
}

func NewWorker(
	store *JobStore,
	generator *Generator,
	selector *storage.Selector,
	catalog *database.Catalog,
	bus events.EventBus,
	cfg *config.CoverArtConfig,
	logger hclog.Logger,
) *Worker {
	return &Worker{
		store:     store,
		generator: generator,
		processor: NewImageProcessor(),
		selector:  selector,
		catalog:   catalog,
		bus:       bus,
		pool:      utils.NewWorkerPool(cfg.Workers),
		retry: utils.RetryPolicy{
			MaxAttempts:       cfg.MaxAttempts,
			BaseDelay:         2 * time.Second,
			MaxDelay:          30 * time.Second,
			BackoffMultiplier: 2.0,
			PerAttemptTimeout: cfg.RequestTimeout,
		},
		placeholder: cfg.PlaceholderURL,
		logger:      logger.Named("art-worker"),
	}
}

func (w *Worker) Start() { w.pool.Start() }
func (w *Worker) Stop()  { w.pool.Stop() }

// Enqueue creates the job row and submits it for background processing.
func (w *Worker) Enqueue(ctx context.Context, mixID uint, title, artist, genre, customPrompt string) (*database.CoverArtJob, error) {
	prompt := BuildPrompt(title, artist, genre, customPrompt)
	job := &database.CoverArtJob{
		MixID:        mixID,
		Prompt:       prompt,
		CustomPrompt: customPrompt,
	}
	if err := w.store.Create(ctx, job); err != nil {
		return nil, err
	}

	event := events.NewEvent(events.EventArtJobCreated, "coverart", job.ID, "cover art generation queued")
	event.Data = map[string]interface{}{"mix_id": mixID}
	w.bus.PublishAsync(event)

	jobID := job.ID
	negative := NegativePromptFor(genre)
	accepted := w.pool.Submit(func() {
		w.process(jobID, mixID, prompt, negative)
	})
	if !accepted {
		w.fail(ctx, jobID, mixID, 0, fmt.Errorf("generation queue full"))
	}
	return job, nil
}

func (w *Worker) process(jobID string, mixID uint, prompt, negativePrompt string) {
	ctx := context.Background()
	attempts := 0

	var image []byte
	err := w.retry.Do(ctx, func(attemptCtx context.Context) error {
		attempts++
		data, genErr := w.generator.Generate(attemptCtx, prompt, negativePrompt)
		if genErr != nil {
			return genErr
		}
		image = data
		return nil
	})
	if err != nil {
		w.fail(ctx, jobID, mixID, attempts, err)
		return
	}

	jpegData, err := w.processor.ToJPEG(image, "")
	if err != nil {
		w.fail(ctx, jobID, mixID, attempts, fmt.Errorf("failed to process generated image: %w", err))
		return
	}

	key := fmt.Sprintf("covers/%d_%s.jpg", mixID, jobID[:8])
	result, err := w.selector.Store(ctx, key, jpegData)
	if err != nil {
		w.fail(ctx, jobID, mixID, attempts, fmt.Errorf("failed to store generated cover: %w", err))
		return
	}

	if err := w.store.markCompleted(ctx, jobID, result.Location, attempts); err != nil {
		w.logger.Error("failed to record job completion", "job_id", jobID, "error", err)
		return
	}
	if err := w.catalog.SetCoverArtURL(ctx, mixID, result.Location); err != nil {
		w.logger.Error("failed to update track cover art", "mix_id", mixID, "error", err)
	}

	event := events.NewEvent(events.EventArtJobCompleted, "coverart", jobID, "cover art generated")
	event.Data = map[string]interface{}{"mix_id": mixID, "url": result.Location}
	w.bus.PublishAsync(event)

	w.logger.Info("cover art job completed", "job_id", jobID, "mix_id", mixID, "attempts", attempts)
}

// fail marks the job failed and pins the placeholder image on the track so
// clients always have something to render.
func (w *Worker) fail(ctx context.Context, jobID string, mixID uint, attempts int, cause error) {
	w.logger.Warn("cover art job failed", "job_id", jobID, "mix_id", mixID, "attempts", attempts, "error", cause)

	if err := w.store.markFailed(ctx, jobID, attempts, cause); err != nil {
		w.logger.Error("failed to record job failure", "job_id", jobID, "error", err)
	}
	if err := w.catalog.SetCoverArtURL(ctx, mixID, w.placeholder); err != nil {
		w.logger.Error("failed to set placeholder cover art", "mix_id", mixID, "error", err)
	}

	event := events.NewEvent(events.EventArtJobFailed, "coverart", jobID, cause.Error())
	event.Data = map[string]interface{}{"mix_id": mixID}
	w.bus.PublishAsync(event)
}
