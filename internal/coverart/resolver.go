package coverart

import (
	"context"
	"fmt"

	"github.com/djpapzin/papzincrew/internal/logger"
	"github.com/djpapzin/papzincrew/internal/metadata"
	"github.com/djpapzin/papzincrew/internal/storage"
)

// Cover art sources, in resolution priority order.
const (
	SourceClient      = "client"
	SourceEmbedded    = "embedded"
	SourceGenerated   = "generated"
	SourcePlaceholder = "placeholder"
)

// Resolution is the outcome of cover art resolution for one upload. When
// Source is "generated" the URL is empty until the background job finishes
// and GeneratingArt is true.
type Resolution struct {
	Source        string
	URL           string
	GeneratingArt bool
}

// Resolver picks the cover image for a track: a client-supplied image wins,
// then artwork embedded in the audio container, then an AI generation job.
// With generation disabled the track gets the placeholder immediately.
type Resolver struct {
	processor   *ImageProcessor
	selector    *storage.Selector
	worker      *Worker
	enabled     bool
	placeholder string
}

func NewResolver(selector *storage.Selector, worker *Worker, enabled bool, placeholder string) *Resolver {
	return &Resolver{
		processor:   NewImageProcessor(),
		selector:    selector,
		worker:      worker,
		enabled:     enabled,
		placeholder: placeholder,
	}
}

// ResolveInput carries everything resolution might need.
type ResolveInput struct {
	MixID        uint
	Title        string
	Artist       string
	Genre        string
	CustomPrompt string

	// ClientImage is an image uploaded alongside the audio, or nil.
	ClientImage     []byte
	ClientImageType string

	// Embedded is artwork extracted from the audio container, or nil.
	Embedded *metadata.EmbeddedPicture
}

// Resolve stores the chosen image and returns where it came from. Generation
// failures never fail the upload; the track falls back to the placeholder.
func (r *Resolver) Resolve(ctx context.Context, in ResolveInput) (*Resolution, error) {
	if len(in.ClientImage) > 0 {
		url, err := r.storeImage(ctx, in.MixID, "client", in.ClientImage, in.ClientImageType)
		if err == nil {
			return &Resolution{Source: SourceClient, URL: url}, nil
		}
		logger.Warn("failed to store client cover image, trying next source",
			logger.Int64("mix_id", int64(in.MixID)), logger.Err(err))
	}

	if in.Embedded != nil && len(in.Embedded.Data) > 0 {
		url, err := r.storeImage(ctx, in.MixID, "embedded", in.Embedded.Data, in.Embedded.MIMEType)
		if err == nil {
			return &Resolution{Source: SourceEmbedded, URL: url}, nil
		}
		logger.Warn("failed to store embedded cover image, trying next source",
			logger.Int64("mix_id", int64(in.MixID)), logger.Err(err))
	}

	if r.enabled && r.worker != nil {
		if _, err := r.worker.Enqueue(ctx, in.MixID, in.Title, in.Artist, in.Genre, in.CustomPrompt); err != nil {
			logger.Warn("failed to enqueue cover art generation",
				logger.Int64("mix_id", int64(in.MixID)), logger.Err(err))
			return &Resolution{Source: SourcePlaceholder, URL: r.placeholder}, nil
		}
		return &Resolution{Source: SourceGenerated, GeneratingArt: true}, nil
	}

	return &Resolution{Source: SourcePlaceholder, URL: r.placeholder}, nil
}

func (r *Resolver) storeImage(ctx context.Context, mixID uint, origin string, data []byte, mimeType string) (string, error) {
	jpegData, err := r.processor.ToJPEG(data, mimeType)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("covers/%d_%s.jpg", mixID, origin)
	result, err := r.selector.Store(ctx, key, jpegData)
	if err != nil {
		return "", err
	}
	return result.Location, nil
}
