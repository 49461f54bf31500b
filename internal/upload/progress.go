// Package upload orchestrates audio ingestion: validation, duplicate
// detection, storage, metadata resolution, and catalog persistence.
package upload

import (
	"sync"

	"github.com/djpapzin/papzincrew/internal/events"
	"github.com/djpapzin/papzincrew/internal/logger"
)

// Ingestion phases, in execution order. Each phase owns a slice of the 0-100
// progress range; phase transitions snap to the range boundary so reported
// progress never moves backwards.
const (
	PhaseFileUpload         = "file_upload"
	PhaseMetadataExtraction = "metadata_extraction"
	PhaseAIGeneration       = "ai_generation"
	PhaseComplete           = "complete"
)

type phaseRange struct {
	order int
	start int
	end   int
}

var phaseRanges = map[string]phaseRange{
	PhaseFileUpload:         {order: 0, start: 0, end: 40},
	PhaseMetadataExtraction: {order: 1, start: 40, end: 70},
	PhaseAIGeneration:       {order: 2, start: 70, end: 100},
	PhaseComplete:           {order: 3, start: 100, end: 100},
}

// ProgressUpdate is one progress report for an upload.
type ProgressUpdate struct {
	UploadID string `json:"upload_id"`
	Phase    string `json:"phase"`
	Percent  int    `json:"percent"`
	Message  string `json:"message,omitempty"`
}

// ProgressTracker maps per-phase completion onto the overall 0-100 range and
// publishes updates on the event bus. Reports for phases earlier than the
// current one, and percent values that would move overall progress backwards,
// are discarded.
type ProgressTracker struct {
	uploadID string
	bus      events.EventBus

	mu           sync.Mutex
	currentPhase string
	lastPercent  int
}

func NewProgressTracker(uploadID string, bus events.EventBus) *ProgressTracker {
	return &ProgressTracker{
		uploadID:     uploadID,
		bus:          bus,
		currentPhase: PhaseFileUpload,
	}
}

// Report records completion of the given phase, where phasePct is 0-100
// within that phase. Out-of-phase and regressive reports are dropped.
func (t *ProgressTracker) Report(phase string, phasePct int, message string) {
	r, ok := phaseRanges[phase]
	if !ok {
		logger.Debug("unknown progress phase dropped", logger.String("phase", phase))
		return
	}

	t.mu.Lock()
	current := phaseRanges[t.currentPhase]
	if r.order < current.order {
		t.mu.Unlock()
		return
	}
	if r.order > current.order {
		t.currentPhase = phase
	}

	if phasePct < 0 {
		phasePct = 0
	}
	if phasePct > 100 {
		phasePct = 100
	}
	overall := r.start + (r.end-r.start)*phasePct/100
	if overall < t.lastPercent {
		t.mu.Unlock()
		return
	}
	t.lastPercent = overall
	t.mu.Unlock()

	if t.bus != nil {
		event := events.NewEvent(events.EventUploadProgress, "upload", t.uploadID, message)
		event.Data = map[string]interface{}{
			"phase":   phase,
			"percent": overall,
		}
		t.bus.PublishAsync(event)
	}
}

// Complete marks the upload finished at 100 percent.
func (t *ProgressTracker) Complete(message string) {
	t.Report(PhaseComplete, 100, message)
	if t.bus != nil {
		t.bus.PublishAsync(events.NewEvent(events.EventUploadCompleted, "upload", t.uploadID, message))
	}
}

// Fail publishes a terminal failure for the upload.
func (t *ProgressTracker) Fail(message string) {
	if t.bus != nil {
		t.bus.PublishAsync(events.NewEvent(events.EventUploadFailed, "upload", t.uploadID, message))
	}
}

// Snapshot returns the current phase and overall percent.
func (t *ProgressTracker) Snapshot() ProgressUpdate {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ProgressUpdate{
		UploadID: t.uploadID,
		Phase:    t.currentPhase,
		Percent:  t.lastPercent,
	}
}
