package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_PhaseMapping(t *testing.T) {
	tracker := NewProgressTracker("u1", nil)

	tracker.Report(PhaseFileUpload, 0, "")
	assert.Equal(t, 0, tracker.Snapshot().Percent)

	tracker.Report(PhaseFileUpload, 50, "")
	assert.Equal(t, 20, tracker.Snapshot().Percent)

	tracker.Report(PhaseFileUpload, 100, "")
	assert.Equal(t, 40, tracker.Snapshot().Percent)

	tracker.Report(PhaseMetadataExtraction, 100, "")
	assert.Equal(t, 70, tracker.Snapshot().Percent)

	tracker.Report(PhaseAIGeneration, 100, "")
	assert.Equal(t, 100, tracker.Snapshot().Percent)
}

func TestProgressTracker_Monotonic(t *testing.T) {
	tracker := NewProgressTracker("u1", nil)

	tracker.Report(PhaseMetadataExtraction, 50, "")
	assert.Equal(t, 55, tracker.Snapshot().Percent)

	// A lower report within the same phase never regresses the total
	tracker.Report(PhaseMetadataExtraction, 10, "")
	assert.Equal(t, 55, tracker.Snapshot().Percent)
}

func TestProgressTracker_DiscardsOutOfPhaseEvents(t *testing.T) {
	tracker := NewProgressTracker("u1", nil)

	tracker.Report(PhaseAIGeneration, 50, "")
	snapshot := tracker.Snapshot()
	assert.Equal(t, PhaseAIGeneration, snapshot.Phase)
	assert.Equal(t, 85, snapshot.Percent)

	// Stale events from earlier phases arrive late and are dropped
	tracker.Report(PhaseFileUpload, 100, "")
	tracker.Report(PhaseMetadataExtraction, 100, "")

	snapshot = tracker.Snapshot()
	assert.Equal(t, PhaseAIGeneration, snapshot.Phase)
	assert.Equal(t, 85, snapshot.Percent)
}

func TestProgressTracker_UnknownPhaseIgnored(t *testing.T) {
	tracker := NewProgressTracker("u1", nil)
	tracker.Report("warp_drive", 90, "")
	assert.Equal(t, 0, tracker.Snapshot().Percent)
	assert.Equal(t, PhaseFileUpload, tracker.Snapshot().Phase)
}

func TestProgressTracker_Complete(t *testing.T) {
	tracker := NewProgressTracker("u1", nil)
	tracker.Report(PhaseFileUpload, 30, "")
	tracker.Complete("done")

	snapshot := tracker.Snapshot()
	assert.Equal(t, PhaseComplete, snapshot.Phase)
	assert.Equal(t, 100, snapshot.Percent)
}

func TestProgressTracker_PercentClamped(t *testing.T) {
	tracker := NewProgressTracker("u1", nil)
	tracker.Report(PhaseFileUpload, 250, "")
	assert.Equal(t, 40, tracker.Snapshot().Percent)
}
