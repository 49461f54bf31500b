// Package duplicates scores new uploads against existing catalog entries to
// catch re-uploads of the same content before any bytes are stored.
package duplicates

import (
	"github.com/djpapzin/papzincrew/internal/metadata"
)

// Fingerprint is the comparable identity of one audio upload. Title and
// artist are held in normalized form so comparisons are insensitive to case,
// bracketed noise and Unicode variants.
type Fingerprint struct {
	FileHash         string
	FileSizeBytes    int64
	DurationSeconds  int
	NormalizedTitle  string
	NormalizedArtist string
}

// NewFingerprint builds a fingerprint from raw identity fields, normalizing
// the textual ones.
func NewFingerprint(hash string, sizeBytes int64, durationSeconds int, title, artist string) Fingerprint {
	return Fingerprint{
		FileHash:         hash,
		FileSizeBytes:    sizeBytes,
		DurationSeconds:  durationSeconds,
		NormalizedTitle:  metadata.Normalize(title),
		NormalizedArtist: metadata.Normalize(artist),
	}
}
