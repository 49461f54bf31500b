package database

import (
	"time"
)

// Artist represents a mix artist in the catalog
type Artist struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Mix represents a persisted track/mix in the catalog. The ingestion
// pipeline hands finished records to the catalog store; the uniqueness
// constraints on FilePath and FileHash are the final arbiter for concurrent
// ingestions of identical content.
type Mix struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Title            string    `gorm:"index;not null" json:"title"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	DurationSeconds  int       `json:"duration_seconds"`
	FilePath         string    `gorm:"uniqueIndex;not null" json:"file_path"`
	FileHash         string    `gorm:"index" json:"file_hash,omitempty"`
	FileSizeBytes    int64     `json:"file_size_bytes"`
	QualityKbps      int       `json:"quality_kbps"`
	StorageBackend   string    `gorm:"default:remote" json:"storage_backend"`
	CoverArtURL      string    `json:"cover_art_url,omitempty"`
	ReleaseDate      time.Time `gorm:"autoCreateTime" json:"release_date"`

	Description    string `json:"description,omitempty"`
	Tracklist      string `json:"tracklist,omitempty"`
	Tags           string `json:"tags,omitempty"`
	Genre          string `json:"genre,omitempty"`
	Album          string `json:"album,omitempty"`
	Year           int    `json:"year,omitempty"`
	Availability   string `gorm:"default:public" json:"availability"`
	AllowDownloads string `gorm:"default:yes" json:"allow_downloads"`
	DisplayEmbed   string `gorm:"default:yes" json:"display_embed"`
	AgeRestriction string `gorm:"default:all" json:"age_restriction"`

	ArtistID uint   `gorm:"index" json:"artist_id"`
	Artist   Artist `gorm:"foreignKey:ArtistID" json:"artist,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CoverArtJobStatus enumerates the cover art job states
type CoverArtJobStatus string

const (
	JobStatusPending   CoverArtJobStatus = "pending"
	JobStatusCompleted CoverArtJobStatus = "completed"
	JobStatusFailed    CoverArtJobStatus = "failed"
)

// CoverArtJob represents an asynchronous AI artwork generation job. Only the
// background worker mutates it after creation; completed and failed are
// terminal.
type CoverArtJob struct {
	ID           string            `gorm:"primaryKey" json:"id"`
	MixID        uint              `gorm:"index;not null" json:"mix_id"`
	Status       CoverArtJobStatus `gorm:"default:pending;index" json:"status"`
	Prompt       string            `json:"prompt,omitempty"`
	CustomPrompt string            `json:"custom_prompt,omitempty"`
	ResultURL    string            `json:"result_url,omitempty"`
	Attempts     int               `json:"attempts"`
	LastError    string            `json:"last_error,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
