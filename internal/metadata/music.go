package metadata

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"github.com/djpapzin/papzincrew/internal/logger"
)

// AudioFileExtensions defines supported audio upload formats
var AudioFileExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
	".wav":  true,
	".opus": true,
	".aiff": true,
}

// IsAudioFile checks if a filename carries a supported audio extension
func IsAudioFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return AudioFileExtensions[ext]
}

// EmbeddedPicture is artwork carried inside the audio container
type EmbeddedPicture struct {
	Data     []byte
	MIMEType string
	Ext      string
}

// TrackTags holds the descriptive metadata read from an audio container
type TrackTags struct {
	Title   string
	Artist  string
	Album   string
	Genre   string
	Year    int
	Track   int
	Picture *EmbeddedPicture
}

// ExtractTags reads the embedded container tags from raw audio bytes.
// Extraction failure is not fatal to ingestion; callers degrade to
// filename-derived defaults.
func ExtractTags(data []byte) (*TrackTags, error) {
	metadata, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	tags := &TrackTags{
		Title:  strings.TrimSpace(metadata.Title()),
		Artist: strings.TrimSpace(metadata.Artist()),
		Album:  strings.TrimSpace(metadata.Album()),
		Genre:  strings.TrimSpace(metadata.Genre()),
	}

	if metadata.Year() != 0 {
		tags.Year = metadata.Year()
	}

	trackNum, _ := metadata.Track()
	tags.Track = trackNum

	if picture := metadata.Picture(); picture != nil && len(picture.Data) > 0 {
		logger.Debug("Found embedded artwork",
			logger.String("mime_type", picture.MIMEType),
			logger.Int("size", len(picture.Data)))
		tags.Picture = &EmbeddedPicture{
			Data:     picture.Data,
			MIMEType: picture.MIMEType,
			Ext:      picture.Ext,
		}
	}

	return tags, nil
}
