package metadata

import (
	"path/filepath"
	"strings"

	"github.com/djpapzin/papzincrew/internal/logger"
)

// Declared carries metadata the client supplied alongside the upload form.
// Empty fields mean the client left the value to be resolved.
type Declared struct {
	Title  string
	Artist string
	Album  string
	Genre  string
	Year   int
}

// Resolved is the final metadata for a track after merging all sources.
type Resolved struct {
	Title           string
	Artist          string
	Album           string
	Genre           string
	Year            int
	DurationSeconds int
	BitrateKbps     int
	Picture         *EmbeddedPicture
	Format          string
}

// Resolve merges the three metadata sources in precedence order: fields the
// client declared explicitly win, then embedded tags, then values derived
// from the filename. Artist falls back to the UnknownArtist sentinel so a
// track is never persisted without one.
func Resolve(filename string, data []byte, declared Declared) *Resolved {
	out := &Resolved{
		Title:  strings.TrimSpace(declared.Title),
		Artist: strings.TrimSpace(declared.Artist),
		Album:  strings.TrimSpace(declared.Album),
		Genre:  strings.TrimSpace(declared.Genre),
		Year:   declared.Year,
		Format: FormatFromExtension(filename),
	}

	tags, err := ExtractTags(data)
	if err != nil {
		logger.Debug("no embedded tags", logger.String("file", filename), logger.Err(err))
		tags = &TrackTags{}
	}

	if out.Title == "" {
		out.Title = tags.Title
	}
	if out.Artist == "" {
		out.Artist = tags.Artist
	}
	if out.Album == "" {
		out.Album = tags.Album
	}
	if out.Genre == "" {
		out.Genre = tags.Genre
	}
	if out.Year == 0 {
		out.Year = tags.Year
	}
	out.Picture = tags.Picture

	if out.Title == "" || out.Artist == "" {
		artist, title := DeriveFromFilename(filepath.Base(filename))
		if out.Title == "" {
			out.Title = title
		}
		if out.Artist == "" {
			out.Artist = artist
		}
	}

	if out.Artist == "" {
		out.Artist = UnknownArtist
	}

	ext := filepath.Ext(filename)
	if tech, err := ExtractTechnicalInfo(data, ext); err == nil {
		out.DurationSeconds = tech.DurationSeconds
		out.BitrateKbps = tech.BitrateKbps
	} else {
		logger.Debug("technical probe unavailable", logger.String("file", filename), logger.Err(err))
	}

	return out
}
