package metadata

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// UnknownArtist is the sentinel used when no artist can be resolved from
// tags, caller input, or the filename.
const UnknownArtist = "Unknown Artist"

var bracketedSegments = regexp.MustCompile(`[\(\[\{][^\)\]\}]*[\)\]\}]`)

// filenameSeparators are tried in order when splitting a filename into
// artist and title halves.
var filenameSeparators = []string{" - ", " – ", "_-_", "--"}

// Normalize lowercases, trims, strips bracketed segments, and applies
// Unicode NFKC folding. Both the duplicate detector and the filename
// deriver compare strings in this normalized form.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = bracketedSegments.ReplaceAllString(s, " ")
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// DeriveFromFilename extracts a best-effort artist and title from a raw
// upload filename: the extension is stripped, bracketed segments removed,
// and the remainder split on common separators. The artist is empty when
// the filename carries no separator.
func DeriveFromFilename(filename string) (artist, title string) {
	base := filename
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}

	base = norm.NFKC.String(base)
	base = bracketedSegments.ReplaceAllString(base, " ")
	base = strings.Join(strings.Fields(base), " ")

	for _, sep := range filenameSeparators {
		if idx := strings.Index(base, sep); idx > 0 {
			artist = strings.TrimSpace(base[:idx])
			title = strings.TrimSpace(base[idx+len(sep):])
			if title != "" {
				return artist, title
			}
		}
	}

	return "", strings.TrimSpace(base)
}
