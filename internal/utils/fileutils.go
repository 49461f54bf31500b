package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// invalidFilenameChars are characters stripped from user-supplied filenames
// before they are used as storage keys or local paths.
const invalidFilenameChars = `\/*?:"<>|`

// SanitizeFilename removes characters that are unsafe in storage keys and
// local filesystem paths.
func SanitizeFilename(filename string) string {
	var b strings.Builder
	for _, r := range filename {
		if strings.ContainsRune(invalidFilenameChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// SplitExt splits a filename into its base name and extension.
func SplitExt(filename string) (base, ext string) {
	ext = filepath.Ext(filename)
	base = strings.TrimSuffix(filename, ext)
	return base, ext
}

// DisambiguateKey appends an incrementing counter to a storage key until
// taken reports it as free. Used when an upload is resubmitted with the
// duplicate override flag and the backend requires globally-unique keys.
// A safety limit prevents an unbounded loop on a pathological taken func.
func DisambiguateKey(key string, taken func(string) bool) string {
	if !taken(key) {
		return key
	}
	base, ext := SplitExt(key)
	for counter := 1; counter <= 1000; counter++ {
		candidate := fmt.Sprintf("%s_%d%s", base, counter, ext)
		if !taken(candidate) {
			return candidate
		}
	}
	return key
}

// EnsureDir creates the directory (and parents) if it does not exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
