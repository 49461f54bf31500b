package metadata

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
)

// Validation error codes returned to clients
const (
	ErrCodeUnsupportedFileType = "unsupported_file_type"
	ErrCodeFileTooLarge        = "file_too_large"
	ErrCodeInvalidAudioFile    = "invalid_audio_file"
	ErrCodeMissingTitle        = "missing_title"
	ErrCodeMissingArtist       = "missing_artist"
)

// ValidationResult describes the outcome of upfront audio file validation.
// Validation happens before any store write so invalid input has no side
// effects.
type ValidationResult struct {
	Valid         bool   `json:"valid"`
	Error         string `json:"error,omitempty"`
	ErrorCode     string `json:"error_code,omitempty"`
	FileExtension string `json:"file_extension,omitempty"`
	DetectedType  string `json:"detected_type,omitempty"`
	FileSizeBytes int64  `json:"file_size_bytes"`
}

// audioMagicNumbers maps known leading byte signatures to the container
// they identify. MP4/M4A is handled separately because its signature sits
// at offset 4.
var audioMagicNumbers = map[string][]byte{
	"mp3-id3": []byte("ID3"),
	"flac":    []byte("fLaC"),
	"ogg":     []byte("OggS"),
	"wav":     []byte("RIFF"),
	"aiff":    []byte("FORM"),
}

// ValidateAudioFile checks the declared filename and raw bytes against the
// extension allow-list, the size ceiling, and known audio magic numbers.
func ValidateAudioFile(filename string, data []byte, maxSize int64) ValidationResult {
	result := ValidationResult{
		FileExtension: strings.ToLower(filepath.Ext(filename)),
		FileSizeBytes: int64(len(data)),
	}

	if !AudioFileExtensions[result.FileExtension] {
		result.Error = fmt.Sprintf("Unsupported file type. Supported extensions: %s",
			strings.Join(supportedExtensions(), ", "))
		result.ErrorCode = ErrCodeUnsupportedFileType
		result.DetectedType = http.DetectContentType(sniffPrefix(data))
		return result
	}

	if int64(len(data)) > maxSize {
		result.Error = fmt.Sprintf("File too large. Maximum size is %dMB", maxSize/(1024*1024))
		result.ErrorCode = ErrCodeFileTooLarge
		return result
	}

	if len(data) == 0 || !hasAudioSignature(data) {
		result.Error = "File does not look like a supported audio container"
		result.ErrorCode = ErrCodeInvalidAudioFile
		result.DetectedType = http.DetectContentType(sniffPrefix(data))
		return result
	}

	result.Valid = true
	result.DetectedType = http.DetectContentType(sniffPrefix(data))
	return result
}

// hasAudioSignature checks the magic bytes of known audio containers.
// Raw MPEG frames without an ID3 header start with a 0xFF sync word.
func hasAudioSignature(data []byte) bool {
	for _, magic := range audioMagicNumbers {
		if bytes.HasPrefix(data, magic) {
			return true
		}
	}

	// MP4/M4A: "ftyp" at offset 4
	if len(data) >= 8 && bytes.Equal(data[4:8], []byte("ftyp")) {
		return true
	}

	// Bare MPEG audio frame sync (11 set bits)
	if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 {
		return true
	}

	return false
}

func sniffPrefix(data []byte) []byte {
	if len(data) > 512 {
		return data[:512]
	}
	return data
}

func supportedExtensions() []string {
	exts := make([]string, 0, len(AudioFileExtensions))
	for ext := range AudioFileExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
