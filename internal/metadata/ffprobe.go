package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FFprobe availability cache
var (
	ffprobeAvailable  *bool
	ffprobeCheckTime  time.Time
	ffprobeCheckMutex sync.RWMutex

	ffprobeCheckInterval = 5 * time.Minute
)

// ffprobeOutput represents the JSON output from ffprobe
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
}

type ffprobeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitRate    string `json:"bit_rate"`
}

// TechnicalInfo holds the audio stream properties the pipeline records:
// duration for the content fingerprint and bitrate for the quality field.
type TechnicalInfo struct {
	DurationSeconds int
	BitrateKbps     int
	SampleRate      int
	Channels        int
	Codec           string
}

// ExtractTechnicalInfo probes raw audio bytes with ffprobe. The bytes are
// spooled to a temporary file because ffprobe needs a seekable input for
// several container formats. A missing ffprobe binary or probe failure is
// non-fatal; callers fall back to zero values.
func ExtractTechnicalInfo(data []byte, ext string) (*TechnicalInfo, error) {
	if !IsFFProbeAvailable() {
		return nil, fmt.Errorf("ffprobe is not available")
	}

	tmp, err := os.CreateTemp("", "papzincrew-probe-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	tmp.Close()

	cmd := exec.Command("ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		tmp.Name())

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe command failed: %w", err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var audioStream *ffprobeStream
	for i := range probe.Streams {
		if probe.Streams[i].CodecType == "audio" {
			audioStream = &probe.Streams[i]
			break
		}
	}
	if audioStream == nil {
		return nil, fmt.Errorf("no audio stream found")
	}

	info := &TechnicalInfo{
		Channels: audioStream.Channels,
		Codec:    audioStream.CodecName,
	}

	if duration, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.DurationSeconds = int(duration)
	}

	// Prefer the stream bitrate over the container bitrate
	bitrate := audioStream.BitRate
	if bitrate == "" {
		bitrate = probe.Format.BitRate
	}
	if b, err := strconv.Atoi(bitrate); err == nil {
		info.BitrateKbps = b / 1000
	}

	if sr, err := strconv.Atoi(audioStream.SampleRate); err == nil {
		info.SampleRate = sr
	}

	return info, nil
}

// IsFFProbeAvailable checks if ffprobe is available on the system, caching
// the answer for a few minutes.
func IsFFProbeAvailable() bool {
	ffprobeCheckMutex.RLock()
	if ffprobeAvailable != nil && time.Since(ffprobeCheckTime) < ffprobeCheckInterval {
		result := *ffprobeAvailable
		ffprobeCheckMutex.RUnlock()
		return result
	}
	ffprobeCheckMutex.RUnlock()

	ffprobeCheckMutex.Lock()
	defer ffprobeCheckMutex.Unlock()

	// Double-check in case another goroutine refreshed the cache
	if ffprobeAvailable != nil && time.Since(ffprobeCheckTime) < ffprobeCheckInterval {
		return *ffprobeAvailable
	}

	err := exec.Command("ffprobe", "-version").Run()
	available := err == nil

	ffprobeAvailable = &available
	ffprobeCheckTime = time.Now()

	return available
}

// FormatFromExtension maps a file extension to the recorded audio format
func FormatFromExtension(filename string) string {
	if idx := strings.LastIndex(filename, "."); idx >= 0 && idx < len(filename)-1 {
		return strings.ToLower(filename[idx+1:])
	}
	return "unknown"
}
