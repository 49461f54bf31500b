// Package coverart resolves cover images for uploaded tracks, from the
// client, the audio container, or an AI generation job.
package coverart

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/chai2010/webp"
)

// ImageProcessor normalizes cover images to JPEG for consistent serving and
// embedding.
type ImageProcessor struct {
	quality int
}

func NewImageProcessor() *ImageProcessor {
	return &ImageProcessor{quality: 90}
}

// SupportedImageType reports whether the MIME type can be decoded.
func SupportedImageType(mimeType string) bool {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg", "image/png", "image/webp":
		return true
	}
	return false
}

// ToJPEG converts image bytes of any supported format to JPEG. JPEG input
// passes through untouched.
func (ip *ImageProcessor) ToJPEG(data []byte, mimeType string) ([]byte, error) {
	mt := strings.ToLower(mimeType)
	if mt == "image/jpeg" || mt == "image/jpg" {
		return data, nil
	}

	img, err := ip.decodeImage(data, mt)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: ip.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func (ip *ImageProcessor) decodeImage(data []byte, mimeType string) (image.Image, error) {
	reader := bytes.NewReader(data)
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return jpeg.Decode(reader)
	case "image/png":
		return png.Decode(reader)
	case "image/webp":
		return webp.Decode(reader)
	default:
		// Sniff when the declared type is missing or unknown
		img, _, err := image.Decode(reader)
		if err != nil {
			return nil, fmt.Errorf("unsupported image type %s: %w", mimeType, err)
		}
		return img, nil
	}
}

// Dimensions reports the pixel size of image bytes.
func (ip *ImageProcessor) Dimensions(data []byte, mimeType string) (int, int, error) {
	img, err := ip.decodeImage(data, strings.ToLower(mimeType))
	if err != nil {
		return 0, 0, err
	}
	bounds := img.Bounds()
	return bounds.Dx(), bounds.Dy(), nil
}
