// Package analyzer validates uploaded images before they are annotated.
package analyzer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"

	"github.com/chai2010/webp"
	_ "golang.org/x/image/webp"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTooSmall          = errors.New("image too small")
	ErrTooLarge          = errors.New("upload too large")
)

// ImageAnalyzer checks uploads against format and size limits
type ImageAnalyzer struct {
	config Config
}

// Config holds configuration for the image analyzer
type Config struct {
	SupportedFormats []string `json:"supported_formats"`
	MinImageSize     int      `json:"min_image_size"`
	MaxUploadBytes   int64    `json:"max_upload_bytes"`
}

// DefaultConfig returns the stock limits
func DefaultConfig() Config {
	return Config{
		SupportedFormats: []string{"jpg", "jpeg", "png", "webp", "gif"},
		MinImageSize:     16,
		MaxUploadBytes:   32 << 20,
	}
}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return &ImageAnalyzer{config: DefaultConfig()}
}

// NewWithConfig creates a new ImageAnalyzer with custom configuration
func NewWithConfig(config Config) *ImageAnalyzer {
	return &ImageAnalyzer{config: config}
}

// Config returns the active limits
func (a *ImageAnalyzer) Config() Config {
	return a.config
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Format      string  `json:"format"`
	MimeType    string  `json:"mime_type"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
	Area        int     `json:"area"`
	Bytes       int     `json:"bytes"`
}

// Inspect validates encoded image bytes and returns their metadata
func (a *ImageAnalyzer) Inspect(data []byte) (ImageInfo, error) {
	if a.config.MaxUploadBytes > 0 && int64(len(data)) > a.config.MaxUploadBytes {
		return ImageInfo{}, fmt.Errorf("%w: %d bytes (maximum: %d)", ErrTooLarge, len(data), a.config.MaxUploadBytes)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if wcfg, werr := webp.DecodeConfig(bytes.NewReader(data)); werr == nil {
			cfg, format, err = wcfg, "webp", nil
		}
	}
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to decode image: %w", err)
	}

	if !a.isFormatSupported(format) {
		return ImageInfo{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	info := infoFor(cfg.Width, cfg.Height)
	info.Format = format
	info.MimeType = http.DetectContentType(data)
	info.Bytes = len(data)

	if err := a.validateSize(info.Width, info.Height); err != nil {
		return ImageInfo{}, err
	}
	return info, nil
}

// InspectReader reads an upload, enforcing the byte limit while reading
func (a *ImageAnalyzer) InspectReader(r io.Reader) ([]byte, ImageInfo, error) {
	if a.config.MaxUploadBytes > 0 {
		r = io.LimitReader(r, a.config.MaxUploadBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ImageInfo{}, fmt.Errorf("failed to read upload: %w", err)
	}
	info, err := a.Inspect(data)
	if err != nil {
		return nil, ImageInfo{}, err
	}
	return data, info, nil
}

// GetImageInfo returns basic information about a decoded image
func (a *ImageAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	return infoFor(bounds.Dx(), bounds.Dy())
}

// ValidateImage checks if an image meets minimum requirements
func (a *ImageAnalyzer) ValidateImage(img image.Image) error {
	bounds := img.Bounds()
	return a.validateSize(bounds.Dx(), bounds.Dy())
}

func (a *ImageAnalyzer) validateSize(w, h int) error {
	if w < a.config.MinImageSize || h < a.config.MinImageSize {
		return fmt.Errorf("%w: %dx%d (minimum: %d)", ErrTooSmall, w, h, a.config.MinImageSize)
	}
	return nil
}

func (a *ImageAnalyzer) isFormatSupported(format string) bool {
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

func infoFor(w, h int) ImageInfo {
	info := ImageInfo{Width: w, Height: h, Area: w * h}
	if h > 0 {
		info.AspectRatio = float64(w) / float64(h)
	}
	return info
}
