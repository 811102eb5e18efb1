// Package probe measures the natural size of an image reference without
// decoding its pixels.
package probe

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/image-annotator/pkg/types"
)

// Prober resolves an image reference to its natural pixel size
type Prober interface {
	Probe(ctx context.Context, ref string) (types.Size, error)
}

// Func adapts a plain function to Prober
type Func func(ctx context.Context, ref string) (types.Size, error)

// Probe calls f
func (f Func) Probe(ctx context.Context, ref string) (types.Size, error) {
	return f(ctx, ref)
}

// ImageProber reads image headers from data URLs, http(s) URLs and local
// files.
type ImageProber struct {
	client   *http.Client
	maxBytes int64
}

// New creates an ImageProber with a 30 second download timeout
func New() *ImageProber {
	return &ImageProber{
		client:   &http.Client{Timeout: 30 * time.Second},
		maxBytes: 64 << 20,
	}
}

// NewWithClient creates an ImageProber that downloads through client
func NewWithClient(client *http.Client) *ImageProber {
	p := New()
	if client != nil {
		p.client = client
	}
	return p
}

// Probe returns the natural size of the image at ref
func (p *ImageProber) Probe(ctx context.Context, ref string) (types.Size, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return types.Size{}, fmt.Errorf("probe: empty image reference")
	}

	switch {
	case strings.HasPrefix(ref, "data:"):
		data, err := DecodeDataURL(ref)
		if err != nil {
			return types.Size{}, err
		}
		return DecodeSize(data)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return p.probeURL(ctx, ref)
	default:
		return p.probeFile(strings.TrimPrefix(ref, "file://"))
	}
}

func (p *ImageProber) probeURL(ctx context.Context, ref string) (types.Size, error) {
	if _, err := url.Parse(ref); err != nil {
		return types.Size{}, fmt.Errorf("probe: invalid URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return types.Size{}, fmt.Errorf("probe: failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Image-Annotator/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return types.Size{}, fmt.Errorf("probe: failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Size{}, fmt.Errorf("probe: failed to download image: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes))
	if err != nil {
		return types.Size{}, fmt.Errorf("probe: failed to read image data: %w", err)
	}
	return DecodeSize(data)
}

func (p *ImageProber) probeFile(path string) (types.Size, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Size{}, fmt.Errorf("probe: %w", err)
	}
	return DecodeSize(data)
}

// DecodeSize reads the dimensions from encoded image bytes
func DecodeSize(data []byte) (types.Size, error) {
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return sizeOf(cfg)
	}
	if cfg, err := webp.DecodeConfig(bytes.NewReader(data)); err == nil {
		return sizeOf(cfg)
	}
	return types.Size{}, fmt.Errorf("probe: unknown or unsupported image format")
}

func sizeOf(cfg image.Config) (types.Size, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return types.Size{}, fmt.Errorf("probe: image has no area (%dx%d)", cfg.Width, cfg.Height)
	}
	return types.Size{Width: cfg.Width, Height: cfg.Height}, nil
}

// DecodeDataURL returns the payload of a data URL. Base64 and percent
// encoded payloads are both accepted.
func DecodeDataURL(ref string) ([]byte, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return nil, fmt.Errorf("probe: not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("probe: data URL has no payload")
	}

	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("probe: decode data URL: %w", err)
		}
		return data, nil
	}

	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("probe: decode data URL: %w", err)
	}
	return []byte(s), nil
}

// EncodeDataURL wraps raw image bytes in a base64 data URL
func EncodeDataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
