package detection

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/export"
	"github.com/menta2k/image-annotator/pkg/extractor"
	"github.com/menta2k/image-annotator/pkg/processing"
	"github.com/menta2k/image-annotator/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks the model for labeled object outlines
const DefaultPrompt = `You are an object outliner.

Return JSON only:
{
  "objects": [
    {
      "label": "string",
      "confidence": 0.0,
      "points": [[0.0, 0.0], [0.0, 0.0], [0.0, 0.0]]
    }
  ],
  "description": "short neutral sentence (≤ 20 words)"
}

HARD RULES
- One entry per distinct object (people, vehicles, animals, bags, furniture...).
- "points" is a closed polygon tracing the object outline, at least 3 points, at most 24.
- All coordinates are normalized to [0,1] (NOT pixels), x to the right, y down.
- Labels: lowercase, singular, one or two words. Do not guess real identities.
- If nothing is found, return {"objects": [], "description": "no objects"}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Config controls how images are sent to the model
type Config struct {
	Model         string
	Prompt        string
	SendFormat    string
	SendMaxDim    int
	SendQuality   int
	MinConfidence float64
}

// DefaultConfig returns the stock detector settings
func DefaultConfig() Config {
	return Config{
		Prompt:      DefaultPrompt,
		SendFormat:  "jpg",
		SendMaxDim:  1024,
		SendQuality: 85,
	}
}

// Detector turns a vision model answer into an outline document
type Detector struct {
	client    client.VisionClient
	processor *processing.Processor
	config    Config
}

// NewDetector creates a new detector with a vision client
func NewDetector(c client.VisionClient, model string) *Detector {
	cfg := DefaultConfig()
	cfg.Model = model
	return NewDetectorWithConfig(c, cfg)
}

// NewDetectorWithConfig creates a detector with custom settings
func NewDetectorWithConfig(c client.VisionClient, cfg Config) *Detector {
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	return &Detector{
		client:    c,
		processor: processing.NewProcessor(),
		config:    cfg,
	}
}

// Outline implements client.OutlineClient
func (d *Detector) Outline(ctx context.Context, req client.Request) (string, error) {
	img, err := d.processor.Decode(req.Image)
	if err != nil {
		return "", err
	}

	size := types.Size{Width: req.Width, Height: req.Height}
	if size.Empty() {
		b := img.Bounds()
		size = types.Size{Width: b.Dx(), Height: b.Dy()}
	}

	imgB64, err := d.processor.PrepareImageForModel(img, d.config.SendFormat, d.config.SendMaxDim, d.config.SendQuality)
	if err != nil {
		return "", fmt.Errorf("failed to prepare image: %w", err)
	}

	result, err := d.DetectWithPrompt(ctx, imgB64, d.config.Prompt)
	if err != nil {
		return "", err
	}

	return RenderSVG(size, d.ToPixels(result.Objects, size))
}

// DetectWithPrompt asks the model for outlines with a custom prompt
func (d *Detector) DetectWithPrompt(ctx context.Context, imageB64, prompt string) (*types.OutlineResult, error) {
	result, err := d.client.DetectOutlines(ctx, d.config.Model, prompt, imageB64)
	if err != nil {
		return nil, err
	}

	objects := make([]types.Polygon, 0, len(result.Objects))
	for _, obj := range result.Objects {
		if obj.Confidence > 0 && obj.Confidence < d.config.MinConfidence {
			continue
		}
		obj.Label = normalizeLabel(obj.Label)
		objects = append(objects, obj)
	}
	result.Objects = objects
	return result, nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, imageB64 string) (string, error) {
	return d.client.SimpleQuery(ctx, d.config.Model, SimpleTestPrompt, imageB64)
}

// ToPixels converts model polygons to pixel-space annotations for size.
// Coordinates above 1 are taken as pixels already. Polygons with fewer
// than three usable points are dropped.
func (d *Detector) ToPixels(polygons []types.Polygon, size types.Size) []types.ManualAnnotation {
	fw, fh := float64(size.Width), float64(size.Height)

	out := make([]types.ManualAnnotation, 0, len(polygons))
	for _, poly := range polygons {
		pixels := isPixelPolygon(poly.Points)

		pts := make([]types.Point, 0, len(poly.Points))
		for _, p := range poly.Points {
			if len(p) < 2 || math.IsNaN(p[0]) || math.IsNaN(p[1]) {
				continue
			}
			x, y := p[0], p[1]
			if !pixels {
				x, y = x*fw, y*fh
			}
			pts = append(pts, types.Point{
				X: round2(clamp(x, 0, fw)),
				Y: round2(clamp(y, 0, fh)),
			})
		}

		m := types.ManualAnnotation{Points: pts, Label: poly.Label, Selected: true}
		if m.Valid() {
			out = append(out, m)
		}
	}
	return out
}

// RenderSVG writes polygons as an outline document of the given size
func RenderSVG(size types.Size, polygons []types.ManualAnnotation) (string, error) {
	var buf bytes.Buffer
	if err := export.SVG(&buf, size, nil, polygons); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func isPixelPolygon(points [][]float64) bool {
	for _, p := range points {
		for _, v := range p {
			if v > 1 {
				return true
			}
		}
	}
	return false
}

func normalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return extractor.DefaultLabel
	}
	return label
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
