// Package cropper cuts the region around each annotation out of its image.
package cropper

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-annotator/pkg/export"
	"github.com/menta2k/image-annotator/pkg/pathcodec"
	"github.com/menta2k/image-annotator/pkg/types"
)

// CropConfig holds configuration for annotation crops
type CropConfig struct {
	// PaddingRatio grows the box by this share of its longer side
	PaddingRatio float64
	// AspectRatio (width/height) the box is widened or heightened to; zero
	// keeps the polygon's own shape.
	AspectRatio float64
	// MinSize drops crops narrower or shorter than this many pixels
	MinSize int
}

// AspectRatio represents common aspect ratios
type AspectRatio struct {
	Width  int
	Height int
	Name   string
}

// Ratio returns width/height
func (a AspectRatio) Ratio() float64 {
	if a.Height == 0 {
		return 0
	}
	return float64(a.Width) / float64(a.Height)
}

// Common aspect ratios
var (
	Square     = AspectRatio{1, 1, "square"}
	Portrait   = AspectRatio{3, 4, "portrait"}
	Landscape  = AspectRatio{4, 3, "landscape"}
	Widescreen = AspectRatio{16, 9, "widescreen"}
)

// CommonAspectRatios returns a list of commonly used aspect ratios
func CommonAspectRatios() []AspectRatio {
	return []AspectRatio{Square, Portrait, Landscape, Widescreen}
}

// AnnotationCropper crops annotated regions
type AnnotationCropper struct {
	config CropConfig
}

// New creates a cropper with 10% padding and no aspect constraint
func New() *AnnotationCropper {
	return NewWithConfig(CropConfig{PaddingRatio: 0.1, MinSize: 4})
}

// NewWithConfig creates a cropper with custom configuration
func NewWithConfig(config CropConfig) *AnnotationCropper {
	return &AnnotationCropper{config: config}
}

// CropResult is the crop of one selected annotation
type CropResult struct {
	Index int
	Label string
	Rect  image.Rectangle
	Image image.Image
}

// Region returns the crop rectangle for a polygon inside bounds
func (c *AnnotationCropper) Region(points []types.Point, bounds image.Rectangle) (image.Rectangle, bool) {
	lo, hi, ok := pathcodec.Bounds(points)
	if !ok {
		return image.Rectangle{}, false
	}

	w, h := hi.X-lo.X, hi.Y-lo.Y
	pad := c.config.PaddingRatio * math.Max(w, h)
	x0, y0, x1, y1 := lo.X-pad, lo.Y-pad, hi.X+pad, hi.Y+pad

	if r := c.config.AspectRatio; r > 0 && y1 > y0 {
		cw, ch := x1-x0, y1-y0
		if cw/ch > r {
			grow := (cw/r - ch) / 2
			y0, y1 = y0-grow, y1+grow
		} else {
			grow := (ch*r - cw) / 2
			x0, x1 = x0-grow, x1+grow
		}
	}

	rect := image.Rect(
		int(math.Floor(x0)), int(math.Floor(y0)),
		int(math.Ceil(x1)), int(math.Ceil(y1)),
	).Intersect(bounds)

	if rect.Empty() || rect.Dx() < c.config.MinSize || rect.Dy() < c.config.MinSize {
		return image.Rectangle{}, false
	}
	return rect, true
}

// CropAnnotations crops every selected annotation, server outlines first.
// Indexes follow the export order.
func (c *AnnotationCropper) CropAnnotations(img image.Image, anns []types.Annotation, manual []types.ManualAnnotation) []CropResult {
	var out []CropResult
	for i, shape := range export.Selected(anns, manual) {
		rect, ok := c.Region(pathcodec.Vertices(shape.Path), img.Bounds())
		if !ok {
			continue
		}
		out = append(out, CropResult{
			Index: i,
			Label: shape.Label,
			Rect:  rect,
			Image: imaging.Crop(img, rect),
		})
	}
	return out
}
