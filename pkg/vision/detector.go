// Package vision is an offline outline backend. It marks salient regions of
// an image with rectangles instead of asking a model.
package vision

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/detection"
	"github.com/menta2k/image-annotator/pkg/processing"
	"github.com/menta2k/image-annotator/pkg/types"
)

// Label is given to every region this backend reports
const Label = "salient"

// SubjectDetector finds salient regions in images
type SubjectDetector struct {
	config    DetectionConfig
	processor *processing.Processor
}

// DetectionConfig holds configuration for subject detection
type DetectionConfig struct {
	EdgeThreshold   float64 `json:"edge_threshold"`
	ContrastWeight  float64 `json:"contrast_weight"`
	ColorWeight     float64 `json:"color_weight"`
	MinSubjectRatio float64 `json:"min_subject_ratio"`
	// MaxRegions caps the number of reported regions
	MaxRegions int `json:"max_regions"`
	// AnalysisSize is the longest side the saliency map is computed at
	AnalysisSize int `json:"analysis_size"`
	// OverlapLimit is the IoU above which a weaker region is suppressed
	OverlapLimit float64 `json:"overlap_limit"`
}

// DefaultConfig returns the stock settings
func DefaultConfig() DetectionConfig {
	return DetectionConfig{
		EdgeThreshold:   0.01,
		ContrastWeight:  0.3,
		ColorWeight:     0.2,
		MinSubjectRatio: 0.05,
		MaxRegions:      10,
		AnalysisSize:    256,
		OverlapLimit:    0.3,
	}
}

// New creates a new SubjectDetector with default configuration
func New() *SubjectDetector {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new SubjectDetector with custom configuration
func NewWithConfig(config DetectionConfig) *SubjectDetector {
	def := DefaultConfig()
	if config.MaxRegions <= 0 {
		config.MaxRegions = def.MaxRegions
	}
	if config.AnalysisSize <= 0 {
		config.AnalysisSize = def.AnalysisSize
	}
	if config.OverlapLimit <= 0 {
		config.OverlapLimit = def.OverlapLimit
	}
	return &SubjectDetector{config: config, processor: processing.NewProcessor()}
}

// Region represents a rectangular region of interest
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Center returns the center point of the region
func (r Region) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// IoU returns the intersection over union of two regions
func (r Region) IoU(o Region) float64 {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.X+r.Width, o.X+o.Width), min(r.Y+r.Height, o.Y+o.Height)
	if x1 <= x0 || y1 <= y0 {
		return 0
	}
	inter := (x1 - x0) * (y1 - y0)
	union := r.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Polygon returns the corners of the region, clockwise from the top left
func (r Region) Polygon() []types.Point {
	x0, y0 := float64(r.X), float64(r.Y)
	x1, y1 := float64(r.X+r.Width), float64(r.Y+r.Height)
	return []types.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

// Outline implements client.OutlineClient
func (d *SubjectDetector) Outline(ctx context.Context, req client.Request) (string, error) {
	img, err := d.processor.Decode(req.Image)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	regions, err := d.DetectSubjects(img)
	if err != nil {
		return "", err
	}

	b := img.Bounds()
	size := types.Size{Width: b.Dx(), Height: b.Dy()}
	sx, sy := 1.0, 1.0
	if req.Width > 0 && req.Height > 0 {
		sx = float64(req.Width) / float64(size.Width)
		sy = float64(req.Height) / float64(size.Height)
		size = types.Size{Width: req.Width, Height: req.Height}
	}

	shapes := make([]types.ManualAnnotation, 0, len(regions))
	for _, r := range regions {
		pts := r.Polygon()
		for i := range pts {
			pts[i].X *= sx
			pts[i].Y *= sy
		}
		shapes = append(shapes, types.ManualAnnotation{Points: pts, Label: Label, Selected: true})
	}
	return detection.RenderSVG(size, shapes)
}

// DetectSubjects returns salient regions in image coordinates, strongest
// first, with overlapping weaker regions removed.
func (d *SubjectDetector) DetectSubjects(img image.Image) ([]Region, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("vision: empty image")
	}

	// work on a small copy, the map is O(pixels)
	small := img
	scale := 1.0
	if width > d.config.AnalysisSize || height > d.config.AnalysisSize {
		small = imaging.Fit(img, d.config.AnalysisSize, d.config.AnalysisSize, imaging.Box)
		scale = float64(width) / float64(small.Bounds().Dx())
	}
	sw, sh := small.Bounds().Dx(), small.Bounds().Dy()

	saliencyMap := d.calculateSaliencyMap(small)
	regions := d.findImportantRegions(saliencyMap, sw, sh)
	regions = d.filterAndScoreRegions(regions, sw, sh)
	regions = d.suppressOverlaps(regions)

	for i := range regions {
		regions[i] = scaleRegion(regions[i], scale, width, height)
	}
	return regions, nil
}

func (d *SubjectDetector) calculateSaliencyMap(img image.Image) [][]float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	saliencyMap := make([][]float64, height)
	for i := range saliencyMap {
		saliencyMap[i] = make([]float64, width)
	}

	neighbors := [][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			r1, g1, b1, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			// mean color distance to the 8 neighbours
			var edgeStrength float64
			for _, off := range neighbors {
				r2, g2, b2, _ := img.At(x+off[0]+bounds.Min.X, y+off[1]+bounds.Min.Y).RGBA()
				dr := float64(r1) - float64(r2)
				dg := float64(g1) - float64(g2)
				db := float64(b1) - float64(b2)
				edgeStrength += math.Sqrt(dr*dr + dg*dg + db*db)
			}
			edgeStrength /= 8.0 * 65535.0

			brightness := (float64(r1) + float64(g1) + float64(b1)) / (3.0 * 65535.0)

			saliencyMap[y][x] = d.config.ContrastWeight*edgeStrength + d.config.ColorWeight*brightness
		}
	}

	return saliencyMap
}

func (d *SubjectDetector) findImportantRegions(saliencyMap [][]float64, width, height int) []Region {
	var regions []Region

	windowSizes := []int{width / 12, width / 8, width / 6, width / 4, width / 3}

	for _, windowSize := range windowSizes {
		if windowSize < 8 || windowSize > height {
			continue
		}
		step := max(windowSize/4, 1)

		for y := 0; y <= height-windowSize; y += step {
			for x := 0; x <= width-windowSize; x += step {
				score := calculateRegionScore(saliencyMap, x, y, windowSize, windowSize)
				if score > d.config.EdgeThreshold {
					regions = append(regions, Region{X: x, Y: y, Width: windowSize, Height: windowSize, Score: score})
				}
			}
		}
	}

	return regions
}

func calculateRegionScore(saliencyMap [][]float64, x, y, width, height int) float64 {
	var total float64
	count := 0

	for ry := y; ry < y+height && ry < len(saliencyMap); ry++ {
		for rx := x; rx < x+width && rx < len(saliencyMap[ry]); rx++ {
			total += saliencyMap[ry][rx]
			count++
		}
	}

	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func (d *SubjectDetector) filterAndScoreRegions(regions []Region, imageWidth, imageHeight int) []Region {
	minArea := int(float64(imageWidth*imageHeight) * d.config.MinSubjectRatio)

	filtered := make([]Region, 0, len(regions))
	for _, region := range regions {
		if region.Area() >= minArea {
			filtered = append(filtered, region)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})
	return filtered
}

func (d *SubjectDetector) suppressOverlaps(regions []Region) []Region {
	kept := make([]Region, 0, d.config.MaxRegions)
	for _, r := range regions {
		overlaps := false
		for _, k := range kept {
			if r.IoU(k) > d.config.OverlapLimit {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}
		kept = append(kept, r)
		if len(kept) == d.config.MaxRegions {
			break
		}
	}
	return kept
}

func scaleRegion(r Region, scale float64, width, height int) Region {
	x0 := int(math.Round(float64(r.X) * scale))
	y0 := int(math.Round(float64(r.Y) * scale))
	x1 := min(int(math.Round(float64(r.X+r.Width)*scale)), width)
	y1 := min(int(math.Round(float64(r.Y+r.Height)*scale)), height)
	return Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0, Score: r.Score}
}
