// Package viewport computes how annotation content is scaled into a
// resizable container.
package viewport

import (
	"fmt"
	"math"

	"github.com/menta2k/image-annotator/pkg/types"
)

const (
	// DefaultMobileBreakpoint is the viewport width below which content is
	// scaled to cover the container.
	DefaultMobileBreakpoint = 768
	// DefaultMaxCanvasArea caps the rendered surface in pixels.
	DefaultMaxCanvasArea = 1677721
	// TransformOrigin is fixed for every layout
	TransformOrigin = "left top"
)

// Policy names the rule used to pick the scale factor
type Policy string

const (
	PolicyContain  Policy = "contain"
	PolicyCover    Policy = "cover"
	PolicyFitWidth Policy = "fit-width"
)

// Config holds the scaler limits
type Config struct {
	MobileBreakpoint float64 `json:"mobile_breakpoint"`
	MaxCanvasArea    float64 `json:"max_canvas_area"`
}

// DefaultConfig returns the stock limits
func DefaultConfig() Config {
	return Config{
		MobileBreakpoint: DefaultMobileBreakpoint,
		MaxCanvasArea:    DefaultMaxCanvasArea,
	}
}

// Box is a width/height pair in logical pixels
type Box struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CanvasDims is the area-capped render surface for some content
type CanvasDims struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale"`
}

// Layout is the result of a fit computation
type Layout struct {
	Scale           float64    `json:"scale"`
	Policy          Policy     `json:"policy"`
	Transform       string     `json:"transform"`
	TransformOrigin string     `json:"transform_origin"`
	Box             Box        `json:"box"`
	ScaledWidth     float64    `json:"scaled_width"`
	ScaledHeight    float64    `json:"scaled_height"`
	ContainerWidth  float64    `json:"container_width"`
	ContainerHeight float64    `json:"container_height"`
	Canvas          CanvasDims `json:"canvas"`
}

// InitialInput describes the first fit of some content
type InitialInput struct {
	Content types.Size
	// Container is the measured container box; nil falls back to the
	// content size.
	Container *Box
	// ViewportWidth selects the narrow policy when below the mobile
	// breakpoint; zero means unknown and is treated as wide.
	ViewportWidth float64
	FitToWidth    bool
}

// Scaler computes layouts
type Scaler struct {
	config Config
}

// New creates a Scaler with default limits
func New() *Scaler {
	return &Scaler{config: DefaultConfig()}
}

// NewWithConfig creates a Scaler with custom limits
func NewWithConfig(config Config) *Scaler {
	if config.MobileBreakpoint <= 0 {
		config.MobileBreakpoint = DefaultMobileBreakpoint
	}
	if config.MaxCanvasArea <= 0 {
		config.MaxCanvasArea = DefaultMaxCanvasArea
	}
	return &Scaler{config: config}
}

// Config returns the active limits
func (s *Scaler) Config() Config {
	return s.config
}

// AreaScale returns the pre-scale factor that keeps w*h under the area cap
func (s *Scaler) AreaScale(w, h int) float64 {
	area := float64(w) * float64(h)
	if area <= s.config.MaxCanvasArea || area <= 0 {
		return 1
	}
	return math.Sqrt(s.config.MaxCanvasArea / area)
}

// CanvasDimensions returns the area-capped surface for content of size
func (s *Scaler) CanvasDimensions(size types.Size) CanvasDims {
	scale := s.AreaScale(size.Width, size.Height)
	return CanvasDims{
		Width:  int(math.Floor(float64(size.Width) * scale)),
		Height: int(math.Floor(float64(size.Height) * scale)),
		Scale:  scale,
	}
}

// Initial fits content into its container for the first render. Narrow
// viewports cover the container, otherwise FitToWidth uses the horizontal
// ratio alone and the default is contain.
func (s *Scaler) Initial(in InitialInput) Layout {
	canvas := s.CanvasDimensions(in.Content)
	w, h := float64(canvas.Width), float64(canvas.Height)

	container := Box{Width: w, Height: h}
	if in.Container != nil {
		container = *in.Container
	}

	xScale, yScale := ratios(w, h, container)

	var (
		scale  float64
		policy Policy
	)
	switch {
	case in.ViewportWidth > 0 && in.ViewportWidth < s.config.MobileBreakpoint:
		scale, policy = math.Max(xScale, yScale), PolicyCover
	case in.FitToWidth:
		scale, policy = xScale, PolicyFitWidth
	default:
		scale, policy = math.Min(xScale, yScale), PolicyContain
	}

	return buildLayout(canvas, container, scale, policy)
}

// Resize recomputes the layout for a newly observed container box. Resizes
// always use the contain policy.
func (s *Scaler) Resize(content types.Size, container Box) Layout {
	canvas := s.CanvasDimensions(content)
	xScale, yScale := ratios(float64(canvas.Width), float64(canvas.Height), container)
	return buildLayout(canvas, container, math.Min(xScale, yScale), PolicyContain)
}

func ratios(w, h float64, container Box) (float64, float64) {
	xScale, yScale := 1.0, 1.0
	if w > 0 {
		xScale = container.Width / w
	}
	if h > 0 {
		yScale = container.Height / h
	}
	return xScale, yScale
}

func buildLayout(canvas CanvasDims, container Box, scale float64, policy Policy) Layout {
	scaledWidth := scale * float64(canvas.Width)
	scaledHeight := scale * float64(canvas.Height)
	return Layout{
		Scale:           scale,
		Policy:          policy,
		Transform:       fmt.Sprintf("scale(%g)", scale),
		TransformOrigin: TransformOrigin,
		Box:             Box{Width: scaledWidth, Height: scaledHeight},
		ScaledWidth:     scaledWidth,
		ScaledHeight:    scaledHeight,
		ContainerWidth:  container.Width,
		ContainerHeight: container.Height,
		Canvas:          canvas,
	}
}

// StageTransform maps content space onto the scaled stage: the area
// pre-scale followed by the fit scale, anchored at the top-left corner.
func (l Layout) StageTransform() Transform {
	s := l.Canvas.Scale * l.Scale
	if l.Canvas.Scale == 0 {
		s = l.Scale
	}
	return Transform{ScaleX: s, ScaleY: s}
}
