package types

// Point is a coordinate pair in content (natural image pixel) space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size holds the natural pixel dimensions of an image
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether either dimension is unset
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Area returns width * height
func (s Size) Area() int {
	return s.Width * s.Height
}

// Annotation is a server-derived labeled outline. Its geometry is kept as
// path data exactly as received.
type Annotation struct {
	Path     string `json:"path"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
	Color    string `json:"color"`
}

// ManualAnnotation is a user-drawn polygon. Its geometry is a raw point list
// because it grows point by point while the user drags.
type ManualAnnotation struct {
	Points   []Point `json:"points"`
	Label    string  `json:"label"`
	Selected bool    `json:"selected"`
	Color    string  `json:"color"`
}

// MinPolygonPoints is the smallest number of points forming a closed polygon
const MinPolygonPoints = 3

// Valid reports whether the polygon has enough points to be kept
func (m ManualAnnotation) Valid() bool {
	return len(m.Points) >= MinPolygonPoints
}

// Clone returns a copy that does not share the point slice
func (m ManualAnnotation) Clone() ManualAnnotation {
	out := m
	out.Points = append([]Point(nil), m.Points...)
	return out
}

// Options are the UI mode flags
type Options struct {
	ShowImageUnder bool `json:"show_image_under"`
	EditMode       bool `json:"edit_mode"`
}

// DefaultOptions returns the flags a fresh session starts with
func DefaultOptions() Options {
	return Options{ShowImageUnder: true, EditMode: false}
}

// JSONAnnotation is the JSON export document
type JSONAnnotation struct {
	Width   int          `json:"width"`
	Height  int          `json:"height"`
	Objects []JSONObject `json:"objects"`
}

// JSONObject is one exported polygon
type JSONObject struct {
	ObjectClass string       `json:"object_class"`
	Points      [][2]float64 `json:"points"`
}

// Polygon is a labeled outline returned by a vision model. Coordinates are
// normalized to [0,1] relative to the image size.
type Polygon struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	Points     [][]float64 `json:"points"`
}

// OutlineResult is the parsed vision model answer
type OutlineResult struct {
	Objects     []Polygon `json:"objects"`
	Description string    `json:"description"`
}
