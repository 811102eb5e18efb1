package viewport

import "github.com/menta2k/image-annotator/pkg/types"

// Transform is an axis-aligned scale followed by a translation:
// stage = content*scale + translate.
type Transform struct {
	ScaleX     float64 `json:"scale_x"`
	ScaleY     float64 `json:"scale_y"`
	TranslateX float64 `json:"translate_x"`
	TranslateY float64 `json:"translate_y"`
}

// Identity returns the no-op transform
func Identity() Transform {
	return Transform{ScaleX: 1, ScaleY: 1}
}

// Apply maps p through t
func (t Transform) Apply(p types.Point) types.Point {
	return types.Point{
		X: p.X*t.ScaleX + t.TranslateX,
		Y: p.Y*t.ScaleY + t.TranslateY,
	}
}

// Then returns the transform applying t first and next second
func (t Transform) Then(next Transform) Transform {
	return Transform{
		ScaleX:     t.ScaleX * next.ScaleX,
		ScaleY:     t.ScaleY * next.ScaleY,
		TranslateX: t.TranslateX*next.ScaleX + next.TranslateX,
		TranslateY: t.TranslateY*next.ScaleY + next.TranslateY,
	}
}

// Invert returns the inverse transform. A degenerate axis inverts to the
// identity on that axis.
func (t Transform) Invert() Transform {
	inv := Identity()
	if t.ScaleX != 0 {
		inv.ScaleX = 1 / t.ScaleX
		inv.TranslateX = -t.TranslateX / t.ScaleX
	}
	if t.ScaleY != 0 {
		inv.ScaleY = 1 / t.ScaleY
		inv.TranslateY = -t.TranslateY / t.ScaleY
	}
	return inv
}
