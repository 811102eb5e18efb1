// Package palette assigns display colors to annotation labels.
package palette

import (
	"fmt"
	"image/color"
	"strconv"
	"sync"
)

var colors = []color.RGBA{
	{239, 68, 68, 255},  // red
	{59, 130, 246, 255}, // blue
	{34, 197, 94, 255},  // green
	{234, 179, 8, 255},  // yellow
	{168, 85, 247, 255}, // purple
	{249, 115, 22, 255}, // orange
	{6, 182, 212, 255},  // cyan
	{236, 72, 153, 255}, // pink
	{132, 204, 22, 255}, // lime
	{20, 184, 166, 255}, // teal
	{99, 102, 241, 255}, // indigo
	{244, 63, 94, 255},  // rose
	{245, 158, 11, 255}, // amber
	{16, 185, 129, 255}, // emerald
	{14, 165, 233, 255}, // sky
	{217, 70, 239, 255}, // fuchsia
}

// Len returns the number of palette entries
func Len() int { return len(colors) }

// Colors returns the palette as hex strings in assignment order
func Colors() []string {
	out := make([]string, len(colors))
	for i := range colors {
		out[i] = Hex(colors[i])
	}
	return out
}

// At returns the hex color at idx, wrapping around the palette
func At(idx int) string {
	n := len(colors)
	idx %= n
	if idx < 0 {
		idx += n
	}
	return Hex(colors[idx])
}

// Hex formats c as #rrggbb
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseHex parses #rrggbb or #rrggbbaa into a color
func ParseHex(s string) (color.RGBA, error) {
	if len(s) != 7 && len(s) != 9 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	if len(s) == 7 {
		return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// Assigner hands out one color per distinct label. The first occurrence of
// a label claims the next palette entry; later occurrences reuse it.
type Assigner struct {
	assigned map[string]string
	next     int
}

// NewAssigner creates an empty Assigner
func NewAssigner() *Assigner {
	return &Assigner{assigned: make(map[string]string)}
}

// ColorFor returns the color bound to label, binding one if needed
func (a *Assigner) ColorFor(label string) string {
	if c, ok := a.assigned[label]; ok {
		return c
	}
	c := At(a.next)
	a.next++
	a.assigned[label] = c
	return c
}

// Reset forgets all bindings
func (a *Assigner) Reset() {
	a.assigned = make(map[string]string)
	a.next = 0
}

// Cycler hands out colors in palette order for manually drawn polygons.
// It is safe for concurrent use.
type Cycler struct {
	mu   sync.Mutex
	next int
}

// NewCycler creates a Cycler starting at palette entry start
func NewCycler(start int) *Cycler {
	return &Cycler{next: start}
}

// Next returns the next color
func (c *Cycler) Next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	col := At(c.next)
	c.next++
	return col
}
