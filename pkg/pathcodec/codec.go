// Package pathcodec converts between point lists and the straight-line subset
// of SVG path data used for annotation geometry.
package pathcodec

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/menta2k/image-annotator/pkg/types"
)

const (
	moveMarker  = "M"
	closeMarker = "Z"
)

// PointsToPath renders points as "M x0,y0 x1,y1 ... Z". The first pair is
// the move-to, every following pair is an implicit line-to.
func PointsToPath(points []types.Point) string {
	if len(points) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(moveMarker)
	for _, p := range points {
		sb.WriteByte(' ')
		sb.WriteString(formatNumber(p.X))
		sb.WriteByte(',')
		sb.WriteString(formatNumber(p.Y))
	}
	sb.WriteByte(' ')
	sb.WriteString(closeMarker)
	return sb.String()
}

// PathToPoints is the inverse of PointsToPath. Tokens that do not split into
// at least two finite numeric comma-separated parts are skipped.
func PathToPoints(d string) []types.Point {
	d = strings.TrimSpace(d)
	d = strings.TrimPrefix(d, moveMarker)
	d = strings.TrimPrefix(d, "m")
	d = strings.TrimSuffix(d, closeMarker)
	d = strings.TrimSuffix(d, "z")

	var points []types.Point
	for _, tok := range strings.Fields(d) {
		parts := strings.Split(tok, ",")
		if len(parts) < 2 {
			continue
		}
		x, ok := parseCoord(parts[0])
		if !ok {
			continue
		}
		y, ok := parseCoord(parts[1])
		if !ok {
			continue
		}
		points = append(points, types.Point{X: x, Y: y})
	}
	return points
}

// Vertices returns the polygon vertices of d. Both the comma-token form
// produced by PointsToPath and command-style data such as "M10 10v20h30Z"
// or "M10,10 L20,20 L30,10 Z" are accepted; whichever reading yields more
// vertices wins.
func Vertices(d string) []types.Point {
	pts := PathToPoints(d)
	parsed, err := Parse(d)
	if err == nil && len(parsed) > len(pts) {
		return parsed
	}
	return pts
}

// Bounds returns the axis-aligned bounding box of points
func Bounds(points []types.Point) (min, max types.Point, ok bool) {
	if len(points) == 0 {
		return types.Point{}, types.Point{}, false
	}
	min, max = points[0], points[0]
	for _, p := range points[1:] {
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
	}
	return min, max, true
}

// Area returns the unsigned shoelace area of the closed polygon
func Area(points []types.Point) float64 {
	if len(points) < types.MinPolygonPoints {
		return 0
	}
	var sum float64
	for i := range points {
		j := (i + 1) % len(points)
		sum += points[i].X*points[j].Y - points[j].X*points[i].Y
	}
	return math.Abs(sum) / 2
}

func parseCoord(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// errorf keeps parse errors uniformly prefixed
func errorf(format string, args ...any) error {
	return fmt.Errorf("pathcodec: "+format, args...)
}
