package processing

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/vector"

	"github.com/menta2k/image-annotator/pkg/palette"
	"github.com/menta2k/image-annotator/pkg/pathcodec"
	"github.com/menta2k/image-annotator/pkg/types"
)

const fillAlpha = 0x40

// DrawOverlay renders the selected annotations on top of img. With
// showImageUnder false the outlines are drawn on a white canvas of the same
// size instead.
func (p *Processor) DrawOverlay(img image.Image, anns []types.Annotation, manual []types.ManualAnnotation, showImageUnder bool) *image.NRGBA {
	b := img.Bounds()
	var dst *image.NRGBA
	if showImageUnder {
		dst = imaging.Clone(img)
	} else {
		dst = imaging.New(b.Dx(), b.Dy(), color.White)
	}

	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	stroke := math.Max(2, 0.003*float64(minInt(w, h)))

	idx := 0
	for _, a := range anns {
		if !a.Selected {
			continue
		}
		drawPolygon(dst, pathcodec.Vertices(a.Path), shapeColor(a.Color, idx), stroke)
		idx++
	}
	for _, m := range manual {
		if !m.Selected {
			continue
		}
		drawPolygon(dst, m.Points, shapeColor(m.Color, idx), stroke)
		idx++
	}
	return dst
}

func shapeColor(hex string, idx int) color.NRGBA {
	c, err := palette.ParseHex(hex)
	if err != nil {
		c, _ = palette.ParseHex(palette.At(idx))
	}
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

func drawPolygon(dst *image.NRGBA, pts []types.Point, c color.NRGBA, stroke float64) {
	if len(pts) < types.MinPolygonPoints {
		return
	}

	fill := c
	fill.A = fillAlpha
	fillPath(dst, pts, fill)

	for i := range pts {
		drawSegment(dst, pts[i], pts[(i+1)%len(pts)], c, stroke)
	}
}

func fillPath(dst *image.NRGBA, pts []types.Point, c color.NRGBA) {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	z.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, pt := range pts[1:] {
		z.LineTo(float32(pt.X), float32(pt.Y))
	}
	z.ClosePath()
	z.Draw(dst, b, image.NewUniform(c), image.Point{})
}

// drawSegment fills the quad of width stroke centred on a-b
func drawSegment(dst *image.NRGBA, a, b types.Point, c color.NRGBA, stroke float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	nx, ny := -dy/length*stroke/2, dx/length*stroke/2

	fillPath(dst, []types.Point{
		{X: a.X + nx, Y: a.Y + ny},
		{X: b.X + nx, Y: b.Y + ny},
		{X: b.X - nx, Y: b.Y - ny},
		{X: a.X - nx, Y: a.Y - ny},
	}, c)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
