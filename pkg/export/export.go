// Package export writes selected annotations as standalone SVG or JSON
// documents.
package export

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"

	svg "github.com/ajstarks/svgo"

	"github.com/menta2k/image-annotator/pkg/extractor"
	"github.com/menta2k/image-annotator/pkg/pathcodec"
	"github.com/menta2k/image-annotator/pkg/types"
)

const pathStyle = `fill="none" stroke="black" stroke-width="1"`

// Shape is one exported outline with its geometry as path data
type Shape struct {
	Path  string
	Label string
}

// Selected returns the selected annotations as shapes, server annotations
// first and then manual ones.
func Selected(anns []types.Annotation, manual []types.ManualAnnotation) []Shape {
	shapes := make([]Shape, 0, len(anns)+len(manual))
	for _, a := range anns {
		if a.Selected {
			shapes = append(shapes, Shape{Path: a.Path, Label: a.Label})
		}
	}
	for _, m := range manual {
		if m.Selected {
			shapes = append(shapes, Shape{Path: pathcodec.PointsToPath(m.Points), Label: m.Label})
		}
	}
	return shapes
}

// SVG writes a standalone document sized to the content with one path per
// selected annotation.
func SVG(w io.Writer, size types.Size, anns []types.Annotation, manual []types.ManualAnnotation) error {
	ew := &errWriter{w: w}
	canvas := svg.New(ew)
	canvas.Start(size.Width, size.Height)

	for _, shape := range Selected(anns, manual) {
		io.WriteString(ew, `<path d="`)
		xml.EscapeText(ew, []byte(shape.Path))
		io.WriteString(ew, `" `+pathStyle+">\n")
		canvas.Desc(shape.Label)
		io.WriteString(ew, "</path>\n")
	}

	canvas.End()
	if ew.err != nil {
		return fmt.Errorf("write svg export: %w", ew.err)
	}
	return nil
}

// JSON builds the JSON export document
func JSON(size types.Size, anns []types.Annotation, manual []types.ManualAnnotation) types.JSONAnnotation {
	doc := types.JSONAnnotation{
		Width:   size.Width,
		Height:  size.Height,
		Objects: []types.JSONObject{},
	}
	for _, shape := range Selected(anns, manual) {
		vertices := pathcodec.Vertices(shape.Path)
		points := make([][2]float64, 0, len(vertices))
		for _, p := range vertices {
			points = append(points, [2]float64{p.X, p.Y})
		}
		doc.Objects = append(doc.Objects, types.JSONObject{
			ObjectClass: shape.Label,
			Points:      points,
		})
	}
	return doc
}

// WriteJSON writes the indented JSON export document to w
func WriteJSON(w io.Writer, size types.Size, anns []types.Annotation, manual []types.ManualAnnotation) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(JSON(size, anns, manual)); err != nil {
		return fmt.Errorf("write json export: %w", err)
	}
	return nil
}

// DecodeDataURL unwraps an outline import file
func DecodeDataURL(s string) (string, error) {
	return extractor.DecodeDataURL(s)
}

// errWriter keeps the first write error so the svg canvas calls, which do
// not report errors, can be checked once at the end.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}
