package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-annotator/pkg/extractor"
	"github.com/menta2k/image-annotator/pkg/svgdoc"
	"github.com/menta2k/image-annotator/pkg/types"
)

var size = types.Size{Width: 2190, Height: 1230}

func fixtures() ([]types.Annotation, []types.ManualAnnotation) {
	anns := []types.Annotation{
		{Path: "M834.72 329.895v853.07h369.955v-853.07Z", Label: "person", Selected: true},
		{Path: "M 1,1 2,1 2,2 Z", Label: "bicycle", Selected: false},
		{Path: "M 5,5 6,5 6,6 Z", Label: "bag <small> & co", Selected: true},
	}
	manual := []types.ManualAnnotation{
		{Points: []types.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}, Label: "manual", Selected: true},
		{Points: []types.Point{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 1}}, Label: "manual", Selected: false},
	}
	return anns, manual
}

func TestSVGExportOnlySelected(t *testing.T) {
	anns, manual := fixtures()

	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, size, anns, manual))

	root, err := svgdoc.Parse(buf.Bytes())
	require.NoError(t, err)
	container, err := root.Container()
	require.NoError(t, err)

	w, _ := container.Attr("width")
	h, _ := container.Attr("height")
	assert.Equal(t, "2190", w)
	assert.Equal(t, "1230", h)

	paths := container.Elements("path")
	require.Len(t, paths, 3)
	for _, p := range paths {
		fill, _ := p.Attr("fill")
		stroke, _ := p.Attr("stroke")
		width, _ := p.Attr("stroke-width")
		assert.Equal(t, "none", fill)
		assert.Equal(t, "black", stroke)
		assert.Equal(t, "1", width)
	}

	d, _ := paths[2].Attr("d")
	assert.Equal(t, "M 0,0 10,0 10,10 Z", d)
}

func TestSVGExportReimports(t *testing.T) {
	anns, manual := fixtures()

	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, size, anns, manual))

	res := extractor.ExtractString(buf.String())
	assert.Equal(t, size, res.Size)
	require.Len(t, res.Annotations, 3)
	assert.Equal(t, "person", res.Annotations[0].Label)
	assert.Equal(t, anns[0].Path, res.Annotations[0].Path)
	assert.Equal(t, "bag <small> & co", res.Annotations[1].Label)
	assert.Equal(t, "manual", res.Annotations[2].Label)

	imported, err := extractor.ExtractDataURL(extractor.EncodeDataURL(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, res, imported)
}

func TestJSONExportOnlySelected(t *testing.T) {
	anns, manual := fixtures()
	doc := JSON(size, anns, manual)

	assert.Equal(t, 2190, doc.Width)
	assert.Equal(t, 1230, doc.Height)
	require.Len(t, doc.Objects, 3)

	assert.Equal(t, "person", doc.Objects[0].ObjectClass)
	assert.Equal(t, [][2]float64{
		{834.72, 329.895},
		{834.72, 1182.965},
		{1204.675, 1182.965},
		{1204.675, 329.895},
	}, roundAll(doc.Objects[0].Points))

	assert.Equal(t, [][2]float64{{5, 5}, {6, 5}, {6, 6}}, doc.Objects[1].Points)
	assert.Equal(t, "manual", doc.Objects[2].ObjectClass)
	assert.Equal(t, [][2]float64{{0, 0}, {10, 0}, {10, 10}}, doc.Objects[2].Points)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, size, nil, nil))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, float64(2190), decoded["width"])
	assert.Equal(t, []any{}, decoded["objects"])

	anns, manual := fixtures()
	buf.Reset()
	require.NoError(t, WriteJSON(&buf, size, anns, manual))
	assert.Contains(t, buf.String(), `"object_class": "person"`)
	assert.NotContains(t, buf.String(), "bicycle")
}

func TestWriteJSONSkipsNonFiniteCoordinates(t *testing.T) {
	res := extractor.ExtractString(`<svg width="10" height="10"><path d="M 1,2 NaN,3 4,5 Inf,1 6,7 Z"><desc>box</desc></path></svg>`)
	require.Len(t, res.Annotations, 1)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, res.Size, res.Annotations, nil))

	var doc types.JSONAnnotation
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Objects, 1)
	assert.Equal(t, [][2]float64{{1, 2}, {4, 5}, {6, 7}}, doc.Objects[0].Points)
}

func TestSVGWriteError(t *testing.T) {
	anns, manual := fixtures()
	err := SVG(failingWriter{}, size, anns, manual)
	assert.Error(t, err)
}

func TestDecodeDataURL(t *testing.T) {
	doc, err := DecodeDataURL(extractor.EncodeDataURL("<svg/>"))
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", doc)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func roundAll(points [][2]float64) [][2]float64 {
	out := make([][2]float64, len(points))
	for i, p := range points {
		out[i] = [2]float64{round3(p[0]), round3(p[1])}
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
