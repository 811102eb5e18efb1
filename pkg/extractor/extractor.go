// Package extractor turns outline documents into annotations.
package extractor

import (
	"encoding/base64"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/menta2k/image-annotator/pkg/palette"
	"github.com/menta2k/image-annotator/pkg/svgdoc"
	"github.com/menta2k/image-annotator/pkg/types"
)

// DefaultLabel is used when a shape carries no readable description
const DefaultLabel = "unknown"

// SVGDataURLPrefix wraps base64 encoded outline import files
const SVGDataURLPrefix = "data:image/svg+xml;base64,"

// Result holds the annotations found in one document
type Result struct {
	Size        types.Size         `json:"size"`
	Annotations []types.Annotation `json:"annotations"`
}

// Extract converts a parsed document into annotations. A document that does
// not match the expected shape yields an empty result. Paths without
// geometry are skipped. Colors are assigned fresh for every call.
func Extract(root *svgdoc.Root) Result {
	container, err := root.Container()
	if err != nil {
		log.Printf("extractor: %v", err)
		return Result{Annotations: []types.Annotation{}}
	}

	res := Result{
		Size:        documentSize(container),
		Annotations: []types.Annotation{},
	}
	colors := palette.NewAssigner()

	for _, path := range container.Elements("path") {
		d, ok := path.Attr("d")
		if !ok || strings.TrimSpace(d) == "" {
			continue
		}
		label := labelOf(path)
		res.Annotations = append(res.Annotations, types.Annotation{
			Path:     d,
			Label:    label,
			Selected: true,
			Color:    colors.ColorFor(label),
		})
	}

	return res
}

// ExtractString parses and extracts in one step, failing soft on bad input
func ExtractString(doc string) Result {
	root, err := svgdoc.ParseString(doc)
	if err != nil {
		log.Printf("extractor: %v", err)
		return Result{Annotations: []types.Annotation{}}
	}
	return Extract(root)
}

// ExtractDataURL decodes a base64 SVG data URL and extracts it exactly like
// a server response.
func ExtractDataURL(dataURL string) (Result, error) {
	doc, err := DecodeDataURL(dataURL)
	if err != nil {
		return Result{Annotations: []types.Annotation{}}, err
	}
	return ExtractString(doc), nil
}

// DecodeDataURL strips the SVG data URL wrapper and decodes the payload
func DecodeDataURL(dataURL string) (string, error) {
	payload := strings.TrimSpace(dataURL)
	payload = strings.TrimPrefix(payload, SVGDataURLPrefix)

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("decode outline data url: %w", err)
	}
	return string(raw), nil
}

// EncodeDataURL wraps an SVG document as a base64 data URL
func EncodeDataURL(doc string) string {
	return SVGDataURLPrefix + base64.StdEncoding.EncodeToString([]byte(doc))
}

// labelOf reads <desc>label</desc> from the first child of a path
func labelOf(path *svgdoc.Element) string {
	desc, ok := path.FirstChild().(*svgdoc.Element)
	if !ok || desc.TagName != "desc" {
		return DefaultLabel
	}
	text, ok := desc.FirstChild().(*svgdoc.Text)
	if !ok || text.Value == "" {
		return DefaultLabel
	}
	return text.Value
}

func documentSize(container *svgdoc.Element) types.Size {
	return types.Size{
		Width:  dimension(container, "width"),
		Height: dimension(container, "height"),
	}
}

func dimension(el *svgdoc.Element, name string) int {
	v, ok := el.Attr(name)
	if !ok {
		return 0
	}
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(f)
}
