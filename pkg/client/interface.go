package client

import (
	"context"

	"github.com/menta2k/image-annotator/pkg/types"
)

// VisionClient is a multimodal model backend
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	DetectOutlines(ctx context.Context, model, prompt, imgB64 string) (*types.OutlineResult, error)
}

// Request is one image submitted for outline inference
type Request struct {
	Image    []byte
	Filename string
	MimeType string
	// Width and Height are the natural image size when already known
	Width  int
	Height int
}

// OutlineClient turns an image into an outline document: an svg root with
// one labeled path per detected object.
type OutlineClient interface {
	Outline(ctx context.Context, req Request) (string, error)
}

// OutlineFunc adapts a plain function to OutlineClient
type OutlineFunc func(ctx context.Context, req Request) (string, error)

// Outline calls f
func (f OutlineFunc) Outline(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
