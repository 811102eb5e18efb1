// Package imageannotator outlines objects in images and exports the labeled
// polygons as SVG or JSON.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		imageannotator "github.com/menta2k/image-annotator"
//		"github.com/menta2k/image-annotator/pkg/inference"
//	)
//
//	func main() {
//		a := imageannotator.New(inference.NewHTTPClient("http://localhost:8000", 0))
//
//		res, err := a.AnnotateFile(context.Background(), "street.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//		if err := a.WriteExports(res, "street.svg", "street.json"); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package ties together the building blocks under pkg/:
//
//  1. Inference (pkg/inference, pkg/ollama, pkg/llamacpp, pkg/vision) produces outline documents
//  2. Extraction (pkg/svgdoc, pkg/extractor) turns documents into annotations
//  3. Editing state (pkg/store, pkg/drawing, pkg/viewport) backs interactive sessions
//  4. Export (pkg/export) writes the selected annotations back out
package imageannotator

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/image-annotator/internal/cache"
	"github.com/menta2k/image-annotator/internal/config"
	"github.com/menta2k/image-annotator/internal/utils"
	"github.com/menta2k/image-annotator/pkg/analyzer"
	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/cropper"
	"github.com/menta2k/image-annotator/pkg/detection"
	"github.com/menta2k/image-annotator/pkg/export"
	"github.com/menta2k/image-annotator/pkg/extractor"
	"github.com/menta2k/image-annotator/pkg/inference"
	"github.com/menta2k/image-annotator/pkg/llamacpp"
	"github.com/menta2k/image-annotator/pkg/ollama"
	"github.com/menta2k/image-annotator/pkg/probe"
	"github.com/menta2k/image-annotator/pkg/processing"
	"github.com/menta2k/image-annotator/pkg/store"
	"github.com/menta2k/image-annotator/pkg/types"
	"github.com/menta2k/image-annotator/pkg/vision"
)

// Version of the image annotator library
const Version = "1.0.0"

// Annotator runs images through an outline backend
type Annotator struct {
	analyzer *analyzer.ImageAnalyzer
	outline  client.OutlineClient
	prober   probe.Prober
}

// New creates an Annotator with default upload rules
func New(outline client.OutlineClient) *Annotator {
	return NewWithConfig(outline, analyzer.DefaultConfig())
}

// NewWithConfig creates an Annotator with custom upload rules
func NewWithConfig(outline client.OutlineClient, analyzerConfig analyzer.Config) *Annotator {
	return &Annotator{
		analyzer: analyzer.NewWithConfig(analyzerConfig),
		outline:  outline,
		prober:   probe.New(),
	}
}

// Result is one annotated image
type Result struct {
	Info        analyzer.ImageInfo `json:"info"`
	Size        types.Size         `json:"size"`
	Annotations []types.Annotation `json:"annotations"`
	Document    string             `json:"-"`
}

// AnnotateFile outlines the image at path
func (a *Annotator) AnnotateFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return a.Annotate(ctx, data, filepath.Base(path))
}

// Annotate validates encoded image bytes and outlines them
func (a *Annotator) Annotate(ctx context.Context, data []byte, filename string) (*Result, error) {
	info, err := a.analyzer.Inspect(data)
	if err != nil {
		return nil, fmt.Errorf("image validation failed: %w", err)
	}

	doc, err := a.outline.Outline(ctx, client.Request{
		Image:    data,
		Filename: filename,
		MimeType: info.MimeType,
		Width:    info.Width,
		Height:   info.Height,
	})
	if err != nil {
		return nil, fmt.Errorf("outline request failed: %w", err)
	}

	res := extractor.ExtractString(doc)
	return &Result{
		Info:        info,
		Size:        types.Size{Width: info.Width, Height: info.Height},
		Annotations: res.Annotations,
		Document:    doc,
	}, nil
}

// WriteExports writes the selected annotations of res as SVG and JSON. An
// empty path skips that format.
func (a *Annotator) WriteExports(res *Result, svgPath, jsonPath string) error {
	if svgPath != "" {
		if err := writeFile(svgPath, func(f *os.File) error {
			return export.SVG(f, res.Size, res.Annotations, nil)
		}); err != nil {
			return fmt.Errorf("failed to write svg: %w", err)
		}
	}
	if jsonPath != "" {
		if err := writeFile(jsonPath, func(f *os.File) error {
			return export.WriteJSON(f, res.Size, res.Annotations, nil)
		}); err != nil {
			return fmt.Errorf("failed to write json: %w", err)
		}
	}
	return nil
}

// WriteCrops saves one PNG per selected annotation of res, cut from the image
// at imgPath, into dir. It returns the written paths.
func (a *Annotator) WriteCrops(res *Result, imgPath, dir string, c *cropper.AnnotationCropper) ([]string, error) {
	if c == nil {
		c = cropper.New()
	}
	p := processing.NewProcessor()
	img, err := p.LoadImage(imgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	if err := utils.EnsureDir(dir); err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(filepath.Base(imgPath), filepath.Ext(imgPath))
	var paths []string
	for _, crop := range c.CropAnnotations(img, res.Annotations, nil) {
		name := fmt.Sprintf("%s_%02d_%s.png", base, crop.Index, utils.SanitizeFilename(crop.Label))
		path := filepath.Join(dir, name)
		if err := p.SaveImage(crop.Image, path, "png", 0, false); err != nil {
			return paths, fmt.Errorf("failed to save crop: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// NewSession returns an empty editing session that measures images with the
// annotator's prober.
func (a *Annotator) NewSession() *store.Store {
	return store.New(a.prober)
}

// Probe returns the natural size of an image reference (data URL, http(s)
// URL or file path).
func (a *Annotator) Probe(ctx context.Context, ref string) (types.Size, error) {
	return a.prober.Probe(ctx, ref)
}

// ConvertSVG turns an outline document into the JSON export format. The
// document's own width and height are used as the image size.
func ConvertSVG(doc string) types.JSONAnnotation {
	res := extractor.ExtractString(doc)
	return export.JSON(res.Size, res.Annotations, nil)
}

// NewOutlineClient builds the outline backend selected in cfg, wrapped in
// the response cache when one is configured. The returned close function
// releases the cache and is never nil.
func NewOutlineClient(cfg *config.Config) (client.OutlineClient, func() error, error) {
	noop := func() error { return nil }

	var outline client.OutlineClient
	switch cfg.Inference.Backend {
	case config.BackendRemote:
		outline = inference.NewHTTPClient(cfg.Inference.URL, cfg.Timeout())
	case config.BackendOllama:
		c, err := ollama.NewClientWithHTTP(cfg.Inference.URL, &http.Client{Timeout: cfg.Timeout()})
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		outline = detection.NewDetectorWithConfig(c, cfg.DetectionConfig())
	case config.BackendLlamaCpp:
		c, err := llamacpp.NewClient(cfg.Inference.URL)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		outline = detection.NewDetectorWithConfig(c, cfg.DetectionConfig())
	case config.BackendLocal:
		outline = vision.NewWithConfig(cfg.VisionConfig())
	default:
		return nil, noop, fmt.Errorf("unknown backend: %s", cfg.Inference.Backend)
	}

	if cfg.Cache.Path == "" {
		return outline, noop, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Cache.Path), 0755); err != nil {
		return nil, noop, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return nil, noop, err
	}
	return cache.Wrap(db, outline, cfg.Inference.Backend, cfg.Inference.Model, cfg.CacheMaxAge()), db.Close, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

func writeFile(path string, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
