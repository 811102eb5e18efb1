package vision

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/menta2k/image-annotator/pkg/client"
	"github.com/menta2k/image-annotator/pkg/extractor"
)

// createTestImage creates a simple test image with some patterns
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/4 && x < width/2 && y > height/4 && y < 3*height/4 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else if x > 3*width/4 && y > height/4 && y < 3*height/4 {
				img.Set(x, y, color.RGBA{0, 0, 0, 255})
			} else {
				r := uint8((x * 128) / width)
				g := uint8((y * 128) / height)
				img.Set(x, y, color.RGBA{r, g, 64, 255})
			}
		}
	}

	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestNew(t *testing.T) {
	detector := New()
	if detector == nil {
		t.Fatal("New() returned nil")
	}

	if detector.config.EdgeThreshold != 0.01 {
		t.Errorf("Expected edge threshold 0.01, got %f", detector.config.EdgeThreshold)
	}
	if detector.config.MaxRegions != 10 {
		t.Errorf("Expected 10 max regions, got %d", detector.config.MaxRegions)
	}
}

func TestNewWithConfigFillsDefaults(t *testing.T) {
	detector := NewWithConfig(DetectionConfig{EdgeThreshold: 0.2})

	if detector.config.EdgeThreshold != 0.2 {
		t.Errorf("Expected edge threshold 0.2, got %f", detector.config.EdgeThreshold)
	}
	if detector.config.AnalysisSize != 256 {
		t.Errorf("Expected analysis size 256, got %d", detector.config.AnalysisSize)
	}
	if detector.config.OverlapLimit != 0.3 {
		t.Errorf("Expected overlap limit 0.3, got %f", detector.config.OverlapLimit)
	}
}

func TestRegionGeometry(t *testing.T) {
	region := Region{X: 10, Y: 20, Width: 100, Height: 80}

	cx, cy := region.Center()
	if cx != 60 || cy != 60 {
		t.Errorf("Expected center (60,60), got (%d,%d)", cx, cy)
	}
	if region.Area() != 8000 {
		t.Errorf("Expected area 8000, got %d", region.Area())
	}

	poly := region.Polygon()
	if len(poly) != 4 || poly[2].X != 110 || poly[2].Y != 100 {
		t.Errorf("Unexpected polygon %v", poly)
	}
}

func TestRegionIoU(t *testing.T) {
	a := Region{X: 0, Y: 0, Width: 10, Height: 10}

	if got := a.IoU(a); got != 1 {
		t.Errorf("Expected IoU 1 with itself, got %f", got)
	}
	if got := a.IoU(Region{X: 20, Y: 20, Width: 5, Height: 5}); got != 0 {
		t.Errorf("Expected IoU 0 for disjoint regions, got %f", got)
	}
	// 5x10 overlap of two 10x10 squares: 50 / 150
	if got := a.IoU(Region{X: 5, Y: 0, Width: 10, Height: 10}); got < 0.333 || got > 0.334 {
		t.Errorf("Expected IoU 1/3, got %f", got)
	}
}

func TestDetectSubjects(t *testing.T) {
	detector := New()
	img := createTestImage(200, 100)

	regions, err := detector.DetectSubjects(img)
	if err != nil {
		t.Fatalf("DetectSubjects failed: %v", err)
	}
	if len(regions) == 0 {
		t.Fatal("Expected at least one region")
	}
	if len(regions) > detector.config.MaxRegions {
		t.Errorf("Expected at most %d regions, got %d", detector.config.MaxRegions, len(regions))
	}

	for i, r := range regions {
		if r.X < 0 || r.Y < 0 || r.X+r.Width > 200 || r.Y+r.Height > 100 {
			t.Errorf("Region %d out of bounds: %+v", i, r)
		}
		if i > 0 && regions[i-1].Score < r.Score {
			t.Errorf("Regions not sorted by score at %d", i)
		}
		for j := 0; j < i; j++ {
			if r.IoU(regions[j]) > detector.config.OverlapLimit {
				t.Errorf("Regions %d and %d overlap", j, i)
			}
		}
	}
}

func TestDetectSubjectsDownscales(t *testing.T) {
	detector := New()
	regions, err := detector.DetectSubjects(createTestImage(800, 400))
	if err != nil {
		t.Fatalf("DetectSubjects failed: %v", err)
	}

	for i, r := range regions {
		if r.X+r.Width > 800 || r.Y+r.Height > 400 {
			t.Errorf("Region %d not mapped back to image size: %+v", i, r)
		}
	}
}

func TestDetectSubjectsFlatImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}

	regions, err := New().DetectSubjects(img)
	if err != nil {
		t.Fatalf("DetectSubjects failed: %v", err)
	}
	if len(regions) != 0 {
		t.Errorf("Expected no regions on a black image, got %d", len(regions))
	}

	if _, err := New().DetectSubjects(image.NewRGBA(image.Rect(0, 0, 0, 0))); err == nil {
		t.Error("Expected error for empty image")
	}
}

func TestOutline(t *testing.T) {
	detector := New()
	data := encodePNG(t, createTestImage(200, 100))

	doc, err := detector.Outline(context.Background(), client.Request{Image: data, Width: 400, Height: 200})
	if err != nil {
		t.Fatalf("Outline failed: %v", err)
	}

	res := extractor.ExtractString(doc)
	if res.Size.Width != 400 || res.Size.Height != 200 {
		t.Errorf("Expected 400x200 document, got %+v", res.Size)
	}
	if len(res.Annotations) == 0 {
		t.Fatal("Expected annotations in outline document")
	}
	for _, a := range res.Annotations {
		if a.Label != Label {
			t.Errorf("Expected label %q, got %q", Label, a.Label)
		}
	}

	if _, err := detector.Outline(context.Background(), client.Request{Image: []byte("junk")}); err == nil {
		t.Error("Expected error for undecodable image")
	}
}
