package cropper

import (
	"image"
	"image/color"
	"testing"

	"github.com/menta2k/image-annotator/pkg/types"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}

	return img
}

var box = []types.Point{{X: 10, Y: 10}, {X: 30, Y: 10}, {X: 30, Y: 20}, {X: 10, Y: 20}}

func TestRegion(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)

	tests := []struct {
		name   string
		config CropConfig
		want   image.Rectangle
	}{
		{"tight", CropConfig{}, image.Rect(10, 10, 30, 20)},
		{"padded", CropConfig{PaddingRatio: 0.5}, image.Rect(0, 0, 40, 30)},
		{"square", CropConfig{AspectRatio: Square.Ratio()}, image.Rect(10, 5, 30, 25)},
		{"portrait", CropConfig{AspectRatio: 0.5}, image.Rect(10, -5, 30, 35).Intersect(bounds)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NewWithConfig(tt.config).Region(box, bounds)
			if !ok {
				t.Fatal("expected a region")
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRegionRejects(t *testing.T) {
	c := NewWithConfig(CropConfig{MinSize: 5})
	bounds := image.Rect(0, 0, 100, 100)

	if _, ok := c.Region(nil, bounds); ok {
		t.Error("Empty polygon should not produce a region")
	}

	tiny := []types.Point{{X: 1, Y: 1}, {X: 3, Y: 1}, {X: 3, Y: 3}}
	if _, ok := c.Region(tiny, bounds); ok {
		t.Error("Region below MinSize should be dropped")
	}

	outside := []types.Point{{X: 200, Y: 200}, {X: 300, Y: 200}, {X: 300, Y: 300}}
	if _, ok := c.Region(outside, bounds); ok {
		t.Error("Region outside the image should be dropped")
	}
}

func TestCropAnnotations(t *testing.T) {
	img := createTestImage(100, 100)
	anns := []types.Annotation{
		{Path: "M 10,10 30,10 30,20 10,20 Z", Label: "car", Selected: true},
		{Path: "M 50,50 60,50 60,60 Z", Label: "skip", Selected: false},
	}
	manual := []types.ManualAnnotation{
		{Points: []types.Point{{X: 40, Y: 40}, {X: 80, Y: 40}, {X: 80, Y: 90}}, Label: "manual", Selected: true},
	}

	crops := NewWithConfig(CropConfig{}).CropAnnotations(img, anns, manual)
	if len(crops) != 2 {
		t.Fatalf("Expected 2 crops, got %d", len(crops))
	}

	if crops[0].Label != "car" || crops[0].Index != 0 {
		t.Errorf("Unexpected first crop %q #%d", crops[0].Label, crops[0].Index)
	}
	if b := crops[0].Image.Bounds(); b.Dx() != 20 || b.Dy() != 10 {
		t.Errorf("Expected 20x10 crop, got %dx%d", b.Dx(), b.Dy())
	}

	if crops[1].Label != "manual" || crops[1].Index != 1 {
		t.Errorf("Unexpected second crop %q #%d", crops[1].Label, crops[1].Index)
	}
	if crops[1].Rect != image.Rect(40, 40, 80, 90) {
		t.Errorf("Unexpected manual crop rect %v", crops[1].Rect)
	}
}

func TestCommonAspectRatios(t *testing.T) {
	for _, r := range CommonAspectRatios() {
		if r.Ratio() <= 0 {
			t.Errorf("%s has invalid ratio", r.Name)
		}
	}
	if (AspectRatio{Width: 1}).Ratio() != 0 {
		t.Error("Zero height should give a zero ratio")
	}
}
