package cropper

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/disintegration/imaging"
)

func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 {
				img.Set(x, y, color.RGBA{40, 120, 60, 255})
			} else {
				img.Set(x, y, color.RGBA{230, 230, 230, 255})
			}
		}
	}
	return img
}

func TestPixelRectScaleNormalisation(t *testing.T) {
	want := image.Rect(200, 100, 900, 800)
	boxes := [][]float64{
		{10, 20, 80, 90},
		{0.1, 0.2, 0.8, 0.9},
		{100, 200, 800, 900},
	}
	for _, box := range boxes {
		got, err := PixelRect(1000, 1000, box)
		if err != nil {
			t.Fatalf("PixelRect(%v): %v", box, err)
		}
		if got != want {
			t.Errorf("PixelRect(%v) = %v, want %v", box, got, want)
		}
	}
}

func TestPixelRectSwapsInvertedPairs(t *testing.T) {
	got, err := PixelRect(1000, 1000, []float64{800, 900, 100, 200})
	if err != nil {
		t.Fatal(err)
	}
	if want := image.Rect(200, 100, 900, 800); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPixelRectClips(t *testing.T) {
	got, err := PixelRect(500, 400, []float64{-50, 900, 1200, 1000})
	if err != nil {
		t.Fatal(err)
	}
	if want := image.Rect(450, 0, 500, 400); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPixelRectRejectsBadBoxes(t *testing.T) {
	for _, box := range [][]float64{nil, {1, 2, 3}, {1, 2, 3, 4, 5}} {
		if _, err := PixelRect(100, 100, box); err == nil {
			t.Errorf("PixelRect(%v) should fail", box)
		}
	}
}

func TestRegionMinimumSizeAndPadding(t *testing.T) {
	c := New()
	tests := []struct {
		name string
		rect image.Rectangle
		want image.Rectangle
	}{
		{"large box only padded", image.Rect(200, 100, 900, 800), image.Rect(60, 0, 1000, 940)},
		{"tiny box grown around centre", image.Rect(500, 500, 510, 510), image.Rect(365, 365, 645, 645)},
		{"corner box shifted inside", image.Rect(0, 0, 10, 10), image.Rect(0, 0, 240, 240)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Region(1000, 1000, tt.rect); got != tt.want {
				t.Errorf("Region() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCropPieceBoundsAndThumbnail(t *testing.T) {
	c := New()
	crop, err := c.CropPiece(createTestImage(2000, 1000), []float64{0, 0, 1000, 1000})
	if err != nil {
		t.Fatalf("CropPiece: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(crop.JPEG))
	if err != nil {
		t.Fatalf("crop is not a JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1024 || b.Dy() != 512 {
		t.Errorf("crop size = %dx%d, want 1024x512", b.Dx(), b.Dy())
	}

	raw, err := base64.StdEncoding.DecodeString(crop.Thumb)
	if err != nil {
		t.Fatalf("thumbnail is not base64: %v", err)
	}
	thumb, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("thumbnail is not a JPEG: %v", err)
	}
	if b := thumb.Bounds(); b.Dx() > 128 || b.Dy() > 128 {
		t.Errorf("thumbnail size = %dx%d, want <= 128", b.Dx(), b.Dy())
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, createTestImage(64, 32), imaging.PNG); err != nil {
		t.Fatal(err)
	}
	img, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 32 {
		t.Errorf("decoded size = %dx%d", b.Dx(), b.Dy())
	}
	if _, err := Decode([]byte("not an image")); err == nil {
		t.Error("Decode should reject garbage")
	}
}
