package cropper

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Config controls how detector boxes become crops
type Config struct {
	MinSideRatio float64 // minimum rect side as a share of max(W, H)
	PaddingRatio float64 // padding added on each side as a share of the rect size
	MaxSide      int
	Quality      int
	ThumbSide    int
	ThumbQuality int
}

// DefaultConfig returns the production crop settings.
func DefaultConfig() Config {
	return Config{
		MinSideRatio: 0.2,
		PaddingRatio: 0.2,
		MaxSide:      1024,
		Quality:      95,
		ThumbSide:    128,
		ThumbQuality: 80,
	}
}

// Cropper cuts garment crops out of the uploaded photo
type Cropper struct {
	config Config
}

func New() *Cropper {
	return &Cropper{config: DefaultConfig()}
}

// Crop is one encoded piece crop.
type Crop struct {
	JPEG  []byte
	Thumb string // base64 JPEG, longest side <= ThumbSide
	Rect  image.Rectangle
}

// Decode reads JPEG, PNG or WebP bytes and applies EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// PixelRect converts a [ymin, xmin, ymax, xmax] box in 0-1, 0-100 or 0-1000 scale into
// pixels of a w x h image. Inverted pairs are swapped.
func PixelRect(w, h int, box []float64) (image.Rectangle, error) {
	if len(box) != 4 {
		return image.Rectangle{}, fmt.Errorf("box needs 4 coordinates, got %d", len(box))
	}
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, fmt.Errorf("empty image %dx%d", w, h)
	}

	maxv := 0.0
	for _, v := range box {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return image.Rectangle{}, fmt.Errorf("box has non-finite coordinate")
		}
		maxv = math.Max(maxv, v)
	}
	scale := 1000.0
	switch {
	case maxv <= 1:
		scale = 1
	case maxv <= 100:
		scale = 100
	}

	norm := func(v float64) float64 { return clamp(v/scale, 0, 1) }
	ymin, xmin, ymax, xmax := norm(box[0]), norm(box[1]), norm(box[2]), norm(box[3])
	if xmin > xmax {
		xmin, xmax = xmax, xmin
	}
	if ymin > ymax {
		ymin, ymax = ymax, ymin
	}

	fw, fh := float64(w), float64(h)
	return image.Rect(
		int(math.Round(xmin*fw)),
		int(math.Round(ymin*fh)),
		int(math.Round(xmax*fw)),
		int(math.Round(ymax*fh)),
	), nil
}

// Region applies the minimum size and the padding to a pixel rect.
func (c *Cropper) Region(w, h int, rect image.Rectangle) image.Rectangle {
	minSide := c.config.MinSideRatio * float64(max(w, h))

	x0, y0 := float64(rect.Min.X), float64(rect.Min.Y)
	x1, y1 := float64(rect.Max.X), float64(rect.Max.Y)
	x0, x1 = grow(x0, x1, minSide, float64(w))
	y0, y1 = grow(y0, y1, minSide, float64(h))

	padX := (x1 - x0) * c.config.PaddingRatio
	padY := (y1 - y0) * c.config.PaddingRatio
	x0 = clamp(x0-padX, 0, float64(w))
	x1 = clamp(x1+padX, 0, float64(w))
	y0 = clamp(y0-padY, 0, float64(h))
	y1 = clamp(y1+padY, 0, float64(h))

	return image.Rect(int(math.Round(x0)), int(math.Round(y0)), int(math.Round(x1)), int(math.Round(y1)))
}

// CropPiece cuts one box out of img, bounds it to MaxSide and encodes JPEG plus a thumbnail.
func (c *Cropper) CropPiece(img image.Image, box []float64) (*Crop, error) {
	b := img.Bounds()
	rect, err := PixelRect(b.Dx(), b.Dy(), box)
	if err != nil {
		return nil, err
	}
	region := c.Region(b.Dx(), b.Dy(), rect).Add(b.Min)
	if region.Empty() {
		return nil, fmt.Errorf("empty crop rectangle")
	}

	cropped := imaging.Crop(img, region)
	cropped = imaging.Fit(cropped, c.config.MaxSide, c.config.MaxSide, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, cropped, imaging.JPEG, imaging.JPEGQuality(c.config.Quality)); err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}

	thumb, err := c.Thumbnail(cropped)
	if err != nil {
		return nil, err
	}
	return &Crop{JPEG: buf.Bytes(), Thumb: thumb, Rect: region}, nil
}

// Thumbnail returns a base64 JPEG whose longest side is at most ThumbSide.
func (c *Cropper) Thumbnail(img image.Image) (string, error) {
	small := imaging.Fit(img, c.config.ThumbSide, c.config.ThumbSide, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, small, imaging.JPEG, imaging.JPEGQuality(c.config.ThumbQuality)); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// grow widens [lo, hi] around its centre to at least size, shifting it back inside [0, limit].
func grow(lo, hi, size, limit float64) (float64, float64) {
	if hi-lo >= size {
		return lo, hi
	}
	mid := (lo + hi) / 2
	lo, hi = mid-size/2, mid+size/2
	if lo < 0 {
		hi -= lo
		lo = 0
	}
	if hi > limit {
		lo -= hi - limit
		hi = limit
	}
	return math.Max(lo, 0), hi
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
