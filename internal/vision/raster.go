package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"math"
)

// DefaultMaxPixels bounds the decoded area of an image, about a 24 MP photo.
const DefaultMaxPixels = 25_000_000

var (
	errEmptyImage = errors.New("image has no pixels")

	// ErrTooManyPixels is returned by Decode when the image header declares
	// more pixels than allowed.
	ErrTooManyPixels = errors.New("image exceeds pixel limit")
)

// raster is an 8-bit RGB copy of an image in row-major order.
type raster struct {
	w, h    int
	r, g, b []uint8
}

// Decode parses JPEG, PNG, or GIF bytes. The header is read first and images
// larger than maxPixels are rejected before any pixel data is decoded.
// A maxPixels of zero or less means DefaultMaxPixels.
func Decode(data []byte, maxPixels int) (image.Image, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errEmptyImage
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d > %d", ErrTooManyPixels, cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func newRaster(img image.Image) (*raster, error) {
	if img == nil {
		return nil, errEmptyImage
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, errEmptyImage
	}

	n := w * h
	rs := &raster{w: w, h: h, r: make([]uint8, n), g: make([]uint8, n), b: make([]uint8, n)}
	for y := range h {
		for x := range w {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			i := y*w + x
			rs.r[i], rs.g[i], rs.b[i] = c.R, c.G, c.B
		}
	}
	return rs, nil
}

// gray returns BT.601 luma rounded to 8-bit levels.
func (rs *raster) gray() []float64 {
	out := make([]float64, len(rs.r))
	for i := range out {
		out[i] = math.Round(0.299*float64(rs.r[i]) + 0.587*float64(rs.g[i]) + 0.114*float64(rs.b[i]))
	}
	return out
}

// hsv converts pixel i to 8-bit HSV with hue in [0,180).
func (rs *raster) hsv(i int) hsv8 {
	return toHSV(rs.r[i], rs.g[i], rs.b[i])
}

func (rs *raster) size() int {
	return rs.w * rs.h
}
