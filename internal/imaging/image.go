// Package imaging decodes uploaded images, bounds their size and re-encodes them as
// JPEG so the gallery always stores and embeds a single format.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	// ErrEmptyImage is returned for zero-length input.
	ErrEmptyImage = errors.New("empty image")
	// ErrInvalidImage is returned when the input is not a decodable image.
	ErrInvalidImage = errors.New("invalid image")
)

const jpegQuality = 90

// Image is a normalized JPEG with its pixel size.
type Image struct {
	Data   []byte
	Width  int
	Height int
	Format string // format of the decoded input
}

// Normalize decodes data, downsizes it to fit within maxSize (width or height)
// keeping the aspect ratio, and re-encodes it as JPEG. maxSize <= 0 disables resizing.
func Normalize(data []byte, maxSize int) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, ErrEmptyImage
	}

	out := img
	if maxSize > 0 && (width > maxSize || height > maxSize) {
		width, height = fitWithin(width, height, maxSize)
		resized := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		out = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &Image{Data: buf.Bytes(), Width: width, Height: height, Format: format}, nil
}

// Dimensions returns the pixel size of an encoded image without decoding pixels.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

func fitWithin(width, height, maxSize int) (int, int) {
	if width > height {
		return maxSize, max(1, int(float64(height)*float64(maxSize)/float64(width)))
	}
	return max(1, int(float64(width)*float64(maxSize)/float64(height))), maxSize
}
