package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		for y := range height {
			img.Set(x, y, c)
		}
	}
	return img
}

func createGradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		for y := range height {
			v := uint8(255 - x*255/width)
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func encodeJPEG(img image.Image) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func TestNormalize_NoResizeNeeded(t *testing.T) {
	out, err := Normalize(encodeJPEG(createTestImage(100, 80, color.White)), 200)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if out.Width != 100 || out.Height != 80 {
		t.Errorf("expected 100x80, got %dx%d", out.Width, out.Height)
	}

	_, format, err := image.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("expected jpeg format, got %s", format)
	}
}

func TestNormalize_PNGBecomesJPEG(t *testing.T) {
	out, err := Normalize(encodePNG(createTestImage(50, 50, color.Black)), 0)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if out.Format != "png" {
		t.Errorf("expected input format png, got %s", out.Format)
	}
	if _, format, _ := image.Decode(bytes.NewReader(out.Data)); format != "jpeg" {
		t.Errorf("expected jpeg output, got %s", format)
	}
}

func TestNormalize_Resize(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		maxSize       int
		wantW, wantH  int
	}{
		{"landscape", 2000, 1000, 500, 500, 250},
		{"portrait", 1000, 2000, 500, 250, 500},
		{"square", 1000, 1000, 200, 200, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Normalize(encodeJPEG(createTestImage(tt.width, tt.height, color.White)), tt.maxSize)
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			w, h, err := Dimensions(out.Data)
			if err != nil {
				t.Fatalf("Dimensions failed: %v", err)
			}
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("expected %dx%d, got %dx%d", tt.wantW, tt.wantH, w, h)
			}
			if out.Width != w || out.Height != h {
				t.Errorf("reported %dx%d, encoded %dx%d", out.Width, out.Height, w, h)
			}
		})
	}
}

func TestNormalize_Invalid(t *testing.T) {
	if _, err := Normalize(nil, 100); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("expected ErrEmptyImage, got %v", err)
	}
	if _, err := Normalize([]byte("not an image"), 100); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage, got %v", err)
	}
}
