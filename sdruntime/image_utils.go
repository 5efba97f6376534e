package sdruntime

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// PNG magic bytes for file identification
var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// Image validation errors
var (
	ErrImageEmpty        = errors.New("sdruntime: image data is empty")
	ErrImageNotPNG       = errors.New("sdruntime: image data is not a valid PNG")
	ErrImageDecodeFail   = errors.New("sdruntime: failed to decode image")
	ErrImageInvalidSize  = errors.New("sdruntime: invalid image dimensions")
	ErrUnsupportedLayout = errors.New("sdruntime: unsupported channel count")
)

// IsPNG checks if the given data starts with PNG magic bytes.
// This is a pure function with no side effects.
func IsPNG(data []byte) bool {
	if len(data) < len(pngMagic) {
		return false
	}
	return bytes.Equal(data[:len(pngMagic)], pngMagic)
}

// ValidateImageData validates that data is a decodable PNG image.
func ValidateImageData(data []byte) error {
	if len(data) == 0 {
		return ErrImageEmpty
	}
	if !IsPNG(data) {
		return ErrImageNotPNG
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrImageDecodeFail, err)
	}
	return nil
}

// ToImage wraps raw interleaved pixels in an image.Image. Supported layouts
// are 1 (gray), 3 (RGB) and 4 (RGBA) channels. RGB input is expanded to RGBA
// with opaque alpha; the input slice is never modified.
func ToImage(pixels []byte, width, height, channels int) (image.Image, error) {
	n, ok := ByteLen(width, height, channels)
	if !ok {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrImageInvalidSize, width, height, channels)
	}
	if len(pixels) != n {
		return nil, fmt.Errorf("%w: expected %d bytes for %dx%dx%d, got %d",
			ErrImageInvalidSize, n, width, height, channels, len(pixels))
	}

	rect := image.Rect(0, 0, width, height)
	switch channels {
	case 1:
		img := image.NewGray(rect)
		copy(img.Pix, pixels)
		return img, nil
	case 3:
		img := image.NewRGBA(rect)
		for i, j := 0, 0; i < len(pixels); i, j = i+3, j+4 {
			img.Pix[j] = pixels[i]
			img.Pix[j+1] = pixels[i+1]
			img.Pix[j+2] = pixels[i+2]
			img.Pix[j+3] = 0xFF
		}
		return img, nil
	case 4:
		img := image.NewRGBA(rect)
		copy(img.Pix, pixels)
		return img, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedLayout, channels)
	}
}

// EncodePNG encodes raw engine pixels to PNG.
func EncodePNG(pixels []byte, width, height, channels int) ([]byte, error) {
	img, err := ToImage(pixels, width, height, channels)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Thumbnail scales img so that its longer side is maxSide pixels, keeping
// the aspect ratio. Images already within bounds are returned unchanged.
func Thumbnail(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img
	}

	tw, th := maxSide, maxSide
	if w >= h {
		th = max(1, h*maxSide/w)
	} else {
		tw = max(1, w*maxSide/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
