package sdruntime

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestIsPNG_ValidPNG(t *testing.T) {
	if !IsPNG(encodeTestPNG(t, 10, 10)) {
		t.Error("expected IsPNG to return true for valid PNG")
	}
}

func TestIsPNG_InvalidData(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"too short", []byte{0x89, 0x50}},
		{"wrong magic", []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}},
		{"jpeg magic", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if IsPNG(tt.data) {
				t.Errorf("expected IsPNG to return false for %s", tt.name)
			}
		})
	}
}

func TestValidateImageData(t *testing.T) {
	if err := ValidateImageData(encodeTestPNG(t, 4, 4)); err != nil {
		t.Errorf("expected no error for valid PNG, got: %v", err)
	}
	if err := ValidateImageData(nil); !errors.Is(err, ErrImageEmpty) {
		t.Errorf("expected ErrImageEmpty, got: %v", err)
	}
	if err := ValidateImageData([]byte("not a png at all")); !errors.Is(err, ErrImageNotPNG) {
		t.Errorf("expected ErrImageNotPNG, got: %v", err)
	}
	truncated := encodeTestPNG(t, 4, 4)[:20]
	if err := ValidateImageData(truncated); !errors.Is(err, ErrImageDecodeFail) {
		t.Errorf("expected ErrImageDecodeFail, got: %v", err)
	}
}

func TestToImage_Layouts(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		pixels   []byte
		want     color.RGBA
	}{
		{"gray", 1, []byte{0x40, 0x40}, color.RGBA{0x40, 0x40, 0x40, 0xFF}},
		{"rgb", 3, []byte{1, 2, 3, 1, 2, 3}, color.RGBA{1, 2, 3, 0xFF}},
		{"rgba", 4, []byte{1, 2, 3, 4, 1, 2, 3, 4}, color.RGBA{1, 2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := ToImage(tt.pixels, 2, 1, tt.channels)
			if err != nil {
				t.Fatalf("ToImage() error = %v", err)
			}
			got := color.RGBAModel.Convert(img.At(1, 0)).(color.RGBA)
			if tt.channels == 4 {
				got = img.(*image.RGBA).RGBAAt(1, 0)
			}
			if got != tt.want {
				t.Errorf("pixel = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToImage_DoesNotModifyInput(t *testing.T) {
	pixels := []byte{9, 8, 7, 6, 5, 4}
	orig := append([]byte(nil), pixels...)
	if _, err := ToImage(pixels, 2, 1, 3); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pixels, orig) {
		t.Errorf("input modified: %v", pixels)
	}
}

func TestToImage_Errors(t *testing.T) {
	if _, err := ToImage(make([]byte, 4), 0, 4, 1); !errors.Is(err, ErrImageInvalidSize) {
		t.Errorf("zero width: got %v", err)
	}
	if _, err := ToImage(make([]byte, 3), 2, 2, 1); !errors.Is(err, ErrImageInvalidSize) {
		t.Errorf("short buffer: got %v", err)
	}
	if _, err := ToImage(make([]byte, 8), 2, 2, 2); !errors.Is(err, ErrUnsupportedLayout) {
		t.Errorf("two channels: got %v", err)
	}
}

func TestEncodePNG_RoundTrip(t *testing.T) {
	pixels := make([]byte, 4*3*3)
	for i := range pixels {
		pixels[i] = byte(i * 7)
	}

	data, err := EncodePNG(pixels, 4, 3, 3)
	if err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}
	if err := ValidateImageData(data); err != nil {
		t.Fatalf("EncodePNG produced invalid PNG: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Errorf("decoded size %dx%d, want 4x3", b.Dx(), b.Dy())
	}
	r, g, bl, _ := img.At(1, 0).RGBA()
	if byte(r>>8) != pixels[3] || byte(g>>8) != pixels[4] || byte(bl>>8) != pixels[5] {
		t.Errorf("pixel (1,0) = %d,%d,%d, want %v", r>>8, g>>8, bl>>8, pixels[3:6])
	}
}

func TestThumbnail(t *testing.T) {
	tests := []struct {
		name  string
		w, h  int
		max   int
		wantW int
		wantH int
	}{
		{"landscape", 512, 256, 128, 128, 64},
		{"portrait", 256, 512, 128, 64, 128},
		{"already small", 64, 32, 128, 64, 32},
		{"disabled", 512, 512, 0, 512, 512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
			got := Thumbnail(src, tt.max).Bounds()
			if got.Dx() != tt.wantW || got.Dy() != tt.wantH {
				t.Errorf("Thumbnail() = %dx%d, want %dx%d", got.Dx(), got.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}
