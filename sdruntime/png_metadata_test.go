package sdruntime

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image/png"
	"strings"
	"testing"
)

type pngChunk struct {
	typ  string
	data []byte
	crc  uint32
}

func readChunks(t *testing.T, data []byte) []pngChunk {
	t.Helper()
	var chunks []pngChunk
	pos := len(pngMagic)
	for pos+8 <= len(data) {
		n := int(binary.BigEndian.Uint32(data[pos:]))
		typ := string(data[pos+4 : pos+8])
		body := data[pos+8 : pos+8+n]
		sum := binary.BigEndian.Uint32(data[pos+8+n:])
		chunks = append(chunks, pngChunk{typ: typ, data: body, crc: sum})
		pos += 12 + n
	}
	return chunks
}

func TestInjectTextChunks(t *testing.T) {
	src, err := EncodePNG(make([]byte, 2*2*3), 2, 2, 3)
	if err != nil {
		t.Fatal(err)
	}

	out := InjectTextChunks(src, map[string]string{
		ParametersKey: "a cat\nSteps: 20",
		"Software":    "sdloader",
		"Empty":       "   ",
	})

	chunks := readChunks(t, out)
	if len(chunks) < 4 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if chunks[0].typ != "IHDR" {
		t.Fatalf("first chunk = %s, want IHDR", chunks[0].typ)
	}
	if chunks[1].typ != "tEXt" || chunks[2].typ != "tEXt" {
		t.Fatalf("expected two tEXt chunks after IHDR, got %s %s", chunks[1].typ, chunks[2].typ)
	}
	if !bytes.HasPrefix(chunks[1].data, []byte("Software\x00")) {
		t.Errorf("keys should be sorted, first tEXt = %q", chunks[1].data)
	}
	if string(chunks[2].data) != "parameters\x00a cat\nSteps: 20" {
		t.Errorf("parameters chunk = %q", chunks[2].data)
	}
	for _, c := range chunks {
		crc := crc32.NewIEEE()
		crc.Write([]byte(c.typ))
		crc.Write(c.data)
		if crc.Sum32() != c.crc {
			t.Errorf("bad CRC on %s chunk", c.typ)
		}
	}

	if _, err := png.Decode(bytes.NewReader(out)); err != nil {
		t.Errorf("injected PNG no longer decodes: %v", err)
	}
}

func TestInjectTextChunks_Passthrough(t *testing.T) {
	src, err := EncodePNG(make([]byte, 4), 2, 2, 1)
	if err != nil {
		t.Fatal(err)
	}

	if got := InjectTextChunks(src, nil); !bytes.Equal(got, src) {
		t.Error("nil metadata should return input unchanged")
	}
	notPNG := []byte("plain bytes")
	if got := InjectTextChunks(notPNG, map[string]string{"k": "v"}); !bytes.Equal(got, notPNG) {
		t.Error("non-PNG input should be returned unchanged")
	}
	truncated := src[:len(src)-6]
	if got := InjectTextChunks(truncated, map[string]string{"k": "v"}); !bytes.Equal(got, truncated) {
		t.Error("truncated PNG should be returned unchanged")
	}
}

func TestInjectTextChunks_MalformedTail(t *testing.T) {
	src, err := EncodePNG(make([]byte, 4), 2, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	meta := map[string]string{"k": "v"}

	tests := []struct {
		name string
		data []byte
	}{
		{"short tail", src[:len(src)-6]},
		{"missing IEND", src[:len(src)-12]},
		{"partial chunk header", src[:len(src)-10]},
		{"bytes after IEND", append(append([]byte{}, src...), 0x00, 0x01)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InjectTextChunks(tt.data, meta)
			if !bytes.Equal(got, tt.data) {
				t.Errorf("got %d bytes, want input (%d bytes) unchanged", len(got), len(tt.data))
			}
		})
	}
}

func TestFormatParameters(t *testing.T) {
	req := GenerationRequest{
		Prompt:         "a cat",
		NegativePrompt: "blurry",
		Width:          64,
		Height:         64,
		Steps:          20,
		GuidanceScale:  7.5,
		Seed:           42,
	}

	got := FormatParameters(req, "/models/sd-v1-5.safetensors")
	want := "a cat\nNegative prompt: blurry\nSteps: 20, CFG scale: 7.5, Seed: 42, Size: 64x64, Model: sd-v1-5"
	if got != want {
		t.Errorf("FormatParameters() =\n%q\nwant\n%q", got, want)
	}

	req.NegativePrompt = ""
	if got := FormatParameters(req, ""); strings.Contains(got, "Negative prompt") || strings.Contains(got, "Model:") {
		t.Errorf("unexpected optional fields in %q", got)
	}
}

func TestIsSupportedModelFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"model.safetensors", true},
		{"/m/v1.CKPT", true},
		{"weights.pt", true},
		{"model.bin", true},
		{"sd.q8_0.gguf", true},
		{"model.onnx", false},
		{"model", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := IsSupportedModelFile(tt.path); got != tt.want {
				t.Errorf("IsSupportedModelFile(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
