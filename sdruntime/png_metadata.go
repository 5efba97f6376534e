package sdruntime

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"path/filepath"
	"sort"
	"strings"
)

// ParametersKey is the tEXt keyword Stable Diffusion front-ends read
// generation settings from.
const ParametersKey = "parameters"

// SupportedModelExtensions lists the model file formats the engine loads.
var SupportedModelExtensions = []string{".safetensors", ".ckpt", ".pt", ".bin", ".gguf"}

// IsSupportedModelFile reports whether path has a known model extension.
func IsSupportedModelFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedModelExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// FormatParameters renders a request in the "parameters" text layout:
// prompt, optional negative prompt line, then the settings line.
func FormatParameters(req GenerationRequest, modelPath string) string {
	var b strings.Builder
	b.WriteString(req.Prompt)
	if req.NegativePrompt != "" {
		b.WriteString("\nNegative prompt: ")
		b.WriteString(req.NegativePrompt)
	}
	fmt.Fprintf(&b, "\nSteps: %d, CFG scale: %g, Seed: %d, Size: %dx%d",
		req.Steps, req.GuidanceScale, req.Seed, req.Width, req.Height)
	if modelPath != "" {
		fmt.Fprintf(&b, ", Model: %s", strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath)))
	}
	return b.String()
}

// InjectTextChunks inserts one tEXt chunk per non-blank entry right after
// IHDR. Keys are written in sorted order. Data that is not a PNG, that is
// truncated before IEND, or that carries bytes after IEND is returned
// unchanged.
func InjectTextChunks(data []byte, metadata map[string]string) []byte {
	if !IsPNG(data) || len(metadata) == 0 {
		return data
	}

	keys := make([]string, 0, len(metadata))
	for k, v := range metadata {
		if strings.TrimSpace(v) != "" && k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out bytes.Buffer
	out.Grow(len(data) + 256)
	out.Write(data[:len(pngMagic)])

	pos := len(pngMagic)
	sawIEND := false
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos:]))
		end := pos + 8 + length + 4
		if length < 0 || end > len(data) {
			return data
		}
		chunkType := string(data[pos+4 : pos+8])
		out.Write(data[pos:end])
		pos = end

		if chunkType == "IHDR" {
			for _, k := range keys {
				writeTextChunk(&out, k, metadata[k])
			}
		}
		if chunkType == "IEND" {
			sawIEND = true
			break
		}
	}
	if !sawIEND || pos != len(data) {
		return data
	}
	return out.Bytes()
}

func writeTextChunk(w *bytes.Buffer, key, value string) {
	payload := make([]byte, 0, len(key)+1+len(value))
	payload = append(payload, key...)
	payload = append(payload, 0)
	payload = append(payload, value...)

	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[:4], uint32(len(payload)))
	copy(hdr[4:], "tEXt")
	w.Write(hdr[:])
	w.Write(payload)

	crc := crc32.NewIEEE()
	crc.Write(hdr[4:])
	crc.Write(payload)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	w.Write(sum[:])
}
