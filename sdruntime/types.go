package sdruntime

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// DefaultGuidanceScale is substituted when a request carries a non-positive
// guidance scale.
const DefaultGuidanceScale float32 = 7.0

// BatchCount is fixed: one request produces exactly one image.
const BatchCount = 1

// EngineConfig is built fresh for every Create call and is not retained.
type EngineConfig struct {
	ModelPath             string
	NumThreads            int
	OffloadParamsToCPU    bool
	KeepClipOnCPU         bool
	KeepVAEOnCPU          bool
	FreeParamsImmediately bool
}

// NewEngineConfig builds the config used for context creation. An empty model
// path is passed through; rejecting it is the engine's decision.
func NewEngineConfig(modelPath string, numThreads int, offloadToCPU, keepClipOnCPU, keepVAEOnCPU bool) EngineConfig {
	return EngineConfig{
		ModelPath:             modelPath,
		NumThreads:            numThreads,
		OffloadParamsToCPU:    offloadToCPU,
		KeepClipOnCPU:         keepClipOnCPU,
		KeepVAEOnCPU:          keepVAEOnCPU,
		FreeParamsImmediately: true,
	}
}

// SampleParams holds the sampler settings the engine fills in by default.
type SampleParams struct {
	SampleSteps   int
	GuidanceScale float32
}

// GenerationRequest is the per-call value handed to the engine.
type GenerationRequest struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Steps          int     // <= 0 selects the engine default
	GuidanceScale  float32 // <= 0 selects DefaultGuidanceScale
	Seed           int64   // passed verbatim; negative asks the engine to randomize
	BatchCount     int
}

// ApplyDefaults resolves the request against the engine's default sampler
// settings. This is a pure function with no side effects.
func ApplyDefaults(req GenerationRequest, defaults SampleParams) GenerationRequest {
	if req.Steps <= 0 {
		req.Steps = defaults.SampleSteps
	}
	if req.GuidanceScale <= 0 {
		req.GuidanceScale = DefaultGuidanceScale
	}
	req.BatchCount = BatchCount
	return req
}

// String returns a compact description without prompt text.
func (r GenerationRequest) String() string {
	return fmt.Sprintf("%dx%d steps=%d cfg=%.2f seed=%d", r.Width, r.Height, r.Steps, r.GuidanceScale, r.Seed)
}

// MarshalLogObject implements zapcore.ObjectMarshaler. Prompts are logged by
// length only.
func (r GenerationRequest) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("prompt_len", len(r.Prompt))
	enc.AddInt("negative_prompt_len", len(r.NegativePrompt))
	enc.AddInt("width", r.Width)
	enc.AddInt("height", r.Height)
	enc.AddInt("steps", r.Steps)
	enc.AddFloat32("guidance_scale", r.GuidanceScale)
	enc.AddInt64("seed", r.Seed)
	return nil
}

// ByteLen returns width*height*channels, or false if any dimension is
// non-positive or the product overflows int.
func ByteLen(width, height, channels int) (int, bool) {
	if width <= 0 || height <= 0 || channels <= 0 {
		return 0, false
	}
	const maxInt = int(^uint(0) >> 1)
	if width > maxInt/height {
		return 0, false
	}
	n := width * height
	if n > maxInt/channels {
		return 0, false
	}
	return n * channels, true
}
