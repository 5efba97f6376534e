package sdruntime

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Binding wraps an Engine with the create/generate/destroy protocol:
// parameter defaults, failure translation and diagnostics.
//
// Binding adds no locking of its own. Callers serialize operations on a
// single Context.
type Binding struct {
	engine Engine
	logger *zap.Logger
}

// NewBinding creates a Binding over engine. A nil logger disables logging.
func NewBinding(engine Engine, logger *zap.Logger) *Binding {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Binding{
		engine: engine,
		logger: logger.Named("sdruntime"),
	}
}

// Engine returns the wrapped engine.
func (b *Binding) Engine() Engine {
	return b.engine
}

// Create builds an EngineConfig and asks the engine for a context exactly
// once. The thread count is the host's physical core count.
//
// Returns ErrModelLoadFailed when the engine reports failure; no context is
// allocated in that case.
func (b *Binding) Create(modelPath string, offloadToCPU, keepClipOnCPU, keepVAEOnCPU bool) (Context, error) {
	cfg := NewEngineConfig(modelPath, b.engine.PhysicalCores(), offloadToCPU, keepClipOnCPU, keepVAEOnCPU)

	b.logger.Info("Initializing Stable Diffusion",
		zap.String("model_path", cfg.ModelPath),
		zap.Int("threads", cfg.NumThreads),
		zap.Bool("offload_params_to_cpu", cfg.OffloadParamsToCPU),
		zap.Bool("keep_clip_on_cpu", cfg.KeepClipOnCPU),
		zap.Bool("keep_vae_on_cpu", cfg.KeepVAEOnCPU),
	)

	start := time.Now()
	ctx := b.engine.NewContext(cfg)
	if ctx == nil {
		b.logger.Error("Failed to create sd context", zap.String("model_path", cfg.ModelPath))
		return nil, fmt.Errorf("%w: %s", ErrModelLoadFailed, cfg.ModelPath)
	}

	b.logger.Debug("sd context created", zap.Duration("duration", time.Since(start)))
	return ctx, nil
}

// Generate applies request defaults and calls the engine exactly once. There
// are no retries.
//
// A nil result and a result without pixel data are both reported as
// ErrGenerationFailed. In the latter case the result is freed before
// returning. On success the caller owns the returned buffer and must Free it.
func (b *Binding) Generate(ctx Context, req GenerationRequest) (ImageBuffer, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	req = ApplyDefaults(req, b.engine.DefaultSampleParams())

	start := time.Now()
	img := b.engine.GenerateImage(ctx, req)
	if img == nil {
		b.logger.Warn("generate_image failed", zap.Object("request", req))
		return nil, ErrGenerationFailed
	}
	if img.Data() == nil {
		img.Free()
		b.logger.Warn("generate_image returned no pixel data", zap.Object("request", req))
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, ErrEmptyImage)
	}

	b.logger.Debug("image generated",
		zap.Object("request", req),
		zap.Int("channels", img.Channels()),
		zap.Duration("duration", time.Since(start)),
	)
	return img, nil
}

// Destroy frees ctx. A nil ctx is a no-op.
func (b *Binding) Destroy(ctx Context) {
	if ctx == nil {
		return
	}
	b.engine.FreeContext(ctx)
}

// BackendInfo returns information about the engine's compute backend.
func (b *Binding) BackendInfo() string {
	return b.engine.BackendInfo()
}
