// Package boundary is the host-facing surface of sdloader.
//
// A Loader exposes three synchronous operations over opaque handle tokens:
// LoadModel creates an engine context, Txt2Img runs one generation and
// returns a host-owned copy of the pixels, and Release frees the context.
// Failures never escape as panics or errors on this surface: LoadModel
// returns handle.Invalid and Txt2Img returns nil. Go callers that want the
// cause use Create and Generate instead.
//
// Every engine image is released natively exactly once, including when the
// host buffer cannot be allocated.
package boundary

import (
	"time"

	"go.uber.org/zap"

	"sdloader/handle"
	"sdloader/logging"
	"sdloader/sdruntime"
)

// Options configures a Loader. Zero values select a HeapAllocator without
// a limit, no observer and a no-op logger.
type Options struct {
	Allocator Allocator
	Observer  Observer
	Logger    *logging.Logger
}

// Image is a host-owned generation result. Pixels are interleaved and
// exactly Width*Height*Channels bytes long.
type Image struct {
	Pixels   []byte
	Width    int
	Height   int
	Channels int
}

// Loader drives an engine through handle tokens. It is safe for concurrent
// use. Calls on distinct handles run independently; calls on the same
// handle are serialized.
type Loader struct {
	binding  *sdruntime.Binding
	registry *handle.Registry
	alloc    Allocator
	observer Observer
	logger   *logging.Logger
	gen      *logging.GenerationLogger
}

// NewLoader wires engine into a Loader.
func NewLoader(engine sdruntime.Engine, opts Options) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	alloc := opts.Allocator
	if alloc == nil {
		alloc = HeapAllocator{}
	}

	binding := sdruntime.NewBinding(engine, logger.Zap())
	return &Loader{
		binding:  binding,
		registry: handle.NewRegistry(binding, logger.Zap()),
		alloc:    alloc,
		observer: opts.Observer,
		logger:   logger.Named("boundary"),
		gen:      logging.NewGenerationLogger(logger.Named("boundary")),
	}
}

// LoadModel creates a context for modelPath and returns its token, or
// handle.Invalid on failure. A nil modelPath is treated as "".
func (l *Loader) LoadModel(modelPath *string, offloadToCPU, keepClipOnCPU, keepVAEOnCPU bool) handle.Token {
	tok, err := l.Create(DecodeText(modelPath), offloadToCPU, keepClipOnCPU, keepVAEOnCPU)
	if err != nil {
		return handle.Invalid
	}
	return tok
}

// Txt2Img generates one image on the handle and returns the raw pixels, or
// nil on any failure. The handle stays usable after a failed generation.
func (l *Loader) Txt2Img(tok handle.Token, prompt, negativePrompt *string, width, height, steps int32, cfgScale float32, seed int64) []byte {
	img, err := l.Generate(tok, sdruntime.GenerationRequest{
		Prompt:         DecodeText(prompt),
		NegativePrompt: DecodeText(negativePrompt),
		Width:          int(width),
		Height:         int(height),
		Steps:          int(steps),
		GuidanceScale:  cfgScale,
		Seed:           seed,
	})
	if err != nil {
		return nil
	}
	return img.Pixels
}

// Release frees the context behind tok. It is a no-op for handle.Invalid,
// unknown tokens and tokens that were already released.
func (l *Loader) Release(tok handle.Token) {
	l.release(tok)
}

func (l *Loader) release(tok handle.Token) bool {
	start := time.Now()
	released := l.registry.Release(tok)
	if released {
		l.logger.Info("Model released", zap.Stringer("handle", tok))
	} else {
		l.logger.Debug("release ignored", zap.Stringer("handle", tok))
	}
	l.observe(Event{
		Kind:     EventRelease,
		Handle:   tok,
		Released: released,
		Duration: time.Since(start),
	})
	return released
}

// Create loads a model and registers the context. On failure no context
// remains allocated and the returned error wraps
// sdruntime.ErrModelLoadFailed.
func (l *Loader) Create(modelPath string, offloadToCPU, keepClipOnCPU, keepVAEOnCPU bool) (handle.Token, error) {
	start := time.Now()
	ev := Event{Kind: EventLoad, ModelPath: modelPath}

	ctx, err := l.binding.Create(modelPath, offloadToCPU, keepClipOnCPU, keepVAEOnCPU)
	if err != nil {
		l.logger.Error("Failed to load model", zap.String("model_path", modelPath), zap.Error(err))
		ev.Err, ev.Duration = err, time.Since(start)
		l.observe(ev)
		return handle.Invalid, err
	}

	tok, err := l.registry.Acquire(ctx)
	if err != nil {
		l.binding.Destroy(ctx)
		ev.Err, ev.Duration = err, time.Since(start)
		l.observe(ev)
		return handle.Invalid, err
	}

	ev.Handle, ev.Duration = tok, time.Since(start)
	l.logger.Info("Model loaded",
		zap.Stringer("handle", tok),
		zap.String("model_path", modelPath),
		zap.Duration("duration", ev.Duration),
	)
	l.observe(ev)
	return tok, nil
}

// Generate runs one generation on the handle and copies the result into a
// buffer from the Loader's Allocator.
//
// Errors: handle.ErrInvalidToken or handle.ErrReleased without touching the
// engine; sdruntime.ErrGenerationFailed when the engine fails;
// ErrHostAllocation, ErrShortBuffer or ErrBadDimensions after the engine
// image has been released.
func (l *Loader) Generate(tok handle.Token, req sdruntime.GenerationRequest) (Image, error) {
	resolved := sdruntime.ApplyDefaults(req, l.binding.Engine().DefaultSampleParams())
	ev := Event{Kind: EventGenerate, Handle: tok, Request: resolved}

	timer := l.gen.Start(generationMetrics(tok, resolved))
	var out hostImage
	err := l.registry.Do(tok, func(rec *handle.Record) error {
		img, err := l.binding.Generate(rec.Context(), req)
		if err != nil {
			return err
		}
		out, err = copyOut(img, l.alloc)
		if err != nil {
			return err
		}
		rec.SetLastSize(out.width, out.height)
		return nil
	})
	ev.Duration = time.Since(timer.StartTime)

	if err != nil {
		l.gen.Fail(timer, err)
		ev.Err = err
		l.observe(ev)
		return Image{}, err
	}

	l.gen.End(timer, len(out.pixels))
	ev.Width, ev.Height, ev.Channels, ev.Bytes = out.width, out.height, out.channels, len(out.pixels)
	l.observe(ev)
	return Image{
		Pixels:   out.pixels,
		Width:    out.width,
		Height:   out.height,
		Channels: out.channels,
	}, nil
}

// LastSize returns the dimensions of the last successful generation on the
// handle.
func (l *Loader) LastSize(tok handle.Token) (width, height int, err error) {
	err = l.registry.Do(tok, func(rec *handle.Record) error {
		width, height = rec.LastSize()
		return nil
	})
	return width, height, err
}

// Close releases every live handle and returns how many were freed. The
// Loader stays usable. Shutdown paths call it so that no context outlives
// the process's host.
func (l *Loader) Close() int {
	n := 0
	for _, tok := range l.registry.Tokens() {
		if l.release(tok) {
			n++
		}
	}
	if n > 0 {
		l.logger.Info("Released remaining handles", zap.Int("count", n))
	}
	return n
}

// Stats returns handle registry counters.
func (l *Loader) Stats() handle.Stats {
	return l.registry.Stats()
}

// BackendInfo describes the engine's compute backend.
func (l *Loader) BackendInfo() string {
	return l.binding.BackendInfo()
}

func (l *Loader) observe(e Event) {
	if l.observer != nil {
		l.observer.Observe(e)
	}
}

func generationMetrics(tok handle.Token, req sdruntime.GenerationRequest) logging.GenerationMetrics {
	return logging.GenerationMetrics{
		Handle:      tok.String(),
		PromptLen:   len(req.Prompt),
		NegativeLen: len(req.NegativePrompt),
		Width:       req.Width,
		Height:      req.Height,
		Steps:       req.Steps,
		Guidance:    req.GuidanceScale,
		Seed:        req.Seed,
	}
}
