// Package enginetest provides an in-memory sdruntime.Engine that tracks
// every context and image it hands out, so tests can assert that each one
// is freed exactly once.
package enginetest

import (
	"sync"

	"sdloader/sdruntime"
)

// Engine is a deterministic fake. Configure the exported fields before the
// first call; counters are safe for concurrent use.
type Engine struct {
	// DefaultSteps is reported by DefaultSampleParams.
	DefaultSteps int
	// Channels is the channel count of generated images.
	Channels int
	// Cores is reported by PhysicalCores.
	Cores int
	// FailCreate makes NewContext return nil.
	FailCreate bool
	// FailGenerate makes GenerateImage return nil.
	FailGenerate bool
	// NilData makes GenerateImage return an image without pixel data.
	NilData bool
	// Gate, if non-nil, blocks GenerateImage until it receives or is closed.
	Gate chan struct{}

	mu              sync.Mutex
	nextID          int
	contextsCreated int
	contextsFreed   int
	imagesCreated   int
	imagesFreed     int
	doubleFrees     int
	useAfterFree    int
	overlaps        int
	inflight        map[*Context]int
	lastConfig      sdruntime.EngineConfig
	requests        []sdruntime.GenerationRequest
}

// New returns an engine with 20 default steps, RGB output and four cores.
func New() *Engine {
	return &Engine{
		DefaultSteps: sdruntime.DefaultSampleSteps,
		Channels:     3,
		Cores:        4,
	}
}

// Context is the fake engine context.
type Context struct {
	ID    int
	Model string
	freed bool
}

// Image is the fake engine image.
type Image struct {
	engine   *Engine
	width    int
	height   int
	channels int
	data     []byte
	freed    bool
}

// Pixels returns the bytes the engine produces for the given geometry and
// seed. Tests compare host copies against it.
func Pixels(width, height, channels int, seed int64) []byte {
	n, ok := sdruntime.ByteLen(width, height, channels)
	if !ok {
		return nil
	}
	out := make([]byte, n)
	s := int(uint64(seed) % 251)
	for i := range out {
		out[i] = byte((i + s) % 251)
	}
	return out
}

// NewContext implements sdruntime.Engine.
func (e *Engine) NewContext(cfg sdruntime.EngineConfig) sdruntime.Context {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastConfig = cfg
	if e.FailCreate {
		return nil
	}
	e.nextID++
	e.contextsCreated++
	return &Context{ID: e.nextID, Model: cfg.ModelPath}
}

// DefaultSampleParams implements sdruntime.Engine.
func (e *Engine) DefaultSampleParams() sdruntime.SampleParams {
	return sdruntime.SampleParams{
		SampleSteps:   e.DefaultSteps,
		GuidanceScale: sdruntime.DefaultGuidanceScale,
	}
}

// GenerateImage implements sdruntime.Engine.
func (e *Engine) GenerateImage(ctx sdruntime.Context, req sdruntime.GenerationRequest) sdruntime.ImageBuffer {
	c, _ := ctx.(*Context)

	e.mu.Lock()
	e.requests = append(e.requests, req)
	if c == nil || c.freed {
		e.useAfterFree++
		e.mu.Unlock()
		return nil
	}
	if e.inflight == nil {
		e.inflight = make(map[*Context]int)
	}
	e.inflight[c]++
	if e.inflight[c] > 1 {
		e.overlaps++
	}
	e.mu.Unlock()

	if e.Gate != nil {
		<-e.Gate
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.inflight[c]--

	if e.FailGenerate {
		return nil
	}
	e.imagesCreated++
	img := &Image{
		engine:   e,
		width:    req.Width,
		height:   req.Height,
		channels: e.Channels,
	}
	if !e.NilData {
		img.data = Pixels(req.Width, req.Height, e.Channels, req.Seed)
	}
	return img
}

// FreeContext implements sdruntime.Engine.
func (e *Engine) FreeContext(ctx sdruntime.Context) {
	c, ok := ctx.(*Context)
	if !ok || c == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if c.freed {
		e.doubleFrees++
		return
	}
	c.freed = true
	e.contextsFreed++
}

// PhysicalCores implements sdruntime.Engine.
func (e *Engine) PhysicalCores() int { return e.Cores }

// BackendInfo implements sdruntime.Engine.
func (e *Engine) BackendInfo() string { return "enginetest" }

// Width implements sdruntime.ImageBuffer.
func (i *Image) Width() int { return i.width }

// Height implements sdruntime.ImageBuffer.
func (i *Image) Height() int { return i.height }

// Channels implements sdruntime.ImageBuffer.
func (i *Image) Channels() int { return i.channels }

// Data implements sdruntime.ImageBuffer.
func (i *Image) Data() []byte { return i.data }

// Free implements sdruntime.ImageBuffer.
func (i *Image) Free() {
	e := i.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if i.freed {
		e.doubleFrees++
		return
	}
	i.freed = true
	i.data = nil
	e.imagesFreed++
}

// ContextsCreated returns how many contexts NewContext handed out.
func (e *Engine) ContextsCreated() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.contextsCreated
}

// ContextsFreed returns how many distinct contexts were freed.
func (e *Engine) ContextsFreed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.contextsFreed
}

// ImagesCreated returns how many images GenerateImage handed out.
func (e *Engine) ImagesCreated() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.imagesCreated
}

// ImagesFreed returns how many distinct images were freed.
func (e *Engine) ImagesFreed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.imagesFreed
}

// DoubleFrees counts Free or FreeContext calls on already-freed objects.
func (e *Engine) DoubleFrees() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doubleFrees
}

// UseAfterFree counts GenerateImage calls on a nil or freed context.
func (e *Engine) UseAfterFree() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.useAfterFree
}

// Overlaps counts GenerateImage calls that started while another call on
// the same context was still running.
func (e *Engine) Overlaps() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.overlaps
}

// LastConfig returns the config passed to the most recent NewContext.
func (e *Engine) LastConfig() sdruntime.EngineConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastConfig
}

// Requests returns a copy of every request GenerateImage received.
func (e *Engine) Requests() []sdruntime.GenerationRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]sdruntime.GenerationRequest, len(e.requests))
	copy(out, e.requests)
	return out
}

// LastRequest returns the most recent request, or the zero value.
func (e *Engine) LastRequest() sdruntime.GenerationRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.requests) == 0 {
		return sdruntime.GenerationRequest{}
	}
	return e.requests[len(e.requests)-1]
}

var _ sdruntime.Engine = (*Engine)(nil)
var _ sdruntime.ImageBuffer = (*Image)(nil)
