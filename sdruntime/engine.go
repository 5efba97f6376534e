package sdruntime

// Context is an opaque engine context: loaded weights plus compute buffers.
// A nil Context means creation failed. Only the Engine that produced a
// Context may interpret it.
type Context interface{}

// ImageBuffer is an engine-owned output image. Data is a borrowed view of
// native memory and is valid only until Free is called. Free releases the
// pixel data and the enclosing record; it must be called exactly once.
type ImageBuffer interface {
	Width() int
	Height() int
	Channels() int
	Data() []byte
	Free()
}

// Engine is the external image-generation collaborator. Implementations
// are not assumed to be reentrant for the same Context.
type Engine interface {
	// NewContext loads a model. It returns nil on failure.
	NewContext(cfg EngineConfig) Context
	// DefaultSampleParams reports the engine's built-in sampler defaults.
	DefaultSampleParams() SampleParams
	// GenerateImage runs one generation. It returns nil on failure. A non-nil
	// result is owned by the caller until Free.
	GenerateImage(ctx Context, req GenerationRequest) ImageBuffer
	// FreeContext releases a context created by NewContext.
	FreeContext(ctx Context)
	// PhysicalCores reports the host's physical core count, or 0 when
	// the backend cannot determine it.
	PhysicalCores() int
	// BackendInfo describes the compute backend.
	BackendInfo() string
}
