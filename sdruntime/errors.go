package sdruntime

import "errors"

// Sentinel errors for SD runtime operations.
// These are domain-specific errors that provide clear failure modes.
var (
	// Context lifecycle errors
	ErrModelLoadFailed = errors.New("sdruntime: failed to load model")
	ErrNilContext      = errors.New("sdruntime: context is nil")

	// Generation errors
	ErrGenerationFailed = errors.New("sdruntime: image generation failed")
	ErrEmptyImage       = errors.New("sdruntime: engine returned an image without pixel data")

	// Configuration errors
	ErrInvalidConfig = errors.New("sdruntime: invalid configuration")
)
