// This file contains the backend-independent entry points. The native engine
// lives in cgo_bindings_sd.go (built with the "sd" tag) and falls back to the
// stub in cgo_bindings_stub.go otherwise.
//
// Build requirements for real CGo implementation:
//   - stable-diffusion.cpp compiled as shared library (libstable-diffusion.so/dylib/dll)
//   - Header file: stable-diffusion.h
//   - Set CGO_CFLAGS and CGO_LDFLAGS appropriately
//
// Example build with real library:
//
//	CGO_CFLAGS="-I/path/to/stable-diffusion.cpp" \
//	CGO_LDFLAGS="-L/path/to/stable-diffusion.cpp/build -lstable-diffusion" \
//	go build -tags sd
//
// Example build without library (stub mode):
//
//	go build

package sdruntime

// DefaultSampleSteps is the sampler step count stable-diffusion.cpp uses
// when sd_sample_params_init is not overridden.
const DefaultSampleSteps = 20

// NewNativeEngine returns the engine selected at build time: the
// stable-diffusion.cpp backend with -tags sd, the stub otherwise.
func NewNativeEngine() Engine {
	return newNativeEngine()
}

// GetBackendInfo returns information about the available compute backend.
func GetBackendInfo() string {
	return newNativeEngine().BackendInfo()
}

// IsStubBackend reports whether the binary was built without the native
// library.
func IsStubBackend() bool {
	return isStub
}
