//go:build !sd || !cgo

// Stub implementation of CGo bindings for when stable-diffusion.cpp is not available.
// Build without the "sd" tag (or with CGO_ENABLED=0) to select it.

package sdruntime

const isStub = true

// stubEngine cannot load models; every NewContext call fails so the
// protocol's failure paths stay exercisable without the library.
type stubEngine struct{}

func newNativeEngine() Engine {
	return stubEngine{}
}

func (stubEngine) NewContext(EngineConfig) Context {
	return nil
}

func (stubEngine) DefaultSampleParams() SampleParams {
	return SampleParams{SampleSteps: DefaultSampleSteps, GuidanceScale: DefaultGuidanceScale}
}

func (stubEngine) GenerateImage(Context, GenerationRequest) ImageBuffer {
	return nil
}

func (stubEngine) FreeContext(Context) {}

// PhysicalCores returns 0: without the library there is no physical core
// probe, and runtime.NumCPU counts logical CPUs.
func (stubEngine) PhysicalCores() int {
	return 0
}

func (stubEngine) BackendInfo() string {
	return "stub (no stable-diffusion.cpp library linked)"
}
