//go:build sd && cgo

// Real CGo implementation of stable-diffusion.cpp bindings.
// Build with: CGO_ENABLED=1 go build -tags sd
//
// Prerequisites:
//   1. stable-diffusion.cpp must be compiled as a shared library
//   2. Set CGO_CFLAGS to include header path: -I/path/to/stable-diffusion.cpp
//   3. Set CGO_LDFLAGS to link library: -L/path/to/build -lstable-diffusion

package sdruntime

/*
#cgo CFLAGS: -I${SRCDIR}/../deps/stable-diffusion.cpp
#cgo LDFLAGS: -L${SRCDIR}/../lib -lstable-diffusion -lm -lstdc++
#cgo linux LDFLAGS: -Wl,-rpath,${SRCDIR}/../lib

#include <stdlib.h>
#include <stdbool.h>
#include <stdint.h>
#include "stable-diffusion.h"

static sd_ctx_t* sdl_new_ctx(const char* model_path, int n_threads, bool free_params,
                             bool offload, bool keep_clip, bool keep_vae) {
    sd_ctx_params_t p;
    sd_ctx_params_init(&p);
    p.model_path = model_path;
    p.free_params_immediately = free_params;
    p.n_threads = n_threads;
    p.offload_params_to_cpu = offload;
    p.keep_clip_on_cpu = keep_clip;
    p.keep_vae_on_cpu = keep_vae;
    return new_sd_ctx(&p);
}

static int sdl_default_steps(void) {
    sd_sample_params_t s;
    sd_sample_params_init(&s);
    return s.sample_steps;
}

static sd_image_t* sdl_txt2img(sd_ctx_t* ctx, const char* prompt, const char* negative,
                               int width, int height, int steps, float cfg,
                               int64_t seed, int batch) {
    sd_sample_params_t sample;
    sd_sample_params_init(&sample);
    sample.sample_steps = steps;
    sample.guidance.txt_cfg = cfg;

    sd_img_gen_params_t gen;
    sd_img_gen_params_init(&gen);
    gen.prompt = prompt;
    gen.negative_prompt = negative;
    gen.width = width;
    gen.height = height;
    gen.sample_params = sample;
    gen.seed = seed;
    gen.batch_count = batch;
    return generate_image(ctx, &gen);
}

static void sdl_free_image(sd_image_t* img) {
    if (img == NULL) {
        return;
    }
    free(img->data);
    free(img);
}
*/
import "C"

import (
	"sync"
	"unsafe"
)

const isStub = false

// cContext holds the C context pointer. ptr is cleared by FreeContext.
type cContext struct {
	ptr *C.sd_ctx_t
}

// cImage is a generate_image result. Data views C memory until Free.
type cImage struct {
	img  *C.sd_image_t
	once sync.Once
}

type sdEngine struct{}

func newNativeEngine() Engine {
	return sdEngine{}
}

func (sdEngine) NewContext(cfg EngineConfig) Context {
	cModelPath := C.CString(cfg.ModelPath)
	defer C.free(unsafe.Pointer(cModelPath))

	ptr := C.sdl_new_ctx(
		cModelPath,
		C.int(cfg.NumThreads),
		C.bool(cfg.FreeParamsImmediately),
		C.bool(cfg.OffloadParamsToCPU),
		C.bool(cfg.KeepClipOnCPU),
		C.bool(cfg.KeepVAEOnCPU),
	)
	if ptr == nil {
		return nil
	}
	return &cContext{ptr: ptr}
}

func (sdEngine) DefaultSampleParams() SampleParams {
	return SampleParams{
		SampleSteps:   int(C.sdl_default_steps()),
		GuidanceScale: DefaultGuidanceScale,
	}
}

func (sdEngine) GenerateImage(ctx Context, req GenerationRequest) ImageBuffer {
	cc, ok := ctx.(*cContext)
	if !ok || cc == nil || cc.ptr == nil {
		return nil
	}

	cPrompt := C.CString(req.Prompt)
	defer C.free(unsafe.Pointer(cPrompt))
	cNegative := C.CString(req.NegativePrompt)
	defer C.free(unsafe.Pointer(cNegative))

	img := C.sdl_txt2img(
		cc.ptr,
		cPrompt,
		cNegative,
		C.int(req.Width),
		C.int(req.Height),
		C.int(req.Steps),
		C.float(req.GuidanceScale),
		C.int64_t(req.Seed),
		C.int(req.BatchCount),
	)
	if img == nil {
		return nil
	}
	return &cImage{img: img}
}

func (sdEngine) FreeContext(ctx Context) {
	cc, ok := ctx.(*cContext)
	if !ok || cc == nil || cc.ptr == nil {
		return
	}
	C.free_sd_ctx(cc.ptr)
	cc.ptr = nil
}

func (sdEngine) PhysicalCores() int {
	return int(C.get_num_physical_cores())
}

func (sdEngine) BackendInfo() string {
	info := C.sd_get_system_info()
	if info == nil {
		return "sd"
	}
	return C.GoString(info)
}

func (c *cImage) Width() int {
	if c.img == nil {
		return 0
	}
	return int(c.img.width)
}

func (c *cImage) Height() int {
	if c.img == nil {
		return 0
	}
	return int(c.img.height)
}

func (c *cImage) Channels() int {
	if c.img == nil {
		return 0
	}
	return int(c.img.channel)
}

func (c *cImage) Data() []byte {
	if c.img == nil || c.img.data == nil {
		return nil
	}
	n, ok := ByteLen(c.Width(), c.Height(), c.Channels())
	if !ok {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(c.img.data)), n)
}

func (c *cImage) Free() {
	c.once.Do(func() {
		C.sdl_free_image(c.img)
		c.img = nil
	})
}
