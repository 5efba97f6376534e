// Package sdruntime provides a CGo wrapper for stable-diffusion.cpp image generation.
//
// The package is split into two layers:
//
//   - Engine: the raw collaborator. NewNativeEngine returns the cgo-backed
//     implementation when built with the "sd" tag, and a stub that fails
//     every load otherwise.
//   - Binding: the create/generate/destroy protocol on top of an Engine.
//     It fills sampler defaults, translates nil results into errors and
//     frees engine images that carry no pixel data.
//
// Ownership of native memory never leaves this package implicitly. A
// successful Binding.Generate returns an ImageBuffer that the caller must
// Free exactly once; callers that copy pixels out do so before freeing.
//
// # Quick Start
//
//	binding := sdruntime.NewBinding(sdruntime.NewNativeEngine(), logger)
//
//	ctx, err := binding.Create("/models/sd-v1-5.safetensors", false, false, false)
//	if err != nil {
//	    return err
//	}
//	defer binding.Destroy(ctx)
//
//	img, err := binding.Generate(ctx, sdruntime.GenerationRequest{
//	    Prompt: "a sunset over mountains",
//	    Width:  512,
//	    Height: 512,
//	    Seed:   42,
//	})
//	if err != nil {
//	    return err
//	}
//	defer img.Free()
//
// # Configuration
//
// LoadSDConfig reads defaults from environment variables:
//
//	SD_MODEL_PATH=/models/sd.gguf  # Model file
//	SD_OFFLOAD_TO_CPU=false        # Keep weights in host RAM
//	SD_KEEP_CLIP_ON_CPU=false      # Run the text encoder on CPU
//	SD_KEEP_VAE_ON_CPU=false       # Run the VAE on CPU
//	SD_IMAGE_WIDTH=512             # Default width
//	SD_IMAGE_HEIGHT=512            # Default height
//	SD_INFERENCE_STEPS=20          # Default sampling steps
//	SD_GUIDANCE_SCALE=7.0          # Default CFG scale
//	SD_NEGATIVE_PROMPT=""          # Default negative prompt
//	SD_SEED=-1                     # Default seed, negative randomizes
//	SD_MAX_BUFFER_MB=256           # Ceiling for host pixel buffers
//
// LoadSDConfigFile reads the same keys from YAML, with the environment
// taking precedence.
//
// # Build Requirements
//
// The native engine links against libstable-diffusion:
//
//	go build -tags sd ./...
//
// with headers under deps/stable-diffusion.cpp and the library under lib/.
package sdruntime
