package sdruntime_test

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"sdloader/sdruntime"
	"sdloader/sdruntime/enginetest"
)

func TestBindingCreate_PassesConfig(t *testing.T) {
	eng := enginetest.New()
	eng.Cores = 6
	b := sdruntime.NewBinding(eng, nil)

	ctx, err := b.Create("model.bin", true, false, true)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ctx == nil {
		t.Fatal("Create() returned nil context")
	}

	cfg := eng.LastConfig()
	want := sdruntime.EngineConfig{
		ModelPath:             "model.bin",
		NumThreads:            6,
		OffloadParamsToCPU:    true,
		KeepClipOnCPU:         false,
		KeepVAEOnCPU:          true,
		FreeParamsImmediately: true,
	}
	if cfg != want {
		t.Errorf("EngineConfig = %+v, want %+v", cfg, want)
	}
}

func TestBindingCreate_EmptyPathPassedThrough(t *testing.T) {
	eng := enginetest.New()
	b := sdruntime.NewBinding(eng, nil)

	if _, err := b.Create("", false, false, false); err != nil {
		t.Fatalf("Create(\"\") error = %v", err)
	}
	if got := eng.LastConfig().ModelPath; got != "" {
		t.Errorf("ModelPath = %q, want empty", got)
	}
}

func TestBindingCreate_Failure(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	eng := enginetest.New()
	eng.FailCreate = true
	b := sdruntime.NewBinding(eng, zap.New(core))

	ctx, err := b.Create("missing.safetensors", false, false, false)
	if !errors.Is(err, sdruntime.ErrModelLoadFailed) {
		t.Fatalf("Create() error = %v, want ErrModelLoadFailed", err)
	}
	if ctx != nil {
		t.Errorf("Create() context = %v, want nil", ctx)
	}
	if eng.ContextsCreated() != 0 {
		t.Errorf("ContextsCreated = %d, want 0", eng.ContextsCreated())
	}
	if logs.FilterMessage("Failed to create sd context").Len() != 1 {
		t.Error("expected one failure log entry")
	}
}

func TestBindingGenerate_AppliesDefaults(t *testing.T) {
	tests := []struct {
		name      string
		steps     int
		cfg       float32
		wantSteps int
		wantCfg   float32
	}{
		{"explicit", 30, 9.5, 30, 9.5},
		{"zero steps", 0, 7.5, 20, 7.5},
		{"negative steps", -3, 7.5, 20, 7.5},
		{"zero guidance", 25, 0, 25, 7.0},
		{"negative guidance", 25, -1, 25, 7.0},
		{"both defaulted", 0, -1, 20, 7.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := enginetest.New()
			b := sdruntime.NewBinding(eng, nil)
			ctx, err := b.Create("model.bin", false, false, false)
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			defer b.Destroy(ctx)

			img, err := b.Generate(ctx, sdruntime.GenerationRequest{
				Prompt:        "a cat",
				Width:         8,
				Height:        8,
				Steps:         tt.steps,
				GuidanceScale: tt.cfg,
				Seed:          42,
			})
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			img.Free()

			req := eng.LastRequest()
			if req.Steps != tt.wantSteps {
				t.Errorf("Steps = %d, want %d", req.Steps, tt.wantSteps)
			}
			if req.GuidanceScale != tt.wantCfg {
				t.Errorf("GuidanceScale = %v, want %v", req.GuidanceScale, tt.wantCfg)
			}
			if req.BatchCount != 1 {
				t.Errorf("BatchCount = %d, want 1", req.BatchCount)
			}
			if req.Seed != 42 {
				t.Errorf("Seed = %d, want 42", req.Seed)
			}
		})
	}
}

func TestBindingGenerate_NilContext(t *testing.T) {
	eng := enginetest.New()
	b := sdruntime.NewBinding(eng, nil)

	_, err := b.Generate(nil, sdruntime.GenerationRequest{Width: 8, Height: 8})
	if !errors.Is(err, sdruntime.ErrNilContext) {
		t.Errorf("Generate(nil) error = %v, want ErrNilContext", err)
	}
	if len(eng.Requests()) != 0 {
		t.Error("engine should not be called with a nil context")
	}
}

func TestBindingGenerate_EngineFailure(t *testing.T) {
	eng := enginetest.New()
	eng.FailGenerate = true
	b := sdruntime.NewBinding(eng, nil)
	ctx, _ := b.Create("model.bin", false, false, false)
	defer b.Destroy(ctx)

	img, err := b.Generate(ctx, sdruntime.GenerationRequest{Width: 8, Height: 8})
	if !errors.Is(err, sdruntime.ErrGenerationFailed) {
		t.Fatalf("Generate() error = %v, want ErrGenerationFailed", err)
	}
	if img != nil {
		t.Error("Generate() returned an image on failure")
	}
	if n := len(eng.Requests()); n != 1 {
		t.Errorf("engine called %d times, want 1", n)
	}
}

func TestBindingGenerate_NilDataIsFreed(t *testing.T) {
	eng := enginetest.New()
	eng.NilData = true
	b := sdruntime.NewBinding(eng, nil)
	ctx, _ := b.Create("model.bin", false, false, false)
	defer b.Destroy(ctx)

	_, err := b.Generate(ctx, sdruntime.GenerationRequest{Width: 8, Height: 8})
	if !errors.Is(err, sdruntime.ErrGenerationFailed) || !errors.Is(err, sdruntime.ErrEmptyImage) {
		t.Fatalf("Generate() error = %v, want ErrGenerationFailed wrapping ErrEmptyImage", err)
	}
	if eng.ImagesFreed() != 1 {
		t.Errorf("ImagesFreed = %d, want 1", eng.ImagesFreed())
	}
}

func TestBindingDestroy(t *testing.T) {
	eng := enginetest.New()
	b := sdruntime.NewBinding(eng, nil)

	b.Destroy(nil)
	if eng.ContextsFreed() != 0 {
		t.Errorf("Destroy(nil) freed %d contexts", eng.ContextsFreed())
	}

	ctx, _ := b.Create("model.bin", false, false, false)
	b.Destroy(ctx)
	if eng.ContextsFreed() != 1 {
		t.Errorf("ContextsFreed = %d, want 1", eng.ContextsFreed())
	}
}

func TestBindingGenerate_LogsWithoutPromptText(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	eng := enginetest.New()
	eng.FailGenerate = true
	b := sdruntime.NewBinding(eng, zap.New(core))
	ctx, _ := b.Create("model.bin", false, false, false)
	defer b.Destroy(ctx)

	_, _ = b.Generate(ctx, sdruntime.GenerationRequest{Prompt: "secret prompt", Width: 8, Height: 8})

	entries := logs.FilterMessage("generate_image failed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d failure entries, want 1", len(entries))
	}
	req, ok := entries[0].ContextMap()["request"].(map[string]interface{})
	if !ok {
		t.Fatalf("request field missing or wrong type: %#v", entries[0].ContextMap())
	}
	if _, present := req["prompt"]; present {
		t.Error("prompt text must not be logged")
	}
	if req["prompt_len"] != len("secret prompt") {
		t.Errorf("prompt_len = %v, want %d", req["prompt_len"], len("secret prompt"))
	}
}
