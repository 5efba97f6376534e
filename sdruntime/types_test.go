package sdruntime

import (
	"strings"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	defaults := SampleParams{SampleSteps: 25, GuidanceScale: 5}

	got := ApplyDefaults(GenerationRequest{Steps: 0, GuidanceScale: -1, Seed: -1, BatchCount: 9}, defaults)
	if got.Steps != 25 {
		t.Errorf("Steps = %d, want engine default 25", got.Steps)
	}
	if got.GuidanceScale != DefaultGuidanceScale {
		t.Errorf("GuidanceScale = %v, want %v", got.GuidanceScale, DefaultGuidanceScale)
	}
	if got.BatchCount != 1 {
		t.Errorf("BatchCount = %d, want 1", got.BatchCount)
	}
	if got.Seed != -1 {
		t.Errorf("Seed = %d, want -1 passed through", got.Seed)
	}

	kept := ApplyDefaults(GenerationRequest{Steps: 3, GuidanceScale: 0.5}, defaults)
	if kept.Steps != 3 || kept.GuidanceScale != 0.5 {
		t.Errorf("explicit values overwritten: %+v", kept)
	}
}

func TestByteLen(t *testing.T) {
	const maxInt = int(^uint(0) >> 1)
	tests := []struct {
		name    string
		w, h, c int
		want    int
		ok      bool
	}{
		{"rgb 64", 64, 64, 3, 64 * 64 * 3, true},
		{"gray 1x1", 1, 1, 1, 1, true},
		{"zero width", 0, 64, 3, 0, false},
		{"negative height", 64, -1, 3, 0, false},
		{"zero channels", 64, 64, 0, 0, false},
		{"overflow wh", maxInt / 2, 3, 1, 0, false},
		{"overflow channels", maxInt / 4, 1, 8, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ByteLen(tt.w, tt.h, tt.c)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ByteLen(%d, %d, %d) = %d, %v; want %d, %v", tt.w, tt.h, tt.c, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestGenerationRequestString(t *testing.T) {
	req := GenerationRequest{Prompt: "hidden", Width: 64, Height: 32, Steps: 20, GuidanceScale: 7.5, Seed: 42}
	s := req.String()
	if strings.Contains(s, "hidden") {
		t.Errorf("String() leaks prompt: %q", s)
	}
	if s != "64x32 steps=20 cfg=7.50 seed=42" {
		t.Errorf("String() = %q", s)
	}
}
