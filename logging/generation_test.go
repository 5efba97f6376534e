package logging

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGenerationLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGenerationLogger(NewFromZap(zap.New(core)))

	timer := gl.Start(GenerationMetrics{Handle: "0x1", PromptLen: 5, Width: 64, Height: 64, Steps: 20, Guidance: 7.5, Seed: 42})
	timer.StartTime = timer.StartTime.Add(-time.Second)
	m := gl.End(timer, 64*64*3)

	if m.Bytes != 64*64*3 {
		t.Errorf("Bytes = %d", m.Bytes)
	}
	if m.Duration < time.Second {
		t.Errorf("Duration = %v, want >= 1s", m.Duration)
	}
	if m.PixelsPerSec <= 0 || m.PixelsPerSec > 64*64 {
		t.Errorf("PixelsPerSec = %v", m.PixelsPerSec)
	}

	if logs.FilterMessage("generation started").Len() != 1 {
		t.Error("missing start entry")
	}
	done := logs.FilterMessage("image generated").All()
	if len(done) != 1 {
		t.Fatalf("got %d completion entries", len(done))
	}
	gen := done[0].ContextMap()["generation"].(map[string]interface{})
	if gen["prompt_len"] != 5 || gen["seed"] != int64(42) || gen["handle"] != "0x1" {
		t.Errorf("generation object = %v", gen)
	}
	if _, ok := gen["prompt"]; ok {
		t.Error("prompt text must not be part of generation fields")
	}
}

func TestGenerationLogger_Fail(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGenerationLogger(NewFromZap(zap.New(core)))

	gl.Fail(gl.Start(GenerationMetrics{Width: 8, Height: 8}), errors.New("engine returned nil"))

	entries := logs.FilterMessage("image generation failed").All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("unexpected entries: %v", entries)
	}
	if entries[0].ContextMap()["error"] != "engine returned nil" {
		t.Errorf("error field = %v", entries[0].ContextMap()["error"])
	}
}

func TestTimingFields(t *testing.T) {
	start := time.Unix(100, 0)
	fields := TimingFields(start, start.Add(1500*time.Millisecond))
	if len(fields) != 3 || fields[2].Key != "duration" || time.Duration(fields[2].Integer) != 1500*time.Millisecond {
		t.Errorf("unexpected fields: %v", fields)
	}
}
