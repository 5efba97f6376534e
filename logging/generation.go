package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GenerationMetrics describes one text-to-image call for structured logs.
// It carries prompt lengths, never prompt text.
type GenerationMetrics struct {
	Handle       string
	PromptLen    int
	NegativeLen  int
	Width        int
	Height       int
	Steps        int
	Guidance     float32
	Seed         int64
	Bytes        int
	Duration     time.Duration
	PixelsPerSec float64
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (m GenerationMetrics) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	if m.Handle != "" {
		enc.AddString("handle", m.Handle)
	}
	enc.AddInt("prompt_len", m.PromptLen)
	enc.AddInt("negative_prompt_len", m.NegativeLen)
	enc.AddInt("width", m.Width)
	enc.AddInt("height", m.Height)
	enc.AddInt("steps", m.Steps)
	enc.AddFloat32("guidance_scale", m.Guidance)
	enc.AddInt64("seed", m.Seed)
	enc.AddInt("bytes", m.Bytes)
	enc.AddInt64("duration_ms", m.Duration.Milliseconds())
	enc.AddFloat64("pixels_per_second", m.PixelsPerSec)
	return nil
}

// GenerationFields wraps metrics as a single "generation" field.
//
//	logger.Info("image generated", logging.GenerationFields(m))
func GenerationFields(m GenerationMetrics) zap.Field {
	return zap.Object("generation", m)
}

// TimingFields returns start, end and duration fields.
func TimingFields(start, end time.Time) []zap.Field {
	return []zap.Field{
		zap.Time("start_time", start),
		zap.Time("end_time", end),
		zap.Duration("duration", end.Sub(start)),
	}
}

// GenerationLogger logs the start and outcome of generations.
//
//	timer := gl.Start(m)
//	// ... run the engine ...
//	gl.End(timer, len(pixels))
type GenerationLogger struct {
	logger *Logger
}

// NewGenerationLogger wraps logger.
func NewGenerationLogger(logger *Logger) *GenerationLogger {
	return &GenerationLogger{logger: logger}
}

// GenerationTimer tracks one in-flight generation.
type GenerationTimer struct {
	Metrics   GenerationMetrics
	StartTime time.Time
}

// Start records the start time and logs at debug level.
func (gl *GenerationLogger) Start(m GenerationMetrics) *GenerationTimer {
	gl.logger.Debug("generation started", GenerationFields(m))
	return &GenerationTimer{Metrics: m, StartTime: time.Now()}
}

// End completes the timer, logs at info level and returns the final
// metrics.
func (gl *GenerationLogger) End(timer *GenerationTimer, bytes int) GenerationMetrics {
	m := timer.Metrics
	m.Bytes = bytes
	m.Duration = time.Since(timer.StartTime)
	if s := m.Duration.Seconds(); s > 0 {
		m.PixelsPerSec = float64(m.Width*m.Height) / s
	}
	gl.logger.Info("image generated", GenerationFields(m))
	return m
}

// Fail logs a failed generation at warn level.
func (gl *GenerationLogger) Fail(timer *GenerationTimer, err error) GenerationMetrics {
	m := timer.Metrics
	m.Duration = time.Since(timer.StartTime)
	gl.logger.Warn("image generation failed", GenerationFields(m), zap.Error(err))
	return m
}
