package sdruntime

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// SDConfig holds configuration for Stable Diffusion image generation.
type SDConfig struct {
	// Model configuration
	ModelPath     string `yaml:"model_path"`
	OffloadToCPU  bool   `yaml:"offload_to_cpu"`
	KeepClipOnCPU bool   `yaml:"keep_clip_on_cpu"`
	KeepVAEOnCPU  bool   `yaml:"keep_vae_on_cpu"`

	// Image generation defaults
	Width          int     `yaml:"width"`
	Height         int     `yaml:"height"`
	Steps          int     `yaml:"steps"`
	GuidanceScale  float32 `yaml:"guidance_scale"`
	NegativePrompt string  `yaml:"negative_prompt"`
	Seed           int64   `yaml:"seed"`

	// Host buffer ceiling in megabytes
	MaxBufferMB int `yaml:"max_buffer_mb"`
}

// Default configuration values
const (
	DefaultImageSize      = 512
	DefaultInferenceSteps = 20
	DefaultSeed           = -1
	DefaultMaxBufferMB    = 256

	// MaxBufferMBLimit is the largest ceiling whose byte count fits in an int.
	MaxBufferMBLimit = math.MaxInt >> 20
)

// Environment variable names
const (
	EnvModelPath      = "SD_MODEL_PATH"
	EnvOffloadToCPU   = "SD_OFFLOAD_TO_CPU"
	EnvKeepClipOnCPU  = "SD_KEEP_CLIP_ON_CPU"
	EnvKeepVAEOnCPU   = "SD_KEEP_VAE_ON_CPU"
	EnvImageWidth     = "SD_IMAGE_WIDTH"
	EnvImageHeight    = "SD_IMAGE_HEIGHT"
	EnvInferenceSteps = "SD_INFERENCE_STEPS"
	EnvGuidanceScale  = "SD_GUIDANCE_SCALE"
	EnvNegativePrompt = "SD_NEGATIVE_PROMPT"
	EnvSeed           = "SD_SEED"
	EnvMaxBufferMB    = "SD_MAX_BUFFER_MB"
)

// DefaultSDConfig returns the built-in defaults.
func DefaultSDConfig() *SDConfig {
	return &SDConfig{
		Width:         DefaultImageSize,
		Height:        DefaultImageSize,
		Steps:         DefaultInferenceSteps,
		GuidanceScale: DefaultGuidanceScale,
		Seed:          DefaultSeed,
		MaxBufferMB:   DefaultMaxBufferMB,
	}
}

// LoadSDConfig loads SD configuration from environment variables.
// Unset or unparsable variables keep their defaults.
func LoadSDConfig() *SDConfig {
	cfg := DefaultSDConfig()
	cfg.applyEnv()
	return cfg
}

// LoadSDConfigFile loads a YAML config file and then applies environment
// variables on top, so the environment wins over the file.
func LoadSDConfigFile(path string) (*SDConfig, error) {
	cfg := DefaultSDConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be defaulted at call time.
func (c *SDConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: image size %dx%d must be positive", ErrInvalidConfig, c.Width, c.Height)
	}
	// Size and steps cross the engine boundary as int32.
	if c.Width > math.MaxInt32 || c.Height > math.MaxInt32 {
		return fmt.Errorf("%w: image size %dx%d exceeds %d", ErrInvalidConfig, c.Width, c.Height, math.MaxInt32)
	}
	if c.Steps > math.MaxInt32 || c.Steps < math.MinInt32 {
		return fmt.Errorf("%w: steps %d out of range", ErrInvalidConfig, c.Steps)
	}
	if c.MaxBufferMB <= 0 || c.MaxBufferMB > MaxBufferMBLimit {
		return fmt.Errorf("%w: max_buffer_mb %d must be between 1 and %d", ErrInvalidConfig, c.MaxBufferMB, MaxBufferMBLimit)
	}
	return nil
}

// MaxBufferBytes returns the host buffer ceiling in bytes, clamped to
// MaxBufferMBLimit.
func (c *SDConfig) MaxBufferBytes() int {
	mb := c.MaxBufferMB
	if mb > MaxBufferMBLimit {
		mb = MaxBufferMBLimit
	}
	return mb << 20
}

func (c *SDConfig) applyEnv() {
	if v := os.Getenv(EnvModelPath); v != "" {
		c.ModelPath = v
	}
	c.OffloadToCPU = parseBool(os.Getenv(EnvOffloadToCPU), c.OffloadToCPU)
	c.KeepClipOnCPU = parseBool(os.Getenv(EnvKeepClipOnCPU), c.KeepClipOnCPU)
	c.KeepVAEOnCPU = parseBool(os.Getenv(EnvKeepVAEOnCPU), c.KeepVAEOnCPU)
	c.Width = parsePositiveInt(os.Getenv(EnvImageWidth), c.Width)
	c.Height = parsePositiveInt(os.Getenv(EnvImageHeight), c.Height)
	c.Steps = parsePositiveInt(os.Getenv(EnvInferenceSteps), c.Steps)
	c.GuidanceScale = parseGuidanceScale(os.Getenv(EnvGuidanceScale), c.GuidanceScale)
	if v := os.Getenv(EnvNegativePrompt); v != "" {
		c.NegativePrompt = v
	}
	c.Seed = parseSeed(os.Getenv(EnvSeed), c.Seed)
	c.MaxBufferMB = parsePositiveInt(os.Getenv(EnvMaxBufferMB), c.MaxBufferMB)
}

// parseBool parses a boolean flag from string.
// Returns def if empty or invalid.
func parseBool(s string, def bool) bool {
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return b
}

// parsePositiveInt parses a positive integer from string.
// Returns def if empty, invalid or not positive.
func parsePositiveInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// parseGuidanceScale parses CFG scale from string.
// Returns def if empty, invalid or not positive.
func parseGuidanceScale(s string, def float32) float32 {
	if s == "" {
		return def
	}
	scale, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
	if err != nil || scale <= 0 {
		return def
	}
	return float32(scale)
}

// parseSeed parses a seed from string. Negative seeds are valid.
func parseSeed(s string, def int64) int64 {
	if s == "" {
		return def
	}
	seed, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return def
	}
	return seed
}
