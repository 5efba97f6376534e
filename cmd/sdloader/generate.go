package main

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sdloader/boundary"
	"sdloader/db"
	"sdloader/handle"
	"sdloader/logging"
	"sdloader/metrics"
	"sdloader/sdruntime"
	"sdloader/shutdown"
)

var (
	errLoadFailed     = errors.New("failed to load model")
	errGenerateFailed = errors.New("image generation failed")
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Load a model and generate images from a prompt",
	Args:  cobra.NoArgs,
	RunE:  runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.String("model", "", "model file (overrides SD_MODEL_PATH)")
	f.StringP("prompt", "p", "", "prompt text")
	f.String("negative", "", "negative prompt (overrides SD_NEGATIVE_PROMPT)")
	f.Int("width", 0, "image width (overrides SD_IMAGE_WIDTH)")
	f.Int("height", 0, "image height (overrides SD_IMAGE_HEIGHT)")
	f.Int("steps", 0, "sampling steps (overrides SD_INFERENCE_STEPS)")
	f.Float32("cfg", 0, "guidance scale (overrides SD_GUIDANCE_SCALE)")
	f.Int64("seed", 0, "seed, negative for random (overrides SD_SEED)")
	f.Bool("offload-to-cpu", false, "offload model parameters to CPU")
	f.Bool("clip-on-cpu", false, "keep CLIP on CPU")
	f.Bool("vae-on-cpu", false, "keep VAE on CPU")
	f.IntP("count", "n", 1, "number of images to generate with the loaded model")
	f.StringP("out", "o", "output.png", "output PNG path")
	f.Int("thumbnail", 0, "also write a thumbnail with this longest side (0 disables)")
	f.String("metrics-file", "", "write Prometheus metrics to this file on exit")
	_ = generateCmd.MarkFlagRequired("prompt")

	rootCmd.AddCommand(generateCmd)
}

// generateOptions is the resolved input of one generate run.
type generateOptions struct {
	cfg         *sdruntime.SDConfig
	prompt      string
	count       int
	out         string
	thumbnail   int
	metricsFile string
	dbPath      string
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyGenerateFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.ModelPath == "" {
		return fmt.Errorf("no model: set --model or %s", sdruntime.EnvModelPath)
	}

	opts := generateOptions{cfg: cfg}
	opts.prompt, _ = cmd.Flags().GetString("prompt")
	opts.count, _ = cmd.Flags().GetInt("count")
	opts.out, _ = cmd.Flags().GetString("out")
	opts.thumbnail, _ = cmd.Flags().GetInt("thumbnail")
	opts.metricsFile, _ = cmd.Flags().GetString("metrics-file")
	opts.dbPath, _ = cmd.Flags().GetString("db")
	if opts.count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", opts.count)
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	return generate(cmd.OutOrStdout(), logger, opts)
}

// applyGenerateFlags overlays explicitly set flags onto cfg.
func applyGenerateFlags(cmd *cobra.Command, cfg *sdruntime.SDConfig) {
	f := cmd.Flags()
	if f.Changed("model") {
		cfg.ModelPath, _ = f.GetString("model")
	}
	if f.Changed("negative") {
		cfg.NegativePrompt, _ = f.GetString("negative")
	}
	if f.Changed("width") {
		cfg.Width, _ = f.GetInt("width")
	}
	if f.Changed("height") {
		cfg.Height, _ = f.GetInt("height")
	}
	if f.Changed("steps") {
		cfg.Steps, _ = f.GetInt("steps")
	}
	if f.Changed("cfg") {
		cfg.GuidanceScale, _ = f.GetFloat32("cfg")
	}
	if f.Changed("seed") {
		cfg.Seed, _ = f.GetInt64("seed")
	}
	if f.Changed("offload-to-cpu") {
		cfg.OffloadToCPU, _ = f.GetBool("offload-to-cpu")
	}
	if f.Changed("clip-on-cpu") {
		cfg.KeepClipOnCPU, _ = f.GetBool("clip-on-cpu")
	}
	if f.Changed("vae-on-cpu") {
		cfg.KeepVAEOnCPU, _ = f.GetBool("vae-on-cpu")
	}
}

func generate(w io.Writer, logger *logging.Logger, opts generateOptions) error {
	cfg := opts.cfg

	manager := shutdown.NewManager(logger)
	manager.Register("logger", shutdown.PriorityLogger, shutdown.SyncLogger(logger))
	manager.Start()

	store := metrics.NewStore(metrics.DefaultStoreConfig(), time.Now())
	collector := metrics.NewCollector()
	observers := []boundary.Observer{store, collector}

	if opts.dbPath != "" {
		database, err := db.Open(opts.dbPath)
		if err != nil {
			manager.Shutdown()
			return fmt.Errorf("failed to open history: %w", err)
		}
		manager.Register("history", shutdown.PriorityHistory, shutdown.Close(database.Close))
		observers = append(observers, db.NewHistory(database, logger))
	}
	if opts.metricsFile != "" {
		manager.Register("metrics", shutdown.PriorityMetrics, func(ctx context.Context) error {
			return collector.WriteTextfile(opts.metricsFile)
		})
	}

	loader := boundary.NewLoader(newEngine(), boundary.Options{
		Allocator: boundary.HeapAllocator{MaxBytes: cfg.MaxBufferBytes()},
		Observer:  boundary.Observers(observers...),
		Logger:    logger,
	})
	manager.Register("handles", shutdown.PriorityHandles, shutdown.ReleaseHandles(logger, loader))

	if !sdruntime.IsSupportedModelFile(cfg.ModelPath) {
		logger.Warn("Model file extension is not a known model format",
			zap.String("model_path", cfg.ModelPath),
			zap.Strings("supported", sdruntime.SupportedModelExtensions),
		)
	}
	logger.Info("Starting generation",
		zap.String("backend", loader.BackendInfo()),
		zap.Int("count", opts.count),
	)

	err := manager.WrapOperation(manager.Context(), "generate", func(ctx context.Context) error {
		return generateImages(ctx, w, loader, opts)
	})
	if shutdownErr := manager.Shutdown(); shutdownErr != nil && err == nil {
		err = shutdownErr
	}

	printSummary(w, store.Summary())
	return err
}

func generateImages(ctx context.Context, w io.Writer, loader *boundary.Loader, opts generateOptions) error {
	cfg := opts.cfg

	tok := loader.LoadModel(&cfg.ModelPath, cfg.OffloadToCPU, cfg.KeepClipOnCPU, cfg.KeepVAEOnCPU)
	if tok == handle.Invalid {
		return fmt.Errorf("%w: %s", errLoadFailed, cfg.ModelPath)
	}
	defer loader.Release(tok)

	success := color.New(color.FgGreen)
	dim := color.New(color.FgHiBlack)

	for i := 0; i < opts.count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		seed := cfg.Seed
		if seed >= 0 {
			seed += int64(i)
		}
		req := sdruntime.GenerationRequest{
			Prompt:         opts.prompt,
			NegativePrompt: cfg.NegativePrompt,
			Width:          cfg.Width,
			Height:         cfg.Height,
			Steps:          cfg.Steps,
			GuidanceScale:  cfg.GuidanceScale,
			Seed:           seed,
		}

		start := time.Now()
		pixels := loader.Txt2Img(tok, &req.Prompt, &req.NegativePrompt,
			int32(req.Width), int32(req.Height), int32(req.Steps), req.GuidanceScale, req.Seed)
		if pixels == nil {
			return errGenerateFailed
		}
		elapsed := time.Since(start)

		width, height, err := loader.LastSize(tok)
		if err != nil {
			return err
		}
		if width*height == 0 {
			return errGenerateFailed
		}
		channels := len(pixels) / (width * height)

		path := outputPath(opts.out, i, opts.count)
		if err := writePNG(path, pixels, width, height, channels, req, cfg.ModelPath); err != nil {
			return err
		}
		success.Fprintf(w, "✓ %s", path)
		dim.Fprintf(w, " (%dx%d, %d channels, %v)\n", width, height, channels, elapsed.Round(time.Millisecond))

		if opts.thumbnail > 0 {
			thumb := thumbnailPath(path)
			if err := writeThumbnail(thumb, pixels, width, height, channels, opts.thumbnail); err != nil {
				return err
			}
			dim.Fprintf(w, "  thumbnail %s\n", thumb)
		}
	}
	return nil
}

// writePNG encodes pixels with the generation parameters embedded as a
// "parameters" text chunk.
func writePNG(path string, pixels []byte, width, height, channels int, req sdruntime.GenerationRequest, modelPath string) error {
	data, err := sdruntime.EncodePNG(pixels, width, height, channels)
	if err != nil {
		return err
	}
	data = sdruntime.InjectTextChunks(data, map[string]string{
		sdruntime.ParametersKey: sdruntime.FormatParameters(req, modelPath),
	})

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeThumbnail(path string, pixels []byte, width, height, channels, maxSide int) error {
	img, err := sdruntime.ToImage(pixels, width, height, channels)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, sdruntime.Thumbnail(img, maxSide)); err != nil {
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return f.Close()
}

// outputPath numbers base when more than one image is generated:
// out.png becomes out-1.png, out-2.png and so on.
func outputPath(base string, i, count int) string {
	if count <= 1 {
		return base
	}
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(base, ext), i+1, ext)
}

func thumbnailPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-thumb" + ext
}

func printSummary(w io.Writer, s metrics.Summary) {
	header := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.FgHiBlack)

	header.Fprintln(w, "Summary")
	for _, kind := range []string{"load", "generate", "release"} {
		km, ok := s.ByKind[kind]
		if !ok {
			continue
		}
		dim.Fprintf(w, "  %-9s %d ops, %.0f%% ok, avg %v\n",
			kind, km.Count, km.SuccessRate, km.AvgDuration.Round(time.Millisecond))
	}
	if s.TotalErrors > 0 {
		color.New(color.FgRed).Fprintf(w, "  %d failed operations\n", s.TotalErrors)
	}
}
