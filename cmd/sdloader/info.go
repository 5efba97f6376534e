package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sdloader/sdruntime"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the compute backend and effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		engine := newEngine()
		w := cmd.OutOrStdout()
		header := color.New(color.FgCyan, color.Bold)

		header.Fprintln(w, "Backend")
		fmt.Fprintf(w, "  %s\n", engine.BackendInfo())
		fmt.Fprintf(w, "  physical cores: %s\n", formatCores(engine.PhysicalCores()))
		if sdruntime.IsStubBackend() {
			color.New(color.FgYellow).Fprintln(w, "  stub build: model loading always fails (rebuild with -tags sd)")
		}

		header.Fprintln(w, "Configuration")
		fmt.Fprintf(w, "  model:    %s\n", valueOrNone(cfg.ModelPath))
		fmt.Fprintf(w, "  size:     %dx%d\n", cfg.Width, cfg.Height)
		fmt.Fprintf(w, "  steps:    %d\n", cfg.Steps)
		fmt.Fprintf(w, "  cfg:      %g\n", cfg.GuidanceScale)
		fmt.Fprintf(w, "  seed:     %d\n", cfg.Seed)
		fmt.Fprintf(w, "  buffer:   %d MB\n", cfg.MaxBufferMB)
		fmt.Fprintf(w, "  formats:  %s\n", strings.Join(sdruntime.SupportedModelExtensions, " "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func valueOrNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func formatCores(n int) string {
	if n <= 0 {
		return "unknown"
	}
	return strconv.Itoa(n)
}
