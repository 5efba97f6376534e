package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sdloader/logging"
	"sdloader/sdruntime"
)

var rootCmd = &cobra.Command{
	Use:           "sdloader",
	Short:         "Stable Diffusion model loader",
	Long:          "sdloader loads Stable Diffusion models behind opaque handles, generates images and records a local history.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		return loadEnvFile(envFile)
	},
}

// newEngine is replaced in tests.
var newEngine = sdruntime.NewNativeEngine

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file to load before reading SD_* variables")
	rootCmd.PersistentFlags().String("config", "", "YAML config file (env vars override it)")
	rootCmd.PersistentFlags().String("log-file", "", "JSON log file with rotation (console only when empty)")
	rootCmd.PersistentFlags().Bool("dev", os.Getenv("DEV_MODE") == "true", "development logging")
	rootCmd.PersistentFlags().String("db", "sdloader.db", "SQLite history database (empty disables history)")
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}

// loadEnvFile loads path into the environment. A missing file is not an
// error; variables already set are kept.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// loadConfig reads SD_* settings from the YAML file named by --config, or
// from the environment alone.
func loadConfig(cmd *cobra.Command) (*sdruntime.SDConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return sdruntime.LoadSDConfig(), nil
	}
	cfg, err := sdruntime.LoadSDConfigFile(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command) (*logging.Logger, error) {
	dev, _ := cmd.Flags().GetBool("dev")
	logFile, _ := cmd.Flags().GetString("log-file")

	logger, err := logging.NewLogger(dev, logFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
