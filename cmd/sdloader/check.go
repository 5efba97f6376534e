package main

import (
	"github.com/spf13/cobra"

	"sdloader/sdruntime"
	"sdloader/validation"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run preflight checks for the configured model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("model") {
			cfg.ModelPath, _ = cmd.Flags().GetString("model")
		}
		dbPath, _ := cmd.Flags().GetString("db")
		failFast, _ := cmd.Flags().GetBool("fail-fast")

		engine := newEngine()
		result := validation.NewValidationSuite().
			WithOutput(cmd.OutOrStdout()).
			WithFailFast(failFast).
			Validate("sdloader Preflight Check",
				validation.PreflightChecks(cfg, dbPath, engine.BackendInfo(), sdruntime.IsStubBackend())...)

		if !result.Success {
			return result.FirstError()
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().String("model", "", "model file (overrides SD_MODEL_PATH)")
	checkCmd.Flags().Bool("fail-fast", false, "stop at the first failed check")

	rootCmd.AddCommand(checkCmd)
}
