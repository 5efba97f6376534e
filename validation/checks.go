package validation

import (
	"fmt"
	"os"
	"strings"

	"sdloader/db"
	"sdloader/sdruntime"
)

// FileExistsError reports a missing or unusable file.
type FileExistsError struct {
	Path    string
	Message string
}

func (e *FileExistsError) Error() string {
	return e.Message
}

// CheckFileExists returns nil if path names a regular, non-empty file.
func CheckFileExists(path string) error {
	if path == "" {
		return &FileExistsError{Path: path, Message: "file path cannot be empty"}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileExistsError{Path: path, Message: fmt.Sprintf("file not found: %s", path)}
		}
		return &FileExistsError{Path: path, Message: fmt.Sprintf("error checking file %s: %v", path, err)}
	}
	if info.IsDir() {
		return &FileExistsError{Path: path, Message: fmt.Sprintf("path is a directory, not a file: %s", path)}
	}
	if info.Size() == 0 {
		return &FileExistsError{Path: path, Message: fmt.Sprintf("file is empty: %s", path)}
	}
	return nil
}

// ConfigCheck validates cfg.
func ConfigCheck(cfg *sdruntime.SDConfig) Check {
	return Check{
		Name: "Configuration",
		Run: func() CheckResult {
			if err := cfg.Validate(); err != nil {
				return CheckResult{Status: StepFailed, Err: err}
			}
			return CheckResult{
				Status:  StepPassed,
				Message: fmt.Sprintf("%dx%d, %d steps, cfg %g", cfg.Width, cfg.Height, cfg.Steps, cfg.GuidanceScale),
			}
		},
	}
}

// ModelFileCheck fails when path is missing and warns on an unknown
// extension, since the engine may still load it.
func ModelFileCheck(path string) Check {
	return Check{
		Name: "Model File",
		Run: func() CheckResult {
			if err := CheckFileExists(path); err != nil {
				return CheckResult{Status: StepFailed, Err: err}
			}
			if !sdruntime.IsSupportedModelFile(path) {
				return CheckResult{
					Status:  StepWarning,
					Message: fmt.Sprintf("unrecognized extension (expected one of %s)", strings.Join(sdruntime.SupportedModelExtensions, ", ")),
				}
			}
			return CheckResult{Status: StepPassed, Message: path}
		},
	}
}

// BackendCheck warns when the binary was built without the native engine.
func BackendCheck(info string, stub bool) Check {
	return Check{
		Name: "Compute Backend",
		Run: func() CheckResult {
			if stub {
				return CheckResult{Status: StepWarning, Message: "stub build, model loading will fail"}
			}
			return CheckResult{Status: StepPassed, Message: info}
		},
	}
}

// BufferCheck fails when an RGBA image of the configured size would not
// fit under the host buffer limit.
func BufferCheck(cfg *sdruntime.SDConfig) Check {
	return Check{
		Name: "Host Buffer Limit",
		Run: func() CheckResult {
			need, ok := sdruntime.ByteLen(cfg.Width, cfg.Height, 4)
			if !ok {
				return CheckResult{Status: StepFailed, Err: fmt.Errorf("image size %dx%d has no valid byte length", cfg.Width, cfg.Height)}
			}
			if limit := cfg.MaxBufferBytes(); need > limit {
				return CheckResult{
					Status: StepFailed,
					Err:    fmt.Errorf("%dx%d RGBA needs %d bytes, limit is %d (raise %s)", cfg.Width, cfg.Height, need, limit, sdruntime.EnvMaxBufferMB),
				}
			}
			return CheckResult{Status: StepPassed, Message: fmt.Sprintf("%d MB", cfg.MaxBufferMB)}
		},
	}
}

// HistoryCheck opens and migrates the history database. An empty path
// skips the step.
func HistoryCheck(path string) Check {
	return Check{
		Name: "History Database",
		Run: func() CheckResult {
			if path == "" {
				return CheckResult{Status: StepSkipped, Message: "history disabled"}
			}
			database, err := db.Open(path)
			if err != nil {
				return CheckResult{Status: StepFailed, Err: err}
			}
			if err := database.Close(); err != nil {
				return CheckResult{Status: StepFailed, Err: err}
			}
			return CheckResult{Status: StepPassed, Message: path}
		},
	}
}

// PreflightChecks is the standard check list for a generate run.
func PreflightChecks(cfg *sdruntime.SDConfig, dbPath, backendInfo string, stub bool) []Check {
	return []Check{
		ConfigCheck(cfg),
		ModelFileCheck(cfg.ModelPath),
		BackendCheck(backendInfo, stub),
		BufferCheck(cfg),
		HistoryCheck(dbPath),
	}
}
