package validation

import (
	"os"
	"path/filepath"
	"testing"

	"sdloader/sdruntime"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCheckFileExists(t *testing.T) {
	model := writeFile(t, "sd.gguf", []byte("weights"))
	empty := writeFile(t, "empty.gguf", nil)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"regular file", model, false},
		{"empty path", "", true},
		{"missing", filepath.Join(t.TempDir(), "nope.gguf"), true},
		{"directory", t.TempDir(), true},
		{"empty file", empty, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFileExists(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckFileExists(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestModelFileCheck(t *testing.T) {
	tests := []struct {
		name string
		path string
		want StepStatus
	}{
		{"known extension", writeFile(t, "sd.safetensors", []byte("x")), StepPassed},
		{"unknown extension", writeFile(t, "sd.onnx", []byte("x")), StepWarning},
		{"missing", "/does/not/exist.gguf", StepFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ModelFileCheck(tt.path).Run().Status; got != tt.want {
				t.Errorf("status = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigAndBufferChecks(t *testing.T) {
	cfg := sdruntime.DefaultSDConfig()
	if got := ConfigCheck(cfg).Run().Status; got != StepPassed {
		t.Errorf("ConfigCheck(default) = %v, want passed", got)
	}
	if got := BufferCheck(cfg).Run().Status; got != StepPassed {
		t.Errorf("BufferCheck(default) = %v, want passed", got)
	}

	big := sdruntime.DefaultSDConfig()
	big.Width, big.Height, big.MaxBufferMB = 8192, 8192, 1
	res := BufferCheck(big).Run()
	if res.Status != StepFailed || res.Err == nil {
		t.Errorf("BufferCheck(8192x8192, 1MB) = %+v, want failure", res)
	}

	bad := sdruntime.DefaultSDConfig()
	bad.Width = 0
	if got := ConfigCheck(bad).Run().Status; got != StepFailed {
		t.Errorf("ConfigCheck(width 0) = %v, want failed", got)
	}
}

func TestBackendCheck(t *testing.T) {
	if got := BackendCheck("CUDA", false).Run(); got.Status != StepPassed || got.Message != "CUDA" {
		t.Errorf("BackendCheck(native) = %+v", got)
	}
	if got := BackendCheck("stub", true).Run().Status; got != StepWarning {
		t.Errorf("BackendCheck(stub) = %v, want warning", got)
	}
}

func TestHistoryCheck(t *testing.T) {
	if got := HistoryCheck("").Run().Status; got != StepSkipped {
		t.Errorf("HistoryCheck(\"\") = %v, want skipped", got)
	}
	path := filepath.Join(t.TempDir(), "history.db")
	if got := HistoryCheck(path).Run(); got.Status != StepPassed {
		t.Errorf("HistoryCheck(%s) = %+v, want passed", path, got)
	}
}

func TestPreflightChecks(t *testing.T) {
	cfg := sdruntime.DefaultSDConfig()
	cfg.ModelPath = writeFile(t, "sd.gguf", []byte("x"))

	result := NewValidationSuite().
		WithShowProgress(false).
		Validate("Preflight", PreflightChecks(cfg, "", "CPU", false)...)

	if !result.Success {
		t.Fatalf("preflight failed: %s", result.Summary())
	}
	if result.TotalSteps != 5 {
		t.Errorf("TotalSteps = %d, want 5", result.TotalSteps)
	}
}
