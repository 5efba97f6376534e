package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLogLevelString(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{" warn ", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"Error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"verbose", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLogLevelString(tt.in, zapcore.InfoLevel); got != tt.want {
				t.Errorf("ParseLogLevelString(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseLogLevel_Env(t *testing.T) {
	t.Setenv("SDLOADER_TEST_LEVEL", "debug")
	if got := ParseLogLevel("SDLOADER_TEST_LEVEL", zapcore.ErrorLevel); got != zapcore.DebugLevel {
		t.Errorf("got %v, want debug", got)
	}
	t.Setenv("SDLOADER_TEST_LEVEL", "")
	if got := ParseLogLevel("SDLOADER_TEST_LEVEL", zapcore.ErrorLevel); got != zapcore.ErrorLevel {
		t.Errorf("got %v, want default error", got)
	}
}
