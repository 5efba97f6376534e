package shutdown

import (
	"context"

	"go.uber.org/zap"

	"sdloader/logging"
)

// HandleCloser releases every live model handle and reports how many it
// released. boundary.Loader satisfies it.
type HandleCloser interface {
	Close() int
}

// ReleaseHandles returns a step that releases all live handles.
func ReleaseHandles(logger *logging.Logger, c HandleCloser) Func {
	return func(ctx context.Context) error {
		if n := c.Close(); n > 0 {
			logger.Info("Released model handles at shutdown", zap.Int("count", n))
		}
		return nil
	}
}

// Close adapts an io.Closer-style method to a cleanup step.
func Close(fn func() error) Func {
	return func(ctx context.Context) error {
		return fn()
	}
}

// SyncLogger flushes logger. Sync errors on terminal outputs are ignored.
func SyncLogger(logger *logging.Logger) Func {
	return func(ctx context.Context) error {
		_ = logger.Sync()
		return nil
	}
}
