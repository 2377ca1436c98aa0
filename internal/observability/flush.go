package observability

import (
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/zap"
)

// FlushTelemetry flushes buffered log entries before the process exits.
// Metrics are pull-based and need no flush. Sync errors from terminals
// (EINVAL/ENOTTY on stdout/stderr) are not reported.
func FlushTelemetry(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	if err := logger.Sync(); err != nil && !isTerminalSyncError(err) {
		return fmt.Errorf("flush logs: %w", err)
	}
	return nil
}

func isTerminalSyncError(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY)
}
