package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestLoggerFromContext(t *testing.T) {
	fallback := zap.NewNop()
	if got := LoggerFromContext(context.Background(), fallback); got != fallback {
		t.Error("LoggerFromContext() without logger should return fallback")
	}

	scoped := zap.NewNop().With(zap.String("correlation_id", "abc"))
	ctx := WithLogger(context.Background(), scoped)
	if got := LoggerFromContext(ctx, fallback); got != scoped {
		t.Error("LoggerFromContext() should return the stored logger")
	}
}
