package bot

import (
	"context"

	"github.com/google/uuid"
)

type traceKey struct{}

func withTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// traceID returns the trace id carried by ctx, or "-".
func traceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceKey{}).(string); ok && v != "" {
		return v
	}
	return "-"
}

func newTraceID() string {
	return uuid.NewString()
}
