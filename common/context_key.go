package common

import "context"

type ContextKey string

const (
	ContextRequestIDKey     ContextKey = "request_id"
	ContextCorrelationIDKey ContextKey = "correlation_id"
)

// WithRequestID stores the request id used to tag datastore logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextRequestIDKey, id)
}

// GetContextRequestID returns the request id stored in ctx, or "-".
func GetContextRequestID(ctx context.Context) string {
	if ctx == nil {
		return "-"
	}

	if id, ok := ctx.Value(ContextRequestIDKey).(string); ok && id != "" {
		return id
	}

	return "-"
}
