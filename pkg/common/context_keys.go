package common

import "context"

type contextKey string

const (
	SourceIDContextKey  contextKey = "source_id"
	RequestIDContextKey contextKey = "request_id"
)

// WithSourceID tags a context with the logical origin of the payload being
// sanitized (an IP, a tenant id, a subsystem name). The engine facade uses
// it to feed the security monitor.
func WithSourceID(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, SourceIDContextKey, source)
}

// SourceIDFromContext returns the source id set by WithSourceID, if any.
func SourceIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	source, ok := ctx.Value(SourceIDContextKey).(string)
	if !ok || source == "" {
		return "", false
	}
	return source, true
}

// WithRequestID tags a context with a correlation id carried into log fields.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDContextKey, id)
}

// RequestIDFromContext returns the correlation id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(RequestIDContextKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
