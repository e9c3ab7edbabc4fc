package consultations

import "context"

type requestIDKey struct{}

// WithRequestID attaches a request ID to the context so pipeline logs and
// queued retries can be correlated with the originating HTTP call.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// detach drops cancellation from ctx but keeps the request ID, for work that
// outlives the request that started it.
func detach(ctx context.Context) context.Context {
	return WithRequestID(context.Background(), RequestIDFromContext(ctx))
}
