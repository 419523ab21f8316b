package common

import (
	"context"
	"time"
)

// ContextKey represents a context key type
type ContextKey string

// Context keys
const (
	ContextKeyLearnerID ContextKey = "learner_id"
	ContextKeyRequestID ContextKey = "request_id"
	ContextKeyStartTime ContextKey = "start_time"
)

// WithLearnerID adds the authenticated learner ID to context
func WithLearnerID(ctx context.Context, learnerID string) context.Context {
	return context.WithValue(ctx, ContextKeyLearnerID, learnerID)
}

// GetLearnerID extracts the learner ID from context
func GetLearnerID(ctx context.Context) (string, bool) {
	learnerID, ok := ctx.Value(ContextKeyLearnerID).(string)
	return learnerID, ok
}

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// GetRequestID extracts request ID from context
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(ContextKeyRequestID).(string)
	return requestID, ok
}

// WithStartTime adds start time to context
func WithStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyStartTime, startTime)
}

// GetElapsedTime calculates elapsed time from start time in context
func GetElapsedTime(ctx context.Context) time.Duration {
	if startTime, ok := ctx.Value(ContextKeyStartTime).(time.Time); ok {
		return time.Since(startTime)
	}
	return 0
}

// EnrichContext adds common request metadata to context
func EnrichContext(ctx context.Context, learnerID, requestID string) context.Context {
	ctx = WithLearnerID(ctx, learnerID)
	ctx = WithRequestID(ctx, requestID)
	ctx = WithStartTime(ctx, time.Now())
	return ctx
}
