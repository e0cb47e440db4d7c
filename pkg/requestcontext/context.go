// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them, services and stores read them,
// and tests inject them without running the middleware chain.
package requestcontext

import (
	"context"
	"time"

	id "terrasync/pkg/domain"
)

type (
	collectorIDKey struct{}
	deviceIDKey    struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

var (
	ContextKeyCollectorID = collectorIDKey{}
	ContextKeyDeviceID    = deviceIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// CollectorID retrieves the authenticated field collector from the context.
// Returns the zero value (nil UUID) if not set.
func CollectorID(ctx context.Context) id.CollectorID {
	if cid, ok := ctx.Value(ContextKeyCollectorID).(id.CollectorID); ok {
		return cid
	}
	return id.CollectorID{}
}

// WithCollectorID injects a collector ID into the context.
func WithCollectorID(ctx context.Context, cid id.CollectorID) context.Context {
	return context.WithValue(ctx, ContextKeyCollectorID, cid)
}

// DeviceID retrieves the device identifier from the context.
func DeviceID(ctx context.Context) string {
	if did, ok := ctx.Value(ContextKeyDeviceID).(string); ok {
		return did
	}
	return ""
}

// WithDeviceID injects a device identifier into a context.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, ContextKeyDeviceID, deviceID)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() for non-HTTP contexts (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Workers use it for a
// consistent timestamp within one batch; tests use it to freeze the clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
