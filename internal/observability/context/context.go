// Package context carries request correlation values for logs and spans.
package context

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
)

type requestIDKey struct{}
type giftIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// EnsureRequestID guarantees a request id on contexts that did not come
// through the HTTP middleware.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id := RequestIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := ulid.Make().String()
	return WithRequestID(ctx, id), id
}

func WithGiftID(ctx context.Context, giftID string) context.Context {
	giftID = strings.TrimSpace(giftID)
	if giftID == "" {
		return ctx
	}
	return context.WithValue(ctx, giftIDKey{}, giftID)
}

func GiftIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(giftIDKey{}).(string); ok {
		return v
	}
	return ""
}
