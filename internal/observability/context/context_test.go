package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureRequestIDKeepsExisting(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx, id := EnsureRequestID(ctx)
	assert.Equal(t, "req-1", id)
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
}

func TestEnsureRequestIDGenerates(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	assert.Len(t, id, 26)
	assert.Equal(t, id, RequestIDFromContext(ctx))
}

func TestGiftID(t *testing.T) {
	assert.Equal(t, "", GiftIDFromContext(context.Background()))
	assert.Equal(t, "42", GiftIDFromContext(WithGiftID(context.Background(), " 42 ")))
}
