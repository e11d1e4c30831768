package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/giftpool/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-9")
	ctx = obscontext.WithGiftID(ctx, "77")
	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-9", fields["request_id"])
		assert.Equal(t, "77", fields["gift_id"])
	}
}

func TestGinMiddlewareSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	var seen, giftID string
	r.GET("/api/gifts/:id/settlements", func(c *gin.Context) {
		seen = obscontext.RequestIDFromContext(c.Request.Context())
		giftID = obscontext.GiftIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/gifts/12/settlements", nil)
	req.Header.Set("X-Request-Id", "abc")
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc", w.Header().Get("X-Request-Id"))
	assert.Equal(t, "abc", seen)
	assert.Equal(t, "12", giftID)
	assert.Equal(t, 1, logs.FilterMessage("http_request").Len())
}
