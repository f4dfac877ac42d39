package logctx

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromCtx_EnrichesWithTraceAndUser(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core).Sugar()

	ctx := context.WithValue(context.Background(), KeyTraceID, "t-1")
	ctx = context.WithValue(ctx, KeyUserID, "u-1")
	FromCtx(ctx, base).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	require.Equal(t, "t-1", fields["trace_id"])
	require.Equal(t, "u-1", fields["user_id"])
}

func TestFromGin_PrefersStoredLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	stored := zap.New(core).Sugar().With("scoped", true)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	c.Set(KeyLogger, stored)
	c.Set(KeyUserID, "u-2")

	FromGin(c, zap.NewNop().Sugar()).Info("x")
	require.Equal(t, 1, logs.Len())
	require.Equal(t, "u-2", UserID(c))
}
