package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fatflowers/subsync/pkg/config"
	"github.com/fatflowers/subsync/pkg/logctx"
	"github.com/fatflowers/subsync/pkg/ratelimit"
	"github.com/fatflowers/subsync/pkg/response"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.StandardClaims, method jwt.SigningMethod, key interface{}) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func testConfig() *config.Config {
	return &config.Config{Auth: config.AuthConfig{JWTSecret: testSecret, CookieName: "session", AdminToken: "admin-token"}}
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/me", func(c *gin.Context) {
		uid, _ := c.Request.Context().Value(logctx.KeyUserID).(string)
		c.JSON(http.StatusOK, gin.H{"gin": logctx.UserID(c), "ctx": uid})
	})
	return r
}

func decodeCode(t *testing.T, w *httptest.ResponseRecorder) response.APIResponseCode {
	t.Helper()
	var body struct {
		Code response.APIResponseCode `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func TestSessionAuth_BearerAndCookie(t *testing.T) {
	r := newRouter(SessionAuth(testConfig()))
	tok := signToken(t, jwt.StandardClaims{Subject: "u-1", ExpiresAt: time.Now().Add(time.Hour).Unix()}, jwt.SigningMethodHS256, []byte(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"gin":"u-1","ctx":"u-1"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: tok})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"gin":"u-1","ctx":"u-1"}`, w.Body.String())
}

func TestSessionAuth_Rejects(t *testing.T) {
	r := newRouter(SessionAuth(testConfig()))
	cases := map[string]string{
		"missing":      "",
		"garbage":      "Bearer not-a-jwt",
		"wrong secret": "Bearer " + signToken(t, jwt.StandardClaims{Subject: "u-1"}, jwt.SigningMethodHS256, []byte("other")),
		"expired":      "Bearer " + signToken(t, jwt.StandardClaims{Subject: "u-1", ExpiresAt: time.Now().Add(-time.Minute).Unix()}, jwt.SigningMethodHS256, []byte(testSecret)),
		"no subject":   "Bearer " + signToken(t, jwt.StandardClaims{}, jwt.SigningMethodHS256, []byte(testSecret)),
		"alg none":     "Bearer " + signToken(t, jwt.StandardClaims{Subject: "u-1"}, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, response.APIResponseCodeUnauthorized, decodeCode(t, w))
		})
	}
}

func TestSessionAuth_Unconfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.JWTSecret = ""
	r := newRouter(SessionAuth(cfg))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSessionAuth_EnrichesRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core).Sugar()
	tok := signToken(t, jwt.StandardClaims{Subject: "u-7"}, jwt.SigningMethodHS256, []byte(testSecret))

	r := newRouter(TraceMiddleware(), RequestLoggerMiddleware(base), AccessLogMiddleware(), SessionAuth(testConfig()))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set(HeaderRequestID, "trace-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "trace-1", w.Header().Get(HeaderRequestID))
	entries := logs.FilterMessage("http_access").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "trace-1", fields["trace_id"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
}

func TestTraceMiddleware_GeneratesID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceMiddleware())
	var fromGin, fromCtx string
	r.GET("/", func(c *gin.Context) {
		fromGin = c.GetString(logctx.KeyTraceID)
		fromCtx, _ = c.Request.Context().Value(logctx.KeyTraceID).(string)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, fromGin)
	assert.Equal(t, fromGin, fromCtx)
}

func TestAdminAuth(t *testing.T) {
	r := newRouter(AdminAuth(testConfig()))
	for header, want := range map[string]int{
		"Bearer admin-token": http.StatusOK,
		"Bearer nope":        http.StatusUnauthorized,
		"":                   http.StatusUnauthorized,
	} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, header)
	}

	cfg := testConfig()
	cfg.Auth.AdminToken = ""
	r = newRouter(AdminAuth(cfg))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("redis down")
}

func TestRateLimitMiddleware(t *testing.T) {
	l := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), 2, time.Minute)
	r := newRouter(RateLimitMiddleware(l, zap.NewNop().Sugar()))

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for range 3 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
		codes = append(codes, w.Code)
		last = w
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, response.APIResponseCodeRateLimited, decodeCode(t, last))
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitMiddleware_DisabledAndFailOpen(t *testing.T) {
	for name, l := range map[string]*ratelimit.Limiter{
		"disabled":  nil,
		"fail open": ratelimit.NewLimiter(failingStore{}, 1, time.Minute),
	} {
		t.Run(name, func(t *testing.T) {
			r := newRouter(RateLimitMiddleware(l, zap.NewNop().Sugar()))
			for range 3 {
				w := httptest.NewRecorder()
				r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
				assert.Equal(t, http.StatusOK, w.Code)
			}
		})
	}
}
