package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLevel(t *testing.T) {
	cases := []struct {
		route  string
		status int
		want   zapcore.Level
	}{
		{"/v1/notes/:id", http.StatusOK, zapcore.InfoLevel},
		{"/v1/notes/:id", http.StatusConflict, zapcore.InfoLevel},
		{"/v1/compliance/:taxpayerID", http.StatusTooManyRequests, zapcore.WarnLevel},
		{"/v1/notes", http.StatusInternalServerError, zapcore.ErrorLevel},
		{"/health", http.StatusOK, zapcore.DebugLevel},
		{"/metrics", http.StatusServiceUnavailable, zapcore.ErrorLevel},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, requestLevel(tc.route, tc.status), "%s %d", tc.route, tc.status)
	}
}

func TestGinMiddlewareLogsClassifiedError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(GinMiddleware(MiddlewareConfig{
		Classify: func(error) (string, string) { return "conflict", "dispute_already_filed" },
	}))
	engine.POST("/v1/disputes", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
		c.Status(http.StatusConflict)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/disputes", nil)
	req.Header.Set(RequestIDHeader, "req-9")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, "req-9", rec.Header().Get(RequestIDHeader))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "http.request", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "/v1/disputes", fields["route"])
	assert.Equal(t, int64(http.StatusConflict), fields["status"])
	assert.Equal(t, "conflict", fields["error_kind"])
	assert.Equal(t, "dispute_already_filed", fields["error_code"])
}

func TestGinMiddlewareGeneratesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(GinMiddleware(MiddlewareConfig{}))
	engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}
