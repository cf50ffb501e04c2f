package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/redevance/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	RequestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"
)

// quietRoutes are polled by infrastructure and log at debug.
var quietRoutes = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// MiddlewareConfig controls request logging.
type MiddlewareConfig struct {
	// Stack attaches a stack trace to requests that ended in an error.
	Stack bool
	// Classify maps a handler error to its kind and code, e.g. conflict / dispute_already_filed.
	Classify func(err error) (kind string, code string)
}

// GinMiddleware assigns a request id and logs one line per request once the handler chain returns.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := requestIDFor(c)
		c.Request = c.Request.WithContext(obscontext.WithRequestID(c.Request.Context(), requestID))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("client_ip", c.ClientIP()),
		}
		if last := c.Errors.Last(); last != nil && cfg.Classify != nil {
			kind, code := cfg.Classify(last.Err)
			fields = append(fields, zap.String("error_kind", kind), zap.String("error_code", code))
			if cfg.Stack {
				fields = append(fields, zap.Stack("stack"))
			}
		}

		// the actor is attached by route-group middleware, so read it from the request after Next
		if ce := FromContext(c.Request.Context()).Check(requestLevel(route, status), "http.request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func requestIDFor(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
	if requestID == "" {
		requestID = strings.TrimSpace(c.GetString(requestIDKey))
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDKey, requestID)
	c.Header(RequestIDHeader, requestID)
	return requestID
}

func requestLevel(route string, status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status == http.StatusTooManyRequests:
		return zapcore.WarnLevel
	case quietRoutes[route]:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
