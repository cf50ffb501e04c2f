package context

import (
	"context"
	"strings"

	"github.com/smallbiznis/redevance/internal/actorcontext"
)

type requestIDKey struct{}

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
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// ActorFromContext returns the role and id of the caller for log enrichment.
func ActorFromContext(ctx context.Context) (string, string) {
	actor, ok := actorcontext.FromContext(ctx)
	if !ok {
		return "", ""
	}
	return string(actor.Role), actor.IDString()
}
